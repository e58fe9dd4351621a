package core

import (
	"context"
	"fmt"

	"logisticscore/pkg/domain"
)

// NewFulfillmentLifecycleRule returns the in-transaction rule enforcing the
// fulfillment status machine on every fulfillment update.
func NewFulfillmentLifecycleRule() domain.Rule {
	return fulfillmentLifecycleRule{}
}

type fulfillmentLifecycleRule struct{}

func (fulfillmentLifecycleRule) Name() string { return "fulfillment_lifecycle" }

func (fulfillmentLifecycleRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	valid := domain.ValidFulfillmentStatuses()
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityFulfillment {
			continue
		}
		after, ok := change.After.(domain.Fulfillment)
		if !ok {
			continue
		}
		if _, known := valid[after.Status]; !known {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "fulfillment_lifecycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("fulfillment %s has unknown status %q", after.ID, after.Status),
				Entity:   domain.EntityFulfillment,
				EntityID: after.ID,
			})
			continue
		}
		if change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.Fulfillment)
		if !ok || before.Status == after.Status {
			continue
		}
		if !domain.CanTransitionFulfillment(before.Status, after.Status) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "fulfillment_lifecycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("fulfillment %s cannot move from %s to %s", after.ID, before.Status, after.Status),
				Entity:   domain.EntityFulfillment,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
