package core

import (
	"context"
	"fmt"

	"logisticscore/pkg/domain"
)

// NewRequestLifecycleRule returns the in-transaction rule enforcing the
// request status machine on every request update.
func NewRequestLifecycleRule() domain.Rule {
	return requestLifecycleRule{}
}

type requestLifecycleRule struct{}

func (requestLifecycleRule) Name() string { return "request_lifecycle" }

func (requestLifecycleRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	valid := domain.ValidRequestStatuses()
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRequest {
			continue
		}
		after, ok := change.After.(domain.ResourceRequest)
		if !ok {
			continue
		}
		if _, known := valid[after.Status]; !known {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "request_lifecycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request %s has unknown status %q", after.ID, after.Status),
				Entity:   domain.EntityRequest,
				EntityID: after.ID,
			})
			continue
		}
		if change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.ResourceRequest)
		if !ok || before.Status == after.Status {
			continue
		}
		if !domain.CanTransition(before.Status, after.Status) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "request_lifecycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request %s cannot move from %s to %s", after.ID, before.Status, after.Status),
				Entity:   domain.EntityRequest,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
