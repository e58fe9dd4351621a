package core

import (
	"context"
	"fmt"

	"logisticscore/pkg/domain"
)

// NewDeliveredCompletenessRule returns the in-transaction rule blocking any
// commit that leaves a DELIVERED request without full fulfillment coverage.
// The service never produces such a state; the rule catches writers that go
// to the store directly.
func NewDeliveredCompletenessRule() domain.Rule {
	return deliveredCompletenessRule{}
}

type deliveredCompletenessRule struct{}

func (deliveredCompletenessRule) Name() string { return "delivered_completeness" }

func (deliveredCompletenessRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, request := range view.ListRequests() {
		if request.Status != domain.StatusDelivered {
			continue
		}
		if completeness := completenessOf(view, request.ID); completeness != domain.CompletenessComplete {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "delivered_completeness",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request %s is DELIVERED with %s fulfillment coverage", request.ID, completeness),
				Entity:   domain.EntityRequest,
				EntityID: request.ID,
			})
		}
	}
	return res, nil
}
