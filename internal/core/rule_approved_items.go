package core

import (
	"context"
	"fmt"

	"logisticscore/pkg/domain"
)

// NewApprovedItemsRule returns the in-transaction rule requiring every
// request at or past APPROVED to carry at least one line item.
func NewApprovedItemsRule() domain.Rule {
	return approvedItemsRule{}
}

type approvedItemsRule struct{}

func (approvedItemsRule) Name() string { return "approved_items" }

func (approvedItemsRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	approvedRank, _ := domain.StatusRank(domain.StatusApproved)
	res := domain.Result{}
	for _, request := range view.ListRequests() {
		rank, onChain := domain.StatusRank(request.Status)
		if !onChain || rank < approvedRank {
			continue
		}
		if len(view.ItemsByRequest(request.ID)) == 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "approved_items",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request %s is %s but has no items", request.ID, request.Status),
				Entity:   domain.EntityRequest,
				EntityID: request.ID,
			})
		}
	}
	return res, nil
}
