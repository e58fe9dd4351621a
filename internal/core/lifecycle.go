package core

import (
	"context"
	"strings"

	"logisticscore/pkg/domain"
)

// TransitionOutcome reports the result of a status transition, including
// whether the engine downgraded a delivery attempt that fulfillment state
// could not support.
type TransitionOutcome struct {
	Request         ResourceRequest
	RequestedStatus RequestStatus
	AppliedStatus   RequestStatus
	AutoAdjusted    bool
	Completeness    Completeness
}

// fulfillmentView is the slice of a transaction view completeness derivation
// needs, satisfied by both TransactionView and RuleView.
type fulfillmentView interface {
	ItemsByRequest(requestID string) []RequestItem
	FulfillmentsByRequest(requestID string) []Fulfillment
}

// completenessOf derives the aggregate fulfillment signal for a request. An
// item is covered when a delivered fulfillment targets it directly or, for
// untargeted fulfillments, matches its kind.
func completenessOf(view fulfillmentView, requestID string) Completeness {
	fulfillments := view.FulfillmentsByRequest(requestID)
	if len(fulfillments) == 0 {
		return CompletenessNone
	}
	items := view.ItemsByRequest(requestID)
	if len(items) == 0 {
		return CompletenessNone
	}
	covered := 0
	for _, item := range items {
		if itemCovered(item, fulfillments) {
			covered++
		}
	}
	switch covered {
	case len(items):
		return CompletenessComplete
	case 0:
		return CompletenessNone
	default:
		return CompletenessPartial
	}
}

func itemCovered(item RequestItem, fulfillments []Fulfillment) bool {
	for _, f := range fulfillments {
		if f.Status != FulfillmentDelivered {
			continue
		}
		if f.ItemID != nil {
			if *f.ItemID == item.ID {
				return true
			}
			continue
		}
		if f.Kind != "" && strings.EqualFold(f.Kind, item.Kind) {
			return true
		}
	}
	return false
}

// TransitionStatus moves a request toward the given target status. A
// DELIVERED target is gated on fulfillment completeness: when not every item
// is covered the engine applies the nearest supportable status instead and
// records the adjustment in the audit trail. A terminal approval-chain
// action (submit, review, approve, deny, cancel) is appended whenever the
// applied status has one.
func (s *Service) TransitionStatus(ctx context.Context, id string, expectedVersion int64, target RequestStatus, note *string) (TransitionOutcome, Result, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return TransitionOutcome{}, Result{}, err
	}
	if _, ok := domain.ValidRequestStatuses()[target]; !ok {
		return TransitionOutcome{}, Result{}, domain.ValidationError{Field: "status", Message: "unknown status " + string(target)}
	}

	var outcome TransitionOutcome
	result, err := s.run(ctx, "transition_status", &id, func(tx domain.Transaction) error {
		current, ok := tx.FindRequest(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityRequest, ID: id}
		}
		if !domain.CanTransition(current.Status, target) {
			return domain.InvalidTransitionError{
				Entity: EntityRequest,
				ID:     id,
				From:   string(current.Status),
				To:     string(target),
			}
		}
		view := tx.Snapshot()
		if rank, onChain := domain.StatusRank(target); onChain {
			approvedRank, _ := domain.StatusRank(StatusApproved)
			if rank >= approvedRank && len(view.ItemsByRequest(id)) == 0 {
				return domain.ValidationError{Field: "items", Message: "request " + id + " has no items and cannot advance past review"}
			}
		}

		completeness := completenessOf(view, id)
		applied := target
		autoAdjusted := false
		if target == StatusDelivered && completeness != CompletenessComplete {
			fallback := domain.DeliveryFallback(completeness)
			fallbackRank, _ := domain.StatusRank(fallback)
			currentRank, onChain := domain.StatusRank(current.Status)
			if onChain && fallbackRank < currentRank {
				fallback = current.Status
			}
			applied = fallback
			autoAdjusted = true
		}
		// Even when the downgrade lands on the current status the attempt is
		// still a mutation: the version advances and the adjustment is
		// recorded below.
		updated, err := tx.UpdateRequest(id, expectedVersion, func(r *ResourceRequest) error {
			r.Status = applied
			return nil
		})
		if err != nil {
			return err
		}
		if autoAdjusted {
			tx.AppendAudit(EntityRequest, id, id, domain.FieldStatusAuto, string(target), string(applied))
		}
		if action, ok := domain.ApprovalActionFor(applied); ok {
			if _, err := tx.CreateApproval(Approval{
				RequestID: id,
				Action:    action,
				ActorID:   actor,
				Note:      note,
			}); err != nil {
				return err
			}
		}
		outcome = TransitionOutcome{
			Request:         updated,
			RequestedStatus: target,
			AppliedStatus:   applied,
			AutoAdjusted:    autoAdjusted,
			Completeness:    completeness,
		}
		return nil
	})
	if err != nil {
		return TransitionOutcome{}, result, err
	}
	return outcome, result, nil
}
