package core

import (
	"context"

	"logisticscore/pkg/domain"
)

// FulfillmentOutcome pairs a fulfillment mutation with the request's derived
// completeness, so callers can see when an update makes the request eligible
// for delivery without the engine transitioning it.
type FulfillmentOutcome struct {
	Fulfillment        Fulfillment
	Completeness       Completeness
	DeliveryEligible   bool
	EligibilityChanged bool
}

// RecordFulfillment attaches a new fulfillment to a request. Fulfillment
// changes never bump the request version; they influence the lifecycle only
// through the completeness gate on delivery.
func (s *Service) RecordFulfillment(ctx context.Context, requestID string, fulfillment Fulfillment) (FulfillmentOutcome, Result, error) {
	if _, err := requireActor(ctx); err != nil {
		return FulfillmentOutcome{}, Result{}, err
	}
	var outcome FulfillmentOutcome
	result, err := s.run(ctx, "record_fulfillment", &outcome.Fulfillment.ID, func(tx domain.Transaction) error {
		if _, err := editableRequest(tx, requestID); err != nil {
			return err
		}
		before := completenessOf(tx.Snapshot(), requestID)
		fulfillment.RequestID = requestID
		created, err := tx.CreateFulfillment(fulfillment)
		if err != nil {
			return err
		}
		after := completenessOf(tx.Snapshot(), requestID)
		outcome = FulfillmentOutcome{
			Fulfillment:        created,
			Completeness:       after,
			DeliveryEligible:   after == CompletenessComplete,
			EligibilityChanged: (before == CompletenessComplete) != (after == CompletenessComplete),
		}
		return nil
	})
	if err != nil {
		return FulfillmentOutcome{}, result, err
	}
	return outcome, result, nil
}

// UpdateFulfillmentStatus moves a fulfillment through its own state machine
// and reports the resulting delivery eligibility of the request.
func (s *Service) UpdateFulfillmentStatus(ctx context.Context, requestID, fulfillmentID string, target FulfillmentStatus) (FulfillmentOutcome, Result, error) {
	if _, err := requireActor(ctx); err != nil {
		return FulfillmentOutcome{}, Result{}, err
	}
	if _, ok := domain.ValidFulfillmentStatuses()[target]; !ok {
		return FulfillmentOutcome{}, Result{}, domain.ValidationError{Field: "status", Message: "unknown fulfillment status " + string(target)}
	}
	var outcome FulfillmentOutcome
	result, err := s.run(ctx, "update_fulfillment_status", &fulfillmentID, func(tx domain.Transaction) error {
		if _, err := editableRequest(tx, requestID); err != nil {
			return err
		}
		current, ok := tx.Snapshot().FindFulfillment(fulfillmentID)
		if !ok || current.RequestID != requestID {
			return domain.NotFoundError{Entity: EntityFulfillment, ID: fulfillmentID}
		}
		if !domain.CanTransitionFulfillment(current.Status, target) {
			return domain.InvalidTransitionError{
				Entity: EntityFulfillment,
				ID:     fulfillmentID,
				From:   string(current.Status),
				To:     string(target),
			}
		}
		before := completenessOf(tx.Snapshot(), requestID)
		updated, err := tx.UpdateFulfillment(fulfillmentID, func(f *Fulfillment) error {
			f.Status = target
			return nil
		})
		if err != nil {
			return err
		}
		after := completenessOf(tx.Snapshot(), requestID)
		outcome = FulfillmentOutcome{
			Fulfillment:        updated,
			Completeness:       after,
			DeliveryEligible:   after == CompletenessComplete,
			EligibilityChanged: (before == CompletenessComplete) != (after == CompletenessComplete),
		}
		return nil
	})
	if err != nil {
		return FulfillmentOutcome{}, result, err
	}
	return outcome, result, nil
}

// Completeness derives the current fulfillment completeness of a request
// outside any mutation, for dashboards and delivery planning.
func (s *Service) Completeness(ctx context.Context, requestID string) (Completeness, error) {
	var completeness Completeness
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindRequest(requestID); !ok {
			return domain.NotFoundError{Entity: EntityRequest, ID: requestID}
		}
		completeness = completenessOf(view, requestID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return completeness, nil
}
