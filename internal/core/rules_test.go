package core

import (
	"errors"
	"testing"

	"logisticscore/pkg/domain"
)

// Direct store writes bypass the service's validation, so the default rules
// must catch lifecycle violations at commit time.
func TestRulesBlockDirectStatusCorruption(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateRequest(req.ID, -1, func(r *ResourceRequest) error {
			r.Status = "SHIPPED"
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}

	current, getErr := svc.GetRequest(ctx, req.ID)
	if getErr != nil || current.Status != StatusDraft {
		t.Fatalf("blocked commit must not apply: %+v %v", current, getErr)
	}
}

func TestRulesBlockBackwardDirectTransition(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	outcome, _, err := svc.TransitionStatus(ctx, req.ID, req.Version, StatusSubmitted, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateRequest(req.ID, outcome.Request.Version, func(r *ResourceRequest) error {
			r.Status = StatusDraft
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
}

func TestRulesBlockApprovedRequestWithoutItems(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateRequest(req.ID, -1, func(r *ResourceRequest) error {
			r.Status = StatusApproved
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected approved-items block, got %v", err)
	}
}

func TestRulesBlockDeliveredWithoutCoverage(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	_, req = mustAddItem(t, svc, ctx, req, "generator")

	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateRequest(req.ID, -1, func(r *ResourceRequest) error {
			r.Status = StatusDelivered
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected delivered-completeness block, got %v", err)
	}
	var sawRule bool
	for _, v := range violation.Result.Violations {
		if v.Rule == "delivered_completeness" {
			sawRule = true
		}
	}
	if !sawRule {
		t.Fatalf("expected delivered_completeness violation, got %+v", violation.Result.Violations)
	}
}

func TestRulesBlockDirectFulfillmentJump(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	mustAddItem(t, svc, ctx, req, "generator")
	f, _, err := svc.RecordFulfillment(ctx, req.ID, Fulfillment{Kind: "generator"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := svc.UpdateFulfillmentStatus(ctx, req.ID, f.Fulfillment.ID, FulfillmentCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err = svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateFulfillment(f.Fulfillment.ID, func(fl *Fulfillment) error {
			fl.Status = FulfillmentDelivered
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected fulfillment lifecycle block, got %v", err)
	}
}
