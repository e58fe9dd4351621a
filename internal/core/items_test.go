package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"logisticscore/pkg/domain"
)

func TestAddItemBumpsRequestVersion(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	item, refreshed := mustAddItem(t, svc, ctx, req, "sandbag")
	if refreshed.Version != req.Version+1 {
		t.Fatalf("expected version bump, got %d", refreshed.Version)
	}
	if item.RequestID != req.ID {
		t.Fatalf("item bound to wrong request: %q", item.RequestID)
	}
	items, err := svc.ListItems(ctx, req.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("list items: %v %d", err, len(items))
	}
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	_, _, err := svc.AddItem(ctx, req.ID, req.Version, RequestItem{
		Kind:     "fuel",
		Quantity: decimal.Zero,
		Unit:     "liter",
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "quantity" {
		t.Fatalf("expected quantity validation error, got %v", err)
	}

	unchanged, err := svc.GetRequest(ctx, req.ID)
	if err != nil || unchanged.Version != req.Version {
		t.Fatalf("failed add must not bump version: %+v %v", unchanged, err)
	}
}

func TestUpdateItemBumpsRequestVersion(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	item, req2 := mustAddItem(t, svc, ctx, req, "sandbag")

	updated, _, err := svc.UpdateItem(ctx, req.ID, item.ID, req2.Version, func(i *RequestItem) error {
		i.Quantity = decimal.NewFromInt(25)
		return nil
	})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if !updated.Quantity.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("quantity not updated: %s", updated.Quantity)
	}
	refreshed, _ := svc.GetRequest(ctx, req.ID)
	if refreshed.Version != req2.Version+1 {
		t.Fatalf("expected version bump, got %d", refreshed.Version)
	}
}

func TestRemoveItemKeepsApprovedRequestsNonEmpty(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	item, req2 := mustAddItem(t, svc, ctx, req, "sandbag")

	approved, _, err := svc.TransitionStatus(ctx, req.ID, req2.Version, StatusApproved, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = svc.RemoveItem(ctx, req.ID, item.ID, approved.Request.Version)
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "items" {
		t.Fatalf("expected last-item validation error, got %v", err)
	}
}

func TestRemoveItemInDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	item, req2 := mustAddItem(t, svc, ctx, req, "sandbag")

	if _, err := svc.RemoveItem(ctx, req.ID, item.ID, req2.Version); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items, err := svc.ListItems(ctx, req.ID)
	if err != nil || len(items) != 0 {
		t.Fatalf("expected item removed: %v %d", err, len(items))
	}
	refreshed, _ := svc.GetRequest(ctx, req.ID)
	if refreshed.Version != req2.Version+1 {
		t.Fatalf("expected version bump, got %d", refreshed.Version)
	}
}

func TestItemOpsRejectForeignItems(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	first := mustCreateRequest(t, svc, ctx)
	item, _ := mustAddItem(t, svc, ctx, first, "sandbag")

	second, _, err := svc.CreateRequest(ctx, ResourceRequest{
		IncidentID: "inc-100", Title: "Other", Section: "ops", Priority: PriorityLow,
	})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	_, err = svc.RemoveItem(ctx, second.ID, item.ID, second.Version)
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found for foreign item, got %v", err)
	}
}

func TestConcurrentUpdatesConflictExactlyOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)

	const writers = 2
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			title := "writer"
			_, _, errs[n] = svc.UpdateRequest(ctx, req.ID, req.Version, RequestPatch{Title: &title})
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		var conflict domain.ConcurrencyConflictError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected one winner and one conflict, got %d/%d", successes, conflicts)
	}

	final, _ := svc.GetRequest(ctx, req.ID)
	if final.Version != req.Version+1 {
		t.Fatalf("expected exactly one version bump, got %d", final.Version)
	}
}
