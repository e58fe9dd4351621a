package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"logisticscore/internal/infra/persistence/memory"
	"logisticscore/pkg/domain"
)

func testContext() context.Context {
	return domain.WithActor(context.Background(), "ops-1")
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func mustCreateRequest(t *testing.T, svc *Service, ctx context.Context) ResourceRequest {
	t.Helper()
	created, _, err := svc.CreateRequest(ctx, ResourceRequest{
		IncidentID: "inc-100",
		Title:      "Sandbags for levee",
		Section:    "ground-support",
		Priority:   PriorityHigh,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return created
}

func mustAddItem(t *testing.T, svc *Service, ctx context.Context, req ResourceRequest, kind string) (RequestItem, ResourceRequest) {
	t.Helper()
	item, _, err := svc.AddItem(ctx, req.ID, req.Version, RequestItem{
		Kind:        kind,
		Description: kind + " pallet",
		Quantity:    decimal.NewFromInt(10),
		Unit:        "pallet",
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	refreshed, err := svc.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	return item, refreshed
}

func TestCreateRequestStartsInDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	created := mustCreateRequest(t, svc, ctx)
	if created.Status != StatusDraft {
		t.Fatalf("expected DRAFT, got %s", created.Status)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if created.Number == "" || created.Number[:4] != "REQ-" {
		t.Fatalf("unexpected request number %q", created.Number)
	}
	if created.RequesterID != "ops-1" {
		t.Fatalf("expected requester defaulted to actor, got %q", created.RequesterID)
	}
}

func TestCreateRequestIgnoresCallerBookkeepingFields(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	stale := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	created, _, err := svc.CreateRequest(ctx, ResourceRequest{
		Base:       domain.Base{ID: "forged-id", CreatedAt: stale, UpdatedAt: stale},
		IncidentID: "inc-100",
		Title:      "Sandbags for levee",
		Section:    "ground-support",
		Priority:   PriorityHigh,
		Version:    7,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if created.ID == "forged-id" || created.ID == "" {
		t.Fatalf("expected store-assigned ID, got %q", created.ID)
	}
	if created.CreatedAt.Equal(stale) {
		t.Fatalf("expected store-assigned timestamps, got %s", created.CreatedAt)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	cases := []struct {
		name  string
		input ResourceRequest
		field string
	}{
		{"missing title", ResourceRequest{IncidentID: "inc-1", Section: "ops", Priority: PriorityLow}, "title"},
		{"missing section", ResourceRequest{IncidentID: "inc-1", Title: "x", Priority: PriorityLow}, "section"},
		{"bad priority", ResourceRequest{IncidentID: "inc-1", Title: "x", Section: "ops", Priority: "critical"}, "priority"},
		{"missing incident", ResourceRequest{Title: "x", Section: "ops", Priority: PriorityLow}, "incident_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.CreateRequest(ctx, tc.input)
			var verr domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestCreateRequestUsesIncidentResolver(t *testing.T) {
	svc := newTestService(t, WithIncidentResolver(StaticIncidentResolver("inc-active")))
	ctx := testContext()

	created, _, err := svc.CreateRequest(ctx, ResourceRequest{
		Title:    "Fuel resupply",
		Section:  "air-ops",
		Priority: PriorityUrgent,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if created.IncidentID != "inc-active" {
		t.Fatalf("expected resolved incident, got %q", created.IncidentID)
	}
}

func TestMutationsRequireActor(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.CreateRequest(context.Background(), ResourceRequest{
		IncidentID: "inc-1", Title: "x", Section: "ops", Priority: PriorityLow,
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "actor" {
		t.Fatalf("expected actor validation error, got %v", err)
	}
}

func TestVersionIncrementsOncePerMutation(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	mutations := int64(1)

	title := "Sandbags and pumps"
	req2, _, err := svc.UpdateRequest(ctx, req.ID, req.Version, RequestPatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	mutations++

	_, req3 := mustAddItem(t, svc, ctx, req2, "sandbag")
	mutations++

	if req3.Version != mutations {
		t.Fatalf("expected version %d after %d mutations, got %d", mutations, mutations, req3.Version)
	}
}

func TestUpdateRequestVersionMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	title := "changed"
	_, _, err := svc.UpdateRequest(ctx, req.ID, req.Version+5, RequestPatch{Title: &title})
	var conflict domain.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if conflict.Expected != req.Version+5 || conflict.Actual != req.Version {
		t.Fatalf("unexpected conflict payload %+v", conflict)
	}

	unchanged, err := svc.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if unchanged.Version != req.Version || unchanged.Title != req.Title {
		t.Fatalf("failed update must not change the request: %+v", unchanged)
	}
}

func TestUpdateRequestCannotChangeStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	section := "planning"
	updated, _, err := svc.UpdateRequest(ctx, req.ID, req.Version, RequestPatch{Section: &section})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusDraft {
		t.Fatalf("patch must not move status, got %s", updated.Status)
	}
	if updated.Section != "planning" {
		t.Fatalf("expected section updated, got %q", updated.Section)
	}
}

func TestUpdateRequestNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	title := "x"
	_, _, err := svc.UpdateRequest(ctx, "missing", 1, RequestPatch{Title: &title})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRequestsFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	first := mustCreateRequest(t, svc, ctx)
	mustAddItem(t, svc, ctx, first, "generator")

	_, _, err := svc.CreateRequest(ctx, ResourceRequest{
		IncidentID: "inc-200",
		Title:      "Water trailer",
		Section:    "logistics",
		Priority:   PriorityNormal,
	})
	if err != nil {
		t.Fatalf("create second request: %v", err)
	}

	byIncident, err := svc.ListRequests(ctx, RequestFilter{IncidentID: "inc-100"})
	if err != nil || len(byIncident) != 1 {
		t.Fatalf("incident filter: %v %d", err, len(byIncident))
	}
	byPriority, err := svc.ListRequests(ctx, RequestFilter{Priority: PriorityNormal})
	if err != nil || len(byPriority) != 1 || byPriority[0].Title != "Water trailer" {
		t.Fatalf("priority filter: %v %+v", err, byPriority)
	}
	byTitle, err := svc.ListRequests(ctx, RequestFilter{Search: "water"})
	if err != nil || len(byTitle) != 1 {
		t.Fatalf("title search: %v %d", err, len(byTitle))
	}
	byItem, err := svc.ListRequests(ctx, RequestFilter{Search: "GENERATOR"})
	if err != nil || len(byItem) != 1 || byItem[0].ID != first.ID {
		t.Fatalf("item description search: %v %+v", err, byItem)
	}
	none, err := svc.ListRequests(ctx, RequestFilter{Search: "helicopter"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestListRequestsMostRecentlyUpdatedFirst(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	store := memory.NewStore(NewDefaultRulesEngine())
	store.SetNowFunc(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	svc := NewService(store)
	ctx := testContext()

	titles := []string{"Sandbags", "Fuel drums", "Cots", "Tarps", "Chainsaws", "Radios"}
	created := make([]ResourceRequest, 0, len(titles))
	for _, title := range titles {
		req, _, err := svc.CreateRequest(ctx, ResourceRequest{
			IncidentID: "inc-100",
			Title:      title,
			Section:    "ground-support",
			Priority:   PriorityNormal,
		})
		if err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
		created = append(created, req)
	}

	// Touching the second-oldest request moves it to the front.
	touched := created[1]
	newTitle := "Fuel drums, diesel"
	if _, _, err := svc.UpdateRequest(ctx, touched.ID, touched.Version, RequestPatch{Title: &newTitle}); err != nil {
		t.Fatalf("update: %v", err)
	}

	listed, err := svc.ListRequests(ctx, RequestFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != len(titles) {
		t.Fatalf("expected %d requests, got %d", len(titles), len(listed))
	}
	want := []string{"Fuel drums, diesel", "Radios", "Chainsaws", "Tarps", "Cots", "Sandbags"}
	for i, r := range listed {
		if r.Title != want[i] {
			t.Fatalf("position %d: expected %q, got %q (full order %v)", i, want[i], r.Title, requestTitles(listed))
		}
	}
	for i := 1; i < len(listed); i++ {
		if listed[i].UpdatedAt.After(listed[i-1].UpdatedAt) {
			t.Fatalf("not sorted most-recently-updated first at %d: %v", i, requestTitles(listed))
		}
	}
}

func requestTitles(requests []ResourceRequest) []string {
	out := make([]string, len(requests))
	for i, r := range requests {
		out[i] = r.Title
	}
	return out
}

func TestListRequestsScopedByActiveIncident(t *testing.T) {
	svc := newTestService(t, WithIncidentResolver(StaticIncidentResolver("inc-100")))
	ctx := testContext()

	scoped := mustCreateRequest(t, svc, ctx)
	_, _, err := svc.CreateRequest(ctx, ResourceRequest{
		IncidentID: "inc-200",
		Title:      "Water trailer",
		Section:    "logistics",
		Priority:   PriorityNormal,
	})
	if err != nil {
		t.Fatalf("create second request: %v", err)
	}

	listed, err := svc.ListRequests(ctx, RequestFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != scoped.ID {
		t.Fatalf("expected only the active incident's request, got %+v", listed)
	}

	other, err := svc.ListRequests(ctx, RequestFilter{IncidentID: "inc-200"})
	if err != nil || len(other) != 1 || other[0].Title != "Water trailer" {
		t.Fatalf("explicit incident filter overrides resolver: %v %+v", err, other)
	}
}

func TestListRequestsFailsWithoutActiveIncident(t *testing.T) {
	svc := newTestService(t, WithIncidentResolver(StaticIncidentResolver("")))
	ctx := testContext()

	_, err := svc.ListRequests(ctx, RequestFilter{})
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "incident_id" {
		t.Fatalf("expected incident validation error, got %v", err)
	}
}

func TestUpdateRequestSetsAndClearsNeededBy(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	if req.NeededBy != nil {
		t.Fatalf("expected no deadline on a fresh request")
	}

	due := time.Date(2026, 9, 15, 8, 0, 0, 0, time.UTC)
	duePtr := &due
	updated, _, err := svc.UpdateRequest(ctx, req.ID, req.Version, RequestPatch{NeededBy: &duePtr})
	if err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	if updated.NeededBy == nil || !updated.NeededBy.Equal(due) {
		t.Fatalf("expected deadline %s, got %v", due, updated.NeededBy)
	}

	var cleared *time.Time
	updated, _, err = svc.UpdateRequest(ctx, req.ID, updated.Version, RequestPatch{NeededBy: &cleared})
	if err != nil {
		t.Fatalf("clear deadline: %v", err)
	}
	if updated.NeededBy != nil {
		t.Fatalf("expected deadline cleared, got %v", updated.NeededBy)
	}
}

func TestAuditTrailRecordsFieldChanges(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	title := "Sandbags, urgent"
	if _, _, err := svc.UpdateRequest(ctx, req.ID, req.Version, RequestPatch{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}

	trail := svc.ListAuditTrail(ctx, EntityRequest, req.ID)
	if len(trail) == 0 {
		t.Fatalf("expected audit rows")
	}
	for i := 1; i < len(trail); i++ {
		if trail[i].Seq <= trail[i-1].Seq {
			t.Fatalf("trail not ordered by seq: %d then %d", trail[i-1].Seq, trail[i].Seq)
		}
	}
	var sawTitle bool
	for _, row := range trail {
		if row.ActorID != "ops-1" {
			t.Fatalf("expected actor ops-1 on every row, got %q", row.ActorID)
		}
		if row.Field == "title" && row.OldValue == "Sandbags for levee" && row.NewValue == title {
			sawTitle = true
		}
	}
	if !sawTitle {
		t.Fatalf("expected title change row in trail: %+v", trail)
	}
}

func TestDeleteRequestCascadesButKeepsAudit(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	item, req2 := mustAddItem(t, svc, ctx, req, "sandbag")

	if _, err := svc.DeleteRequest(ctx, req.ID, req2.Version); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetRequest(ctx, req.ID); err == nil {
		t.Fatalf("expected request gone")
	}
	if items := svc.Store().ListItems(req.ID); len(items) != 0 {
		t.Fatalf("expected items cascade-deleted, got %d", len(items))
	}

	trail := svc.ListAuditTrail(ctx, EntityRequest, req.ID)
	if len(trail) == 0 {
		t.Fatalf("audit trail must survive deletion")
	}
	itemTrail := svc.ListAuditTrail(ctx, EntityRequestItem, item.ID)
	if len(itemTrail) == 0 {
		t.Fatalf("item audit trail must survive cascade")
	}
}

func TestDeleteRequestVersionMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	req := mustCreateRequest(t, svc, ctx)
	_, err := svc.DeleteRequest(ctx, req.ID, req.Version+1)
	var conflict domain.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFailedTransactionLeavesNoAudit(t *testing.T) {
	svc := newTestService(t)
	ctx := testContext()

	boom := errors.New("boom")
	var doomedID string
	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		created, err := tx.CreateRequest(ResourceRequest{
			IncidentID: "inc-1", Title: "doomed", Section: "ops",
			Priority: PriorityLow, Status: StatusDraft,
		})
		if err != nil {
			return err
		}
		doomedID = created.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	requests, err := svc.ListRequests(ctx, RequestFilter{})
	if err != nil || len(requests) != 0 {
		t.Fatalf("expected empty store after rollback, got %d", len(requests))
	}
	if trail := svc.ListAuditTrail(ctx, EntityRequest, doomedID); len(trail) != 0 {
		t.Fatalf("expected no audit rows after rollback, got %d", len(trail))
	}
}
