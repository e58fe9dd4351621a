// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"logisticscore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// ResourceRequest aliases domain.ResourceRequest for in-memory persistence operations.
	ResourceRequest = domain.ResourceRequest
	// RequestItem aliases domain.RequestItem.
	RequestItem = domain.RequestItem
	// Approval aliases domain.Approval.
	Approval = domain.Approval
	// Fulfillment aliases domain.Fulfillment.
	Fulfillment = domain.Fulfillment
	// AuditRecord aliases domain.AuditRecord.
	AuditRecord = domain.AuditRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	requests     map[string]ResourceRequest
	items        map[string]RequestItem
	approvals    map[string]Approval
	fulfillments map[string]Fulfillment
	audits       map[string]AuditRecord
	auditSeq     uint64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Requests     map[string]ResourceRequest `json:"requests"`
	Items        map[string]RequestItem     `json:"items"`
	Approvals    map[string]Approval        `json:"approvals"`
	Fulfillments map[string]Fulfillment     `json:"fulfillments"`
	Audits       map[string]AuditRecord     `json:"audits"`
	AuditSeq     uint64                     `json:"audit_seq"`
}

func newMemoryState() memoryState {
	return memoryState{
		requests:     make(map[string]ResourceRequest),
		items:        make(map[string]RequestItem),
		approvals:    make(map[string]Approval),
		fulfillments: make(map[string]Fulfillment),
		audits:       make(map[string]AuditRecord),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Requests:     make(map[string]ResourceRequest, len(state.requests)),
		Items:        make(map[string]RequestItem, len(state.items)),
		Approvals:    make(map[string]Approval, len(state.approvals)),
		Fulfillments: make(map[string]Fulfillment, len(state.fulfillments)),
		Audits:       make(map[string]AuditRecord, len(state.audits)),
		AuditSeq:     state.auditSeq,
	}
	for k, v := range state.requests {
		s.Requests[k] = cloneRequest(v)
	}
	for k, v := range state.items {
		s.Items[k] = cloneItem(v)
	}
	for k, v := range state.approvals {
		s.Approvals[k] = cloneApproval(v)
	}
	for k, v := range state.fulfillments {
		s.Fulfillments[k] = cloneFulfillment(v)
	}
	for k, v := range state.audits {
		s.Audits[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Requests {
		state.requests[k] = cloneRequest(v)
	}
	for k, v := range s.Items {
		state.items[k] = cloneItem(v)
	}
	for k, v := range s.Approvals {
		state.approvals[k] = cloneApproval(v)
	}
	for k, v := range s.Fulfillments {
		state.fulfillments[k] = cloneFulfillment(v)
	}
	for k, v := range s.Audits {
		state.audits[k] = v
	}
	state.auditSeq = s.AuditSeq
	return state
}

// migrateSnapshot normalises snapshots loaded from durable backends: nil
// buckets become empty maps and children whose owning request no longer
// exists are dropped. Audit rows are history and are never dropped.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Requests == nil {
		snapshot.Requests = map[string]ResourceRequest{}
	}
	if snapshot.Items == nil {
		snapshot.Items = map[string]RequestItem{}
	}
	if snapshot.Approvals == nil {
		snapshot.Approvals = map[string]Approval{}
	}
	if snapshot.Fulfillments == nil {
		snapshot.Fulfillments = map[string]Fulfillment{}
	}
	if snapshot.Audits == nil {
		snapshot.Audits = map[string]AuditRecord{}
	}

	requestExists := func(id string) bool {
		_, ok := snapshot.Requests[id]
		return ok
	}

	for id, item := range snapshot.Items {
		if item.RequestID == "" || !requestExists(item.RequestID) {
			delete(snapshot.Items, id)
		}
	}
	for id, approval := range snapshot.Approvals {
		if approval.RequestID == "" || !requestExists(approval.RequestID) {
			delete(snapshot.Approvals, id)
		}
	}
	for id, fulfillment := range snapshot.Fulfillments {
		if fulfillment.RequestID == "" || !requestExists(fulfillment.RequestID) {
			delete(snapshot.Fulfillments, id)
			continue
		}
		if fulfillment.ItemID != nil {
			if _, ok := snapshot.Items[*fulfillment.ItemID]; !ok {
				fulfillment.ItemID = nil
				snapshot.Fulfillments[id] = fulfillment
			}
		}
	}

	var maxSeq uint64
	for _, record := range snapshot.Audits {
		if record.Seq > maxSeq {
			maxSeq = record.Seq
		}
	}
	if snapshot.AuditSeq < maxSeq {
		snapshot.AuditSeq = maxSeq
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.requests {
		cloned.requests[k] = cloneRequest(v)
	}
	for k, v := range s.items {
		cloned.items[k] = cloneItem(v)
	}
	for k, v := range s.approvals {
		cloned.approvals[k] = cloneApproval(v)
	}
	for k, v := range s.fulfillments {
		cloned.fulfillments[k] = cloneFulfillment(v)
	}
	for k, v := range s.audits {
		cloned.audits[k] = v
	}
	cloned.auditSeq = s.auditSeq
	return cloned
}

func cloneRequest(r ResourceRequest) ResourceRequest {
	cp := r
	if len(r.Links) != 0 {
		cp.Links = append([]string(nil), r.Links...)
	}
	cp.NeededBy = cloneTimePtr(r.NeededBy)
	return cp
}

func cloneItem(it RequestItem) RequestItem {
	cp := it
	cp.CatalogRef = cloneStringPtr(it.CatalogRef)
	return cp
}

func cloneApproval(a Approval) Approval {
	cp := a
	cp.Note = cloneStringPtr(a.Note)
	return cp
}

func cloneFulfillment(f Fulfillment) Fulfillment {
	cp := f
	cp.ItemID = cloneStringPtr(f.ItemID)
	cp.SupplierRef = cloneStringPtr(f.SupplierRef)
	cp.AssignedRef = cloneStringPtr(f.AssignedRef)
	cp.Note = cloneStringPtr(f.Note)
	cp.ETA = cloneTimePtr(f.ETA)
	return cp
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider, primarily for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	// synthetic audit rows appended explicitly during the transaction,
	// committed after the change-derived rows.
	pendingAudits []AuditRecord
	now           time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListRequests returns all requests within the transaction snapshot.
func (v transactionView) ListRequests() []ResourceRequest {
	out := make([]ResourceRequest, 0, len(v.state.requests))
	for _, r := range v.state.requests {
		out = append(out, cloneRequest(r))
	}
	return out
}

// FindRequest retrieves a request by ID from the snapshot.
func (v transactionView) FindRequest(id string) (ResourceRequest, bool) {
	r, ok := v.state.requests[id]
	if !ok {
		return ResourceRequest{}, false
	}
	return cloneRequest(r), true
}

// FindItem retrieves a line item by ID from the snapshot.
func (v transactionView) FindItem(id string) (RequestItem, bool) {
	it, ok := v.state.items[id]
	if !ok {
		return RequestItem{}, false
	}
	return cloneItem(it), true
}

// FindFulfillment retrieves a fulfillment by ID from the snapshot.
func (v transactionView) FindFulfillment(id string) (Fulfillment, bool) {
	f, ok := v.state.fulfillments[id]
	if !ok {
		return Fulfillment{}, false
	}
	return cloneFulfillment(f), true
}

// ItemsByRequest returns the line items owned by a request, oldest first.
func (v transactionView) ItemsByRequest(requestID string) []RequestItem {
	return itemsByRequest(v.state, requestID)
}

// ApprovalsByRequest returns the approval records of a request, oldest first.
func (v transactionView) ApprovalsByRequest(requestID string) []Approval {
	return approvalsByRequest(v.state, requestID)
}

// FulfillmentsByRequest returns the fulfillments of a request, oldest first.
func (v transactionView) FulfillmentsByRequest(requestID string) []Fulfillment {
	return fulfillmentsByRequest(v.state, requestID)
}

func itemsByRequest(state *memoryState, requestID string) []RequestItem {
	var out []RequestItem
	for _, it := range state.items {
		if it.RequestID == requestID {
			out = append(out, cloneItem(it))
		}
	}
	sortByCreation(out, func(it RequestItem) (time.Time, string) { return it.CreatedAt, it.ID })
	return out
}

func approvalsByRequest(state *memoryState, requestID string) []Approval {
	var out []Approval
	for _, a := range state.approvals {
		if a.RequestID == requestID {
			out = append(out, cloneApproval(a))
		}
	}
	sortByCreation(out, func(a Approval) (time.Time, string) { return a.CreatedAt, a.ID })
	return out
}

func fulfillmentsByRequest(state *memoryState, requestID string) []Fulfillment {
	var out []Fulfillment
	for _, f := range state.fulfillments {
		if f.RequestID == requestID {
			out = append(out, cloneFulfillment(f))
		}
	}
	sortByCreation(out, func(f Fulfillment) (time.Time, string) { return f.CreatedAt, f.ID })
	return out
}

func sortByCreation[T any](values []T, key func(T) (time.Time, string)) {
	sort.Slice(values, func(i, j int) bool {
		ti, idi := key(values[i])
		tj, idj := key(values[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return idi < idj
	})
}

// RunInTransaction executes fn within a transactional copy of the store
// state. On success the rules engine evaluates the post-state, audit rows
// are derived from the recorded changes, and the state is swapped in; any
// failure discards changes and audit rows together.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	actor, _ := domain.ActorFrom(ctx)
	tx.commitAudits(actor)

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(id string) (ResourceRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.requests[id]
	if !ok {
		return ResourceRequest{}, false
	}
	return cloneRequest(r), true
}

// ListRequests returns all requests, most recently updated first.
func (s *Store) ListRequests() []ResourceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResourceRequest, 0, len(s.state.requests))
	for _, r := range s.state.requests {
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListItems returns the line items of a request, oldest first.
func (s *Store) ListItems(requestID string) []RequestItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return itemsByRequest(&s.state, requestID)
}

// ListApprovals returns the approval records of a request, oldest first.
func (s *Store) ListApprovals(requestID string) []Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return approvalsByRequest(&s.state, requestID)
}

// ListFulfillments returns the fulfillments of a request, oldest first.
func (s *Store) ListFulfillments(requestID string) []Fulfillment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fulfillmentsByRequest(&s.state, requestID)
}

// ListAuditTrail returns the audit rows of an entity in sequence order,
// oldest first. Rows survive deletion of the entity they describe.
func (s *Store) ListAuditTrail(entity domain.EntityType, entityID string) []AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AuditRecord
	for _, record := range s.state.audits {
		if record.Entity == entity && record.EntityID == entityID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindRequest exposes request lookup within the transaction scope.
func (tx *transaction) FindRequest(id string) (ResourceRequest, bool) {
	r, ok := tx.state.requests[id]
	if !ok {
		return ResourceRequest{}, false
	}
	return cloneRequest(r), true
}

// CreateRequest stores a new request within the transaction.
func (tx *transaction) CreateRequest(r ResourceRequest) (ResourceRequest, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.requests[r.ID]; exists {
		return ResourceRequest{}, domain.ConstraintViolationError{Message: fmt.Sprintf("request %q already exists", r.ID)}
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	if r.Version == 0 {
		r.Version = 1
	}
	tx.state.requests[r.ID] = cloneRequest(r)
	tx.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionCreate, After: cloneRequest(r)})
	return cloneRequest(r), nil
}

// UpdateRequest mutates a request under the optimistic version check. A
// negative expectedVersion skips the check for internal follow-up writes
// within the same logical operation.
func (tx *transaction) UpdateRequest(id string, expectedVersion int64, mutator func(*ResourceRequest) error) (ResourceRequest, error) {
	current, ok := tx.state.requests[id]
	if !ok {
		return ResourceRequest{}, domain.NotFoundError{Entity: domain.EntityRequest, ID: id}
	}
	if expectedVersion >= 0 && current.Version != expectedVersion {
		return ResourceRequest{}, domain.ConcurrencyConflictError{
			Entity:   domain.EntityRequest,
			ID:       id,
			Expected: expectedVersion,
			Actual:   current.Version,
		}
	}
	before := cloneRequest(current)
	if err := mutator(&current); err != nil {
		return ResourceRequest{}, err
	}
	current.ID = id
	current.Version = before.Version + 1
	current.UpdatedAt = tx.now
	tx.state.requests[id] = cloneRequest(current)
	tx.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionUpdate, Before: before, After: cloneRequest(current)})
	return cloneRequest(current), nil
}

// DeleteRequest removes a request and cascades to its items, approvals, and
// fulfillments. Audit rows are left untouched.
func (tx *transaction) DeleteRequest(id string) error {
	current, ok := tx.state.requests[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRequest, ID: id}
	}
	for _, it := range itemsByRequest(&tx.state, id) {
		delete(tx.state.items, it.ID)
		tx.recordChange(Change{Entity: domain.EntityRequestItem, Action: domain.ActionDelete, Before: it})
	}
	for _, a := range approvalsByRequest(&tx.state, id) {
		delete(tx.state.approvals, a.ID)
		tx.recordChange(Change{Entity: domain.EntityApproval, Action: domain.ActionDelete, Before: a})
	}
	for _, f := range fulfillmentsByRequest(&tx.state, id) {
		delete(tx.state.fulfillments, f.ID)
		tx.recordChange(Change{Entity: domain.EntityFulfillment, Action: domain.ActionDelete, Before: f})
	}
	delete(tx.state.requests, id)
	tx.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionDelete, Before: cloneRequest(current)})
	return nil
}

// CreateItem stores a new line item owned by an existing request.
func (tx *transaction) CreateItem(it RequestItem) (RequestItem, error) {
	if it.ID == "" {
		it.ID = tx.store.newID()
	}
	if _, exists := tx.state.items[it.ID]; exists {
		return RequestItem{}, domain.ConstraintViolationError{Message: fmt.Sprintf("item %q already exists", it.ID)}
	}
	if _, ok := tx.state.requests[it.RequestID]; !ok {
		return RequestItem{}, domain.ConstraintViolationError{Message: fmt.Sprintf("request %q does not exist", it.RequestID)}
	}
	if !it.Quantity.IsPositive() {
		return RequestItem{}, domain.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	it.CreatedAt = tx.now
	it.UpdatedAt = tx.now
	tx.state.items[it.ID] = cloneItem(it)
	tx.recordChange(Change{Entity: domain.EntityRequestItem, Action: domain.ActionCreate, After: cloneItem(it)})
	return cloneItem(it), nil
}

// UpdateItem mutates an existing line item.
func (tx *transaction) UpdateItem(id string, mutator func(*RequestItem) error) (RequestItem, error) {
	current, ok := tx.state.items[id]
	if !ok {
		return RequestItem{}, domain.NotFoundError{Entity: domain.EntityRequestItem, ID: id}
	}
	before := cloneItem(current)
	if err := mutator(&current); err != nil {
		return RequestItem{}, err
	}
	if !current.Quantity.IsPositive() {
		return RequestItem{}, domain.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	current.ID = id
	current.RequestID = before.RequestID
	current.UpdatedAt = tx.now
	tx.state.items[id] = cloneItem(current)
	tx.recordChange(Change{Entity: domain.EntityRequestItem, Action: domain.ActionUpdate, Before: before, After: cloneItem(current)})
	return cloneItem(current), nil
}

// DeleteItem removes a line item.
func (tx *transaction) DeleteItem(id string) error {
	current, ok := tx.state.items[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRequestItem, ID: id}
	}
	delete(tx.state.items, id)
	tx.recordChange(Change{Entity: domain.EntityRequestItem, Action: domain.ActionDelete, Before: cloneItem(current)})
	return nil
}

// CreateApproval appends an approval-chain record. Approvals are append-only
// and expose no update or delete operation.
func (tx *transaction) CreateApproval(a Approval) (Approval, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.approvals[a.ID]; exists {
		return Approval{}, domain.ConstraintViolationError{Message: fmt.Sprintf("approval %q already exists", a.ID)}
	}
	if _, ok := tx.state.requests[a.RequestID]; !ok {
		return Approval{}, domain.ConstraintViolationError{Message: fmt.Sprintf("request %q does not exist", a.RequestID)}
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.approvals[a.ID] = cloneApproval(a)
	tx.recordChange(Change{Entity: domain.EntityApproval, Action: domain.ActionCreate, After: cloneApproval(a)})
	return cloneApproval(a), nil
}

// CreateFulfillment stores a new fulfillment attempt.
func (tx *transaction) CreateFulfillment(f Fulfillment) (Fulfillment, error) {
	if f.ID == "" {
		f.ID = tx.store.newID()
	}
	if _, exists := tx.state.fulfillments[f.ID]; exists {
		return Fulfillment{}, domain.ConstraintViolationError{Message: fmt.Sprintf("fulfillment %q already exists", f.ID)}
	}
	if _, ok := tx.state.requests[f.RequestID]; !ok {
		return Fulfillment{}, domain.ConstraintViolationError{Message: fmt.Sprintf("request %q does not exist", f.RequestID)}
	}
	if f.ItemID != nil {
		item, ok := tx.state.items[*f.ItemID]
		if !ok || item.RequestID != f.RequestID {
			return Fulfillment{}, domain.ConstraintViolationError{Message: fmt.Sprintf("item %q does not belong to request %q", *f.ItemID, f.RequestID)}
		}
	}
	if f.Status == "" {
		f.Status = domain.FulfillmentPending
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.fulfillments[f.ID] = cloneFulfillment(f)
	tx.recordChange(Change{Entity: domain.EntityFulfillment, Action: domain.ActionCreate, After: cloneFulfillment(f)})
	return cloneFulfillment(f), nil
}

// UpdateFulfillment mutates an existing fulfillment.
func (tx *transaction) UpdateFulfillment(id string, mutator func(*Fulfillment) error) (Fulfillment, error) {
	current, ok := tx.state.fulfillments[id]
	if !ok {
		return Fulfillment{}, domain.NotFoundError{Entity: domain.EntityFulfillment, ID: id}
	}
	before := cloneFulfillment(current)
	if err := mutator(&current); err != nil {
		return Fulfillment{}, err
	}
	current.ID = id
	current.RequestID = before.RequestID
	current.UpdatedAt = tx.now
	tx.state.fulfillments[id] = cloneFulfillment(current)
	tx.recordChange(Change{Entity: domain.EntityFulfillment, Action: domain.ActionUpdate, Before: before, After: cloneFulfillment(current)})
	return cloneFulfillment(current), nil
}

// DeleteFulfillment removes a fulfillment attempt.
func (tx *transaction) DeleteFulfillment(id string) error {
	current, ok := tx.state.fulfillments[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityFulfillment, ID: id}
	}
	delete(tx.state.fulfillments, id)
	tx.recordChange(Change{Entity: domain.EntityFulfillment, Action: domain.ActionDelete, Before: cloneFulfillment(current)})
	return nil
}

// AppendAudit queues a synthetic audit row carrying a field the change diff
// cannot derive, such as the auto-downgrade marker.
func (tx *transaction) AppendAudit(entity domain.EntityType, entityID, requestID, field, oldValue, newValue string) {
	tx.pendingAudits = append(tx.pendingAudits, AuditRecord{
		Entity:    entity,
		EntityID:  entityID,
		RequestID: requestID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
}

// commitAudits derives one audit row per changed field from the recorded
// changes, then appends the queued synthetic rows. Runs with the store lock
// held, immediately before the state swap.
func (tx *transaction) commitAudits(actor string) {
	appendRow := func(entity domain.EntityType, entityID, requestID string, change domain.FieldChange) {
		tx.state.auditSeq++
		record := AuditRecord{
			ID:         tx.store.newID(),
			Seq:        tx.state.auditSeq,
			Entity:     entity,
			EntityID:   entityID,
			RequestID:  requestID,
			ActorID:    actor,
			Field:      change.Name,
			OldValue:   change.Old,
			NewValue:   change.New,
			RecordedAt: tx.now,
		}
		tx.state.audits[record.ID] = record
	}

	for _, change := range tx.changes {
		entityID, requestID, fieldChanges := diffChange(change)
		for _, fc := range fieldChanges {
			appendRow(change.Entity, entityID, requestID, fc)
		}
	}
	for _, pending := range tx.pendingAudits {
		appendRow(pending.Entity, pending.EntityID, pending.RequestID, domain.FieldChange{
			Name: pending.Field,
			Old:  pending.OldValue,
			New:  pending.NewValue,
		})
	}
}

func diffChange(change Change) (entityID, requestID string, fields []domain.FieldChange) {
	switch change.Entity {
	case domain.EntityRequest:
		var beforeFields, afterFields []domain.Field
		if r, ok := change.Before.(ResourceRequest); ok {
			beforeFields = domain.RequestFields(r)
			entityID, requestID = r.ID, r.ID
		}
		if r, ok := change.After.(ResourceRequest); ok {
			afterFields = domain.RequestFields(r)
			entityID, requestID = r.ID, r.ID
		}
		return entityID, requestID, domain.DiffFields(beforeFields, afterFields)
	case domain.EntityRequestItem:
		var beforeFields, afterFields []domain.Field
		if it, ok := change.Before.(RequestItem); ok {
			beforeFields = domain.ItemFields(it)
			entityID, requestID = it.ID, it.RequestID
		}
		if it, ok := change.After.(RequestItem); ok {
			afterFields = domain.ItemFields(it)
			entityID, requestID = it.ID, it.RequestID
		}
		return entityID, requestID, domain.DiffFields(beforeFields, afterFields)
	case domain.EntityApproval:
		var beforeFields, afterFields []domain.Field
		if a, ok := change.Before.(Approval); ok {
			beforeFields = domain.ApprovalFields(a)
			entityID, requestID = a.ID, a.RequestID
		}
		if a, ok := change.After.(Approval); ok {
			afterFields = domain.ApprovalFields(a)
			entityID, requestID = a.ID, a.RequestID
		}
		return entityID, requestID, domain.DiffFields(beforeFields, afterFields)
	case domain.EntityFulfillment:
		var beforeFields, afterFields []domain.Field
		if f, ok := change.Before.(Fulfillment); ok {
			beforeFields = domain.FulfillmentFields(f)
			entityID, requestID = f.ID, f.RequestID
		}
		if f, ok := change.After.(Fulfillment); ok {
			afterFields = domain.FulfillmentFields(f)
			entityID, requestID = f.ID, f.RequestID
		}
		return entityID, requestID, domain.DiffFields(beforeFields, afterFields)
	default:
		return "", "", nil
	}
}
