package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. UpdateRequest enforces the optimistic
// version check and bumps the version on success; a negative expectedVersion
// skips the check for internal follow-up writes within the same operation.
type Transaction interface {
	Snapshot() TransactionView
	CreateRequest(ResourceRequest) (ResourceRequest, error)
	UpdateRequest(id string, expectedVersion int64, mutator func(*ResourceRequest) error) (ResourceRequest, error)
	DeleteRequest(id string) error
	CreateItem(RequestItem) (RequestItem, error)
	UpdateItem(id string, mutator func(*RequestItem) error) (RequestItem, error)
	DeleteItem(id string) error
	CreateApproval(Approval) (Approval, error)
	CreateFulfillment(Fulfillment) (Fulfillment, error)
	UpdateFulfillment(id string, mutator func(*Fulfillment) error) (Fulfillment, error)
	DeleteFulfillment(id string) error
	AppendAudit(entity EntityType, entityID, requestID, field, oldValue, newValue string)
	FindRequest(id string) (ResourceRequest, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// in-transaction reads.
type TransactionView interface {
	ListRequests() []ResourceRequest
	FindRequest(id string) (ResourceRequest, bool)
	FindItem(id string) (RequestItem, bool)
	FindFulfillment(id string) (Fulfillment, bool)
	ItemsByRequest(requestID string) []RequestItem
	ApprovalsByRequest(requestID string) []Approval
	FulfillmentsByRequest(requestID string) []Fulfillment
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRequest(id string) (ResourceRequest, bool)
	ListRequests() []ResourceRequest
	ListItems(requestID string) []RequestItem
	ListApprovals(requestID string) []Approval
	ListFulfillments(requestID string) []Fulfillment
	ListAuditTrail(entity EntityType, entityID string) []AuditRecord
}
