// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by logisticscore.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, audit rows, and
// persistence buckets.
const (
	// EntityRequest identifies a resource request record.
	EntityRequest EntityType = "resource_request"
	// EntityRequestItem identifies a request line item record.
	EntityRequestItem EntityType = "request_item"
	// EntityApproval identifies an approval-chain action record.
	EntityApproval EntityType = "request_approval"
	// EntityFulfillment identifies a fulfillment attempt record.
	EntityFulfillment EntityType = "fulfillment"
	// EntityAudit identifies a field-level audit log row.
	EntityAudit EntityType = "audit_record"
)

// RequestStatus enumerates the resource request lifecycle states.
type RequestStatus string

// Canonical request statuses. The forward chain runs draft through closed;
// denied and cancelled branch off per the transition table in transitions.go.
const (
	StatusDraft     RequestStatus = "DRAFT"
	StatusSubmitted RequestStatus = "SUBMITTED"
	StatusReviewed  RequestStatus = "REVIEWED"
	StatusApproved  RequestStatus = "APPROVED"
	StatusAssigned  RequestStatus = "ASSIGNED"
	StatusInTransit RequestStatus = "INTRANSIT"
	StatusDelivered RequestStatus = "DELIVERED"
	StatusClosed    RequestStatus = "CLOSED"
	StatusDenied    RequestStatus = "DENIED"
	StatusCancelled RequestStatus = "CANCELLED"
)

// FulfillmentStatus enumerates fulfillment attempt states.
type FulfillmentStatus string

// Canonical fulfillment statuses used for completeness aggregation.
const (
	FulfillmentPending   FulfillmentStatus = "PENDING"
	FulfillmentAssigned  FulfillmentStatus = "ASSIGNED"
	FulfillmentInTransit FulfillmentStatus = "INTRANSIT"
	FulfillmentDelivered FulfillmentStatus = "DELIVERED"
	FulfillmentCancelled FulfillmentStatus = "CANCELLED"
)

// Priority ranks a request for dispatch ordering. Labels are configuration
// concerns; the engine only relies on the canonical set below.
type Priority string

// Canonical request priorities.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ApprovalAction enumerates approval-chain action kinds recorded when a
// request crosses the corresponding lifecycle boundary.
type ApprovalAction string

// Canonical approval actions.
const (
	ApprovalSubmit  ApprovalAction = "submit"
	ApprovalReview  ApprovalAction = "review"
	ApprovalApprove ApprovalAction = "approve"
	ApprovalDeny    ApprovalAction = "deny"
	ApprovalCancel  ApprovalAction = "cancel"
)

// Completeness is the aggregate fulfillment signal derived for a request.
type Completeness string

// Completeness levels consumed by the lifecycle state machine.
const (
	// CompletenessComplete means every line item is covered by a delivered
	// fulfillment.
	CompletenessComplete Completeness = "complete"
	// CompletenessPartial means some but not all items are covered while at
	// least one fulfillment exists.
	CompletenessPartial Completeness = "partial"
	CompletenessNone    Completeness = "none"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResourceRequest is the root aggregate of the engine: one row per logistics
// request raised against an incident. Version increases by exactly one on
// every successful mutation and is the sole optimistic-concurrency token.
type ResourceRequest struct {
	Base
	Number           string        `json:"number"`
	IncidentID       string        `json:"incident_id"`
	Title            string        `json:"title"`
	Section          string        `json:"section"`
	Priority         Priority      `json:"priority"`
	Status           RequestStatus `json:"status"`
	RequesterID      string        `json:"requester_id"`
	Justification    string        `json:"justification"`
	DeliveryLocation string        `json:"delivery_location"`
	Comms            string        `json:"comms"`
	Links            []string      `json:"links"`
	NeededBy         *time.Time    `json:"needed_by"`
	Training         bool          `json:"training"`
	Version          int64         `json:"version"`
}

// RequestItem is a line item owned by exactly one request and cascade-deleted
// with it. Quantity must be strictly positive.
type RequestItem struct {
	Base
	RequestID    string          `json:"request_id"`
	Kind         string          `json:"kind"`
	CatalogRef   *string         `json:"catalog_ref,omitempty"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Instructions string          `json:"instructions"`
}

// Approval is an append-only record of an approval-chain action. Once written
// it is never updated or deleted.
type Approval struct {
	Base
	RequestID string         `json:"request_id"`
	Action    ApprovalAction `json:"action"`
	ActorID   string         `json:"actor_id"`
	Note      *string        `json:"note,omitempty"`
}

// Fulfillment tracks one attempt, full or partial, to satisfy a request.
// Kind and the optional ItemID drive completeness matching against line
// items.
type Fulfillment struct {
	Base
	RequestID   string            `json:"request_id"`
	ItemID      *string           `json:"item_id,omitempty"`
	Kind        string            `json:"kind"`
	SupplierRef *string           `json:"supplier_ref,omitempty"`
	AssignedRef *string           `json:"assigned_ref,omitempty"`
	ETA         *time.Time        `json:"eta"`
	Status      FulfillmentStatus `json:"status"`
	Note        *string           `json:"note,omitempty"`
}

// AuditRecord is one write-once row per individual field change. Records
// survive deletion of the entity they describe; Seq is assigned by the store
// and strictly increases, giving a stable oldest-first order.
type AuditRecord struct {
	ID         string     `json:"id"`
	Seq        uint64     `json:"seq"`
	Entity     EntityType `json:"entity"`
	EntityID   string     `json:"entity_id"`
	RequestID  string     `json:"request_id"`
	ActorID    string     `json:"actor_id"`
	Field      string     `json:"field"`
	OldValue   string     `json:"old_value"`
	NewValue   string     `json:"new_value"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in the audit
// trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
