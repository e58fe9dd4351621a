package core

import "logisticscore/pkg/domain"

type (
	EntityType         = domain.EntityType
	RequestStatus      = domain.RequestStatus
	FulfillmentStatus  = domain.FulfillmentStatus
	Priority           = domain.Priority
	ApprovalAction     = domain.ApprovalAction
	Completeness       = domain.Completeness
	Severity           = domain.Severity
	Base               = domain.Base
	ResourceRequest    = domain.ResourceRequest
	RequestItem        = domain.RequestItem
	Approval           = domain.Approval
	Fulfillment        = domain.Fulfillment
	AuditRecord        = domain.AuditRecord
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
)

const (
	EntityRequest     = domain.EntityRequest
	EntityRequestItem = domain.EntityRequestItem
	EntityApproval    = domain.EntityApproval
	EntityFulfillment = domain.EntityFulfillment
	EntityAudit       = domain.EntityAudit
)

const (
	StatusDraft     = domain.StatusDraft
	StatusSubmitted = domain.StatusSubmitted
	StatusReviewed  = domain.StatusReviewed
	StatusApproved  = domain.StatusApproved
	StatusAssigned  = domain.StatusAssigned
	StatusInTransit = domain.StatusInTransit
	StatusDelivered = domain.StatusDelivered
	StatusClosed    = domain.StatusClosed
	StatusDenied    = domain.StatusDenied
	StatusCancelled = domain.StatusCancelled
)

const (
	FulfillmentPending   = domain.FulfillmentPending
	FulfillmentAssigned  = domain.FulfillmentAssigned
	FulfillmentInTransit = domain.FulfillmentInTransit
	FulfillmentDelivered = domain.FulfillmentDelivered
	FulfillmentCancelled = domain.FulfillmentCancelled
)

const (
	CompletenessComplete = domain.CompletenessComplete
	CompletenessPartial  = domain.CompletenessPartial
	CompletenessNone     = domain.CompletenessNone
)

const (
	PriorityLow    = domain.PriorityLow
	PriorityNormal = domain.PriorityNormal
	PriorityHigh   = domain.PriorityHigh
	PriorityUrgent = domain.PriorityUrgent
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
