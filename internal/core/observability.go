package core

import (
	"context"
	"time"

	"logisticscore/pkg/domain"
)

// Logger is the minimal structured logging interface used by the service.
// Arguments are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus reports the outcome recorded in an operation-level audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one completed service operation for operational audit
// sinks. It is distinct from the field-level domain audit trail: entries here
// cover the operation envelope, not individual field changes.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	EntityID  string
	Action    Action
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives operation-level audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes for metrics export.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer creates spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span started by a Tracer.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Clock supplies the current time for audit timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface. A nil function falls
// back to the system clock; all times are normalized to UTC.
type ClockFunc func() time.Time

// Now returns the clock's current time in UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// extractRulesEngine returns the engine backing a store when the store
// exposes one, so default rules can be registered after construction.
func extractRulesEngine(store PersistentStore) *RulesEngine {
	if provider, ok := store.(interface{ RulesEngine() *domain.RulesEngine }); ok {
		return provider.RulesEngine()
	}
	return nil
}

// selectNowFunc picks the time source: the store's own clock when it has one
// (keeping audit timestamps and entity timestamps consistent), then the
// configured Clock, then system UTC.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if provider, ok := store.(interface{ NowFunc() func() time.Time }); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	if clock != nil {
		return func() time.Time { return clock.Now().UTC() }
	}
	return func() time.Time { return time.Now().UTC() }
}

type operationMetadata struct {
	entity EntityType
	action Action
}

// operationCatalog maps service operations to the entity and action recorded
// in operation-level audit entries. Unknown operations are not audited.
var operationCatalog = map[string]operationMetadata{
	"create_request":            {entity: EntityRequest, action: ActionCreate},
	"update_request":            {entity: EntityRequest, action: ActionUpdate},
	"delete_request":            {entity: EntityRequest, action: ActionDelete},
	"transition_status":         {entity: EntityRequest, action: ActionUpdate},
	"add_item":                  {entity: EntityRequestItem, action: ActionCreate},
	"update_item":               {entity: EntityRequestItem, action: ActionUpdate},
	"remove_item":               {entity: EntityRequestItem, action: ActionDelete},
	"record_fulfillment":        {entity: EntityFulfillment, action: ActionCreate},
	"update_fulfillment_status": {entity: EntityFulfillment, action: ActionUpdate},
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := operationCatalog[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		EntityID:  entityID,
		Action:    meta.action,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	meta, ok := operationCatalog[operation]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		EntityID:  entityID,
		Action:    meta.action,
		Status:    AuditStatusError,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
