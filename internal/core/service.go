package core

import (
	"context"
	"time"

	"logisticscore/internal/blob"
	"logisticscore/internal/infra/persistence/memory"
	"logisticscore/pkg/domain"
)

// Service coordinates resource request lifecycle operations against a
// persistent store. All mutations run inside store transactions so rule
// evaluation and audit capture happen atomically with the change.
type Service struct {
	store     PersistentStore
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	clock     Clock
	now       func() time.Time
	incidents IncidentResolver
	archive   blob.Store
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Nil restores the no-op logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger == nil {
			logger = noopLogger{}
		}
		s.logger = logger
	}
}

// WithAuditRecorder sets the operation-level audit sink.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) {
		if rec == nil {
			rec = noopAuditRecorder{}
		}
		s.audit = rec
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec == nil {
			rec = noopMetricsRecorder{}
		}
		s.metrics = rec
	}
}

// WithTracer sets the tracer wrapping each operation.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer == nil {
			tracer = noopTracer{}
		}
		s.tracer = tracer
	}
}

// WithClock sets the time source for audit timestamps. The store's own
// clock, when present, still takes precedence.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithIncidentResolver sets the resolver used to default the incident on
// new requests that do not name one.
func WithIncidentResolver(resolver IncidentResolver) Option {
	return func(s *Service) {
		s.incidents = resolver
	}
}

// WithArchiveStore sets the blob store receiving request snapshot archives.
func WithArchiveStore(store blob.Store) Option {
	return func(s *Service) {
		s.archive = store
	}
}

// NewService builds a Service over the given store.
func NewService(store PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.now = selectNowFunc(store, svc.clock)
	return svc
}

// NewInMemoryService builds a Service over a fresh in-memory store bound to
// the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store exposes the underlying persistent store.
func (s *Service) Store() PersistentStore { return s.store }

// run executes fn in a store transaction wrapped with tracing, metrics,
// logging, and operation-level audit. entityID may point at a string filled
// in by fn (for create operations the ID is only known afterwards).
func (s *Service) run(ctx context.Context, operation string, entityID *string, fn func(domain.Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, operation)
	start := time.Now()
	result, err := s.store.RunInTransaction(ctx, fn)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)

	id := ""
	if entityID != nil {
		id = *entityID
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "entity_id", id, "error", err)
		s.recordAuditError(ctx, operation, id, duration, err)
		return result, err
	}
	s.logger.Debug("operation completed", "operation", operation, "entity_id", id, "duration", duration)
	s.recordAuditSuccess(ctx, operation, id, duration)
	return result, nil
}

// requireActor extracts the acting user from the context. Mutating
// operations refuse to run without one so the audit trail stays attributable.
func requireActor(ctx context.Context) (string, error) {
	actor, ok := domain.ActorFrom(ctx)
	if !ok || actor == "" {
		return "", domain.ValidationError{Field: "actor", Message: "acting user required in context"}
	}
	return actor, nil
}
