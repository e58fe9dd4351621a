package domain

import "fmt"

// ValidationError reports malformed or incomplete input. Callers recover by
// correcting the input and retrying.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Message)
}

// NotFoundError indicates the identifier did not resolve to an entity.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// InvalidTransitionError indicates a lifecycle edge not permitted by the
// transition table. No mutation is performed.
type InvalidTransitionError struct {
	Entity EntityType
	ID     string
	From   string
	To     string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %q cannot transition from %s to %s", e.Entity, e.ID, e.From, e.To)
}

// ConcurrencyConflictError indicates a write presented a stale version.
// Callers recover by re-reading the entity and retrying.
type ConcurrencyConflictError struct {
	Entity   EntityType
	ID       string
	Expected int64
	Actual   int64
}

func (e ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %q version conflict: expected %d, stored %d", e.Entity, e.ID, e.Expected, e.Actual)
}

// ConstraintViolationError indicates the write would break referential
// integrity. The operation is not retryable without changing the request.
type ConstraintViolationError struct {
	Message string
}

func (e ConstraintViolationError) Error() string {
	return "constraint violation: " + e.Message
}
