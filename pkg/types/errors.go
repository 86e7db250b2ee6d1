package types

import (
	"errors"
	"fmt"
)

// Error kinds. Every structured error below matches exactly one of these via
// errors.Is, so callers can branch on the kind without a type assertion.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrNotFound            = errors.New("entity not found")
	ErrDependentData       = errors.New("dependent data exists")
	ErrConcurrencyConflict = errors.New("concurrent modification")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// ValidationError reports a field invariant violated by a write. The write is
// never partially applied.
type ValidationError struct {
	Entity     string // "user", "trip", "plan_version", "chat_message"
	Field      string
	Constraint string // e.g. "gte=1", "after start_date", "unique"
	Value      any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s.%s violates %s", e.Entity, e.Field, e.Constraint)
	}
	return fmt.Sprintf("%s.%s violates %s (got %v)", e.Entity, e.Field, e.Constraint, e.Value)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InvalidTransitionError reports a state change outside the allowed edge set.
// The stored state is left unchanged.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot transition from %q to %q", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotFoundError reports a reference to an entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DependentDataError reports a delete blocked by records that still reference
// the target.
type DependentDataError struct {
	Entity     string
	ID         string
	Dependent  string
	Count      int
	Suggestion string
}

func (e *DependentDataError) Error() string {
	msg := fmt.Sprintf("%s %q is still referenced by %d %s", e.Entity, e.ID, e.Count, e.Dependent)
	if e.Suggestion != "" {
		msg += "; " + e.Suggestion
	}
	return msg
}

func (e *DependentDataError) Is(target error) bool { return target == ErrDependentData }

// ConcurrencyConflictError reports a lost check-and-set. The caller should
// reload and retry.
type ConcurrencyConflictError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %q: concurrent modification: %s", e.Entity, e.ID, e.Reason)
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func invalid(entity, field, constraint string, value any) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Constraint: constraint, Value: value}
}
