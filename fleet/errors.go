/*
errors.go - Centralized error types for the fleet engine

PURPOSE:
  All error types in one place. The taxonomy is small and deliberate:
  1. NotFound     - a referenced cab/driver/shift/rate no longer resolves
  2. Validation   - a rule is malformed for its application type
  3. Computation  - a calculation cannot produce a hard result

PROPAGATION POLICY (see billing package):
  - Batch resolution/proration catches per-row errors, logs, and skips the
    row; batch operations never abort wholesale.
  - Lease rate lookup failure is a hard NotFound from the engine; report
    callers may substitute a defensive default, record creation must not.

USAGE:
  if fleet.IsNotFound(err) { ... }
  var nf *fleet.NotFoundError
  if errors.As(err, &nf) { log.Printf("missing %s %s", nf.Kind, nf.ID) }
*/
package fleet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the base of every dangling-reference failure.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the base of every malformed-rule failure.
	ErrValidation = errors.New("validation failed")

	// ErrComputation is returned when a calculation is exhausted without a
	// usable result in a context that demands one.
	ErrComputation = errors.New("computation failed")

	// ErrNoApplicableLeaseRate is returned when neither an override nor a
	// rate-table row matches a driven shift.
	ErrNoApplicableLeaseRate = fmt.Errorf("no applicable lease rate: %w", ErrNotFound)

	// ErrInvalidDateRange is returned when a query range ends before it starts.
	ErrInvalidDateRange = fmt.Errorf("invalid date range: %w", ErrValidation)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError reports a reference that no longer resolves.
type NotFoundError struct {
	Kind string // "cab", "shift", "driver", "category", "lease rate", ...
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports a rule that is malformed for its application type,
// e.g. a SHIFT_PROFILE expense with no profile id.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ComputationError reports an exhausted calculation with its context.
type ComputationError struct {
	Op      string
	Message string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
func (e *ComputationError) Unwrap() error { return ErrComputation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsClientError reports whether the error is due to bad input rather than a
// system fault. Used by the API layer to pick a status code.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}
