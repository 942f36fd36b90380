/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer classifies these with the helpers at the bottom and
  maps them to status codes without inspecting error strings.

ERROR CATEGORIES:
  1. Validation errors - Rejected before any persistence side effect
  2. State-machine errors - Finalized-period guards, always surfaced
  3. Persistence errors - Storage failures wrapped with operation context

USAGE:
  if errors.Is(err, billing.ErrAlreadyFinalized) {
      // caller must pass Force or change inputs; not retryable
  }
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed domain input: negative or
	// zero amounts, month outside 1-12, move-out not after move-in.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDivisionByZero is returned by the decimal primitives when a
	// divisor or a total distribution weight is zero. The allocation
	// engine converts it into an empty allocation set; it never reaches
	// API callers from that path.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNotFound is returned when a referenced property, tenant, utility
	// entry, or billing period does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyFinalized is returned when attempting to overwrite a
	// finalized billing period without the explicit force option.
	ErrAlreadyFinalized = errors.New("billing period already finalized")

	// ErrCannotRecalculateFinalized is returned by Recalculate when the
	// period is finalized. The caller must use the forced path, which is
	// always audited.
	ErrCannotRecalculateFinalized = errors.New("cannot recalculate finalized billing period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected field. Wraps ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// PersistenceError wraps an opaque storage failure with operation context.
// The original cause is preserved for errors.Is/As.
type PersistenceError struct {
	Op  string // e.g. "replace allocations", "upsert billing period"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for state-machine violations. These are
// deterministic and non-retryable: the caller must change inputs or
// pass the force option.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrCannotRecalculateFinalized)
}

// IsPersistence returns true if the error originated in the storage layer.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
