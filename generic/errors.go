/*
errors.go - Centralized error kinds for the accrual engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Domain packages return structured errors that unwrap to these sentinels,
  so callers can branch with errors.Is without knowing the concrete type.

ERROR CATEGORIES:
  1. Rule violations - InvalidTransition, Overpayment, AmountMismatch,
     AlreadySettled
  2. Input errors - InvalidInput (future dates, non-positive amounts, ...)
  3. Store errors - NotFound, ConcurrentModification, DuplicateContribution

  Every kind is local and recoverable. The engine never retries.

USAGE:
  if errors.Is(err, generic.ErrOverpayment) {
      var op *loan.OverpaymentError
      errors.As(err, &op) // op.Remaining, op.Requested
  }

SEE ALSO:
  - loan/errors.go: TransitionError, OverpaymentError, AmountMismatchError
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when a loan state machine precondition
	// is violated (e.g. disbursing a pending loan).
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidInput is returned for malformed or out-of-range arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOverpayment is returned when a principal payment exceeds the
	// remaining balance.
	ErrOverpayment = errors.New("payment exceeds remaining balance")

	// ErrAmountMismatch is returned when a combined payment's components do
	// not sum to its total.
	ErrAmountMismatch = errors.New("payment components do not sum to amount")

	// ErrAlreadySettled is returned when interest for the requested window
	// has already been settled.
	ErrAlreadySettled = errors.New("interest already settled")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when optimistic locking detects a
	// conflicting write.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateContribution is returned when a (member, month) already has
	// a contribution record.
	ErrDuplicateContribution = errors.New("contribution already exists for month")

	// ErrLockUnavailable is returned when a record lock cannot be acquired.
	ErrLockUnavailable = errors.New("record is locked by another operation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError names the offending field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
// Callers must re-read state before retrying a commit.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrLockUnavailable)
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrDuplicateContribution)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
