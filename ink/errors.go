/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Two classes matter to callers:

  1. Precondition violations - programmer errors (zero/negative amounts,
     self-transfers, bad kinds). Fail fast, never partially apply.
  2. Storage faults - the persistence medium cannot be read or written.
     Fatal to the single operation, surfaced distinctly so the UI can say
     "try again" instead of "not enough Ink".

  Business-rule outcomes (insufficient balance, exhausted allotment) are
  NOT errors. They are typed results (Decision, TransferResult) that
  callers branch on. Nothing in this package returns an error for an
  expected denial.

USAGE:
  if errors.Is(err, ink.ErrDuplicateIdempotencyKey) {
      // Retry of an already-applied operation. Safe to ignore.
  }

SEE ALSO:
  - service.go: Where these errors are produced
  - authorize.go: The typed results for expected denials
*/
package ink

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a transfer, credit, or boost is
	// requested with a zero or negative amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSelfTransfer is returned when a transfer names the same user on
	// both sides.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrInvalidKind is returned when a credit names an unknown kind.
	ErrInvalidKind = errors.New("invalid transaction kind")

	// ErrDuplicateIdempotencyKey is returned when a state-changing
	// operation carries an idempotency key that was already applied.
	// Expected on retries; the original mutation stands.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StorageError wraps any fault from the persistence layer. It exists so a
// storage outage can never be mistaken for a business denial.
type StorageError struct {
	Op  string // the public operation during which the fault occurred
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ink: storage fault during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// and retrying the same request cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsStorageFault returns true if the error came from the persistence layer.
func IsStorageFault(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
