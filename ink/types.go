/*
Package ink provides the core balance-and-ledger engine.

PURPOSE:
  This package contains the domain types and orchestration logic for the
  Ink virtual currency: per-user spendable balances, a renewable free
  allotment with daily/monthly caps, atomic transfers between users, and
  an immutable per-user transaction history.

KEY CONCEPTS IN THIS FILE (types.go):
  - UserID:      Type-safe user identifier (issued by the identity service)
  - Kind:        Why a balance changed (initial, earned, given, purchased)
  - Transaction: An immutable ledger entry recording a balance change
  - Allotment:   Per-user free-spend counters with lazy reset timestamps
  - Policy:      The spending rules (welcome bonus, daily/monthly caps)

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified or deleted
  2. Integer granularity: Ink is a whole-unit currency; amounts are int64
  3. Type Safety: Strong typing for IDs and kinds
  4. Auditability: Every balance-level movement leaves a ledger record

USAGE:
  svc := ink.NewService(store, ink.DefaultPolicy())
  balance, err := svc.Balance(ctx, "user-42")

SEE ALSO:
  - reset.go: Daily/monthly reset policy (pure functions)
  - authorize.go: Spend authorization decisions
  - service.go: The public operation surface
  - store.go: Persistence interfaces
*/
package ink

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string

type TransactionID string

// =============================================================================
// KIND - Why a balance changed
// =============================================================================

// Kind tags each transaction with the business reason for the movement.
type Kind string

const (
	// KindInitial is the one-time welcome bonus credited on first touch.
	KindInitial Kind = "initial"

	// KindEarned marks Ink received from another user (transfer credit side).
	KindEarned Kind = "earned"

	// KindGiven marks Ink sent to another user or spent on a boost
	// (transfer debit side). Amount is always negative.
	KindGiven Kind = "given"

	// KindPurchased marks Ink bought through the store. The payment
	// collaborator validates the purchase; the ledger only records it.
	KindPurchased Kind = "purchased"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInitial, KindEarned, KindGiven, KindPurchased:
		return true
	}
	return false
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

// Transaction is a single row in a user's ledger. Once written it is never
// mutated or deleted. The counterparty and content fields are denormalized
// descriptive metadata so history survives counterparty account deletion.
type Transaction struct {
	ID     TransactionID
	UserID UserID
	Kind   Kind

	// Amount is signed: negative for debits, positive for credits.
	Amount int64

	Description string

	// Counterparty of a transfer, if any.
	CounterpartyID   UserID
	CounterpartyName string

	// Content the movement relates to (a poem, a comment), if any.
	ContentID    string
	ContentTitle string

	// IdempotencyKey guards state-changing retries. Optional.
	IdempotencyKey string

	CreatedAt time.Time
}

// =============================================================================
// ALLOTMENT - Free-spend counters
// =============================================================================

// Allotment tracks a user's consumption of the free (zero-cost) spend
// allowance. Counters reset lazily: every read applies the reset policy
// before the counters are interpreted (see reset.go).
//
// Invariant: after any operation completes, DailyUsed <= daily cap and
// MonthlyUsed <= monthly cap.
type Allotment struct {
	DailyUsed        int
	MonthlyUsed      int
	LastDailyReset   time.Time
	LastMonthlyReset time.Time
}

// NewAllotment returns a fresh allotment anchored at now.
func NewAllotment(now time.Time) Allotment {
	return Allotment{LastDailyReset: now, LastMonthlyReset: now}
}

// =============================================================================
// POLICY - Spending rules
// =============================================================================

// Policy holds the tunable spending rules. Zero caps mean "no free spends".
type Policy struct {
	// WelcomeBonus is credited once, on a user's first touch of the ledger.
	WelcomeBonus int64

	// DailyFreeCap / MonthlyFreeCap bound zero-cost spends for users with
	// no purchased balance. Purchased balance is never capped.
	DailyFreeCap   int
	MonthlyFreeCap int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		WelcomeBonus:   100,
		DailyFreeCap:   5,
		MonthlyFreeCap: 50,
	}
}
