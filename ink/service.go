/*
service.go - The public operation surface of the Ink ledger

PURPOSE:
  Service is the orchestrator: the only component that mutates balances,
  allotments, or the ledger. Callers (clap handlers, gift flows, the store
  webhook) go through these methods and never touch storage directly.

OPERATIONS:
  Balance    Current spendable balance (lazily seeds the welcome bonus)
  CanSpend   Preview whether a one-unit spend would be allowed
  SpendOne   The gate in front of every clap/reaction
  Transfer   Atomic user-to-user gift with paired ledger records
  Credit     External money-in (store purchase, signup bonus)
  Boost      Balance-debiting feature purchase with no recipient
  History    The user's ledger, newest first

ATOMICITY:
  Every operation runs inside a single storage transaction (TxStore.WithTx)
  under the owning user's lock. A transfer's four effects - debit, credit,
  and both records - commit together or not at all; no concurrent reader
  can observe a half-applied transfer.

CONCURRENCY:
  Per-user mutexes serialize read-then-write sequences for one user.
  Transfer locks both parties in lexicographic id order (see locks.go).
  Operations on unrelated users proceed independently.

LAZY INITIALIZATION:
  Every operation funnels through ensureInitialized: a user's first touch
  seeds the welcome bonus and writes exactly one "initial" record. There is
  no separate signup hook to forget.

AUDIT ASYMMETRY:
  One-unit micro-spends (claps) write no ledger record, whichever pool
  funds them. Only balance-level movements - welcome bonus, purchases,
  transfers, boosts - are recorded. This mirrors the product's history
  screen, which shows money movements, not individual claps.

SEE ALSO:
  - store.go: The persistence interfaces this drives
  - authorize.go: The two-tier spending rule
  - api/handlers.go: The HTTP surface over these methods
*/
package ink

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service exposes the public ledger operations. Safe for concurrent use.
type Service struct {
	store  TxStore
	policy Policy
	locks  *userLocks

	now   func() time.Time
	newID func() TransactionID
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source. Tests use this to cross day and
// month boundaries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over the given store.
func NewService(store TxStore, policy Policy, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: policy,
		locks:  newUserLocks(),
		now:    time.Now,
		newID:  func() TransactionID { return TransactionID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the spending rules the service enforces.
func (svc *Service) Policy() Policy { return svc.policy }

// =============================================================================
// REQUESTS / RESULTS
// =============================================================================

// TransferRequest describes a user-to-user gift. Names and content fields
// are descriptive metadata copied onto the ledger records; the ledger does
// not validate them.
type TransferRequest struct {
	From   UserID
	To     UserID
	Amount int64

	Description string
	FromName    string
	ToName      string

	ContentID    string
	ContentTitle string

	// IdempotencyKey makes retries safe. Optional.
	IdempotencyKey string
}

// CreditRequest describes external money-in. Kind must be "initial" or
// "purchased"; it defaults to "purchased".
type CreditRequest struct {
	UserID      UserID
	Amount      int64
	Kind        Kind
	Description string

	IdempotencyKey string
}

// BoostRequest describes a balance-debiting feature purchase.
type BoostRequest struct {
	UserID      UserID
	Cost        int64
	Description string

	ContentID    string
	ContentTitle string

	IdempotencyKey string
}

// TransferResult is the outcome of a Transfer or Boost. A refusal is an
// expected business outcome, not an error.
type TransferResult struct {
	OK     bool
	Reason DenyReason // set when !OK
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Balance returns the user's spendable balance. A brand-new user is seeded
// with the welcome bonus (exactly once) before the value is returned.
func (svc *Service) Balance(ctx context.Context, userID UserID) (int64, error) {
	unlock := svc.locks.lock(userID)
	defer unlock()

	var balance int64
	err := svc.store.WithTx(ctx, func(s Store) error {
		var err error
		balance, err = svc.ensureInitialized(ctx, s, userID)
		return err
	})
	return balance, wrapStorage("balance", err)
}

// CanSpend previews whether a one-unit spend would be allowed right now,
// without consuming anything. Stale allotment counters are reset as a side
// effect (lazy reset), which is idempotent.
func (svc *Service) CanSpend(ctx context.Context, userID UserID) (Decision, error) {
	unlock := svc.locks.lock(userID)
	defer unlock()

	var d Decision
	err := svc.store.WithTx(ctx, func(s Store) error {
		balance, err := svc.ensureInitialized(ctx, s, userID)
		if err != nil {
			return err
		}
		if balance > 0 {
			d = Decision{Allowed: true, Source: SourceBalance}
			return nil
		}
		a, err := svc.allotmentForUpdate(ctx, s, userID)
		if err != nil {
			return err
		}
		d = svc.policy.Authorize(balance, a, svc.now())
		return nil
	})
	return d, wrapStorage("can_spend", err)
}

// SpendOne spends one unit if allowed: from the purchased balance when any
// exists, otherwise from the free allotment. A denial leaves no side effect
// beyond the idempotent lazy reset. This is the gate in front of every
// clap; the caller increments its own content counter only on Allowed.
func (svc *Service) SpendOne(ctx context.Context, userID UserID) (Decision, error) {
	unlock := svc.locks.lock(userID)
	defer unlock()

	var d Decision
	err := svc.store.WithTx(ctx, func(s Store) error {
		balance, err := svc.ensureInitialized(ctx, s, userID)
		if err != nil {
			return err
		}
		if balance > 0 {
			d = Decision{Allowed: true, Source: SourceBalance}
			return s.PutBalance(ctx, userID, balance-1)
		}
		a, err := svc.allotmentForUpdate(ctx, s, userID)
		if err != nil {
			return err
		}
		d = svc.policy.Authorize(balance, a, svc.now())
		if !d.Allowed {
			return nil
		}
		a.DailyUsed++
		a.MonthlyUsed++
		return s.PutAllotment(ctx, userID, a)
	})
	return d, wrapStorage("spend_one", err)
}

// Transfer moves Amount from one user to another and appends the paired
// ledger records: "given" (negative) on the sender, "earned" (positive) on
// the recipient. All four effects commit atomically. Insufficient balance
// is a result, not an error; nothing is mutated on refusal.
func (svc *Service) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.Amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if req.From == req.To {
		return TransferResult{}, ErrSelfTransfer
	}

	unlock := svc.locks.lockPair(req.From, req.To)
	defer unlock()

	var res TransferResult
	err := svc.store.WithTx(ctx, func(s Store) error {
		if err := rejectReplay(ctx, s, req.IdempotencyKey); err != nil {
			return err
		}
		fromBalance, err := svc.ensureInitialized(ctx, s, req.From)
		if err != nil {
			return err
		}
		toBalance, err := svc.ensureInitialized(ctx, s, req.To)
		if err != nil {
			return err
		}
		if fromBalance < req.Amount {
			res = TransferResult{Reason: ReasonInsufficientBalance}
			return nil
		}

		if err := s.PutBalance(ctx, req.From, fromBalance-req.Amount); err != nil {
			return err
		}
		if err := s.PutBalance(ctx, req.To, toBalance+req.Amount); err != nil {
			return err
		}

		now := svc.now()
		// The idempotency key rides on the debit record only; the pair is
		// written atomically, so guarding one half guards both.
		given := Transaction{
			ID:               svc.newID(),
			UserID:           req.From,
			Kind:             KindGiven,
			Amount:           -req.Amount,
			Description:      req.Description,
			CounterpartyID:   req.To,
			CounterpartyName: req.ToName,
			ContentID:        req.ContentID,
			ContentTitle:     req.ContentTitle,
			IdempotencyKey:   req.IdempotencyKey,
			CreatedAt:        now,
		}
		earned := Transaction{
			ID:               svc.newID(),
			UserID:           req.To,
			Kind:             KindEarned,
			Amount:           req.Amount,
			Description:      req.Description,
			CounterpartyID:   req.From,
			CounterpartyName: req.FromName,
			ContentID:        req.ContentID,
			ContentTitle:     req.ContentTitle,
			CreatedAt:        now,
		}
		if err := s.AppendBatch(ctx, []Transaction{given, earned}); err != nil {
			return err
		}
		res = TransferResult{OK: true}
		return nil
	})
	return res, wrapStorage("transfer", err)
}

// Credit adds Amount to the user's balance and appends one record. Used by
// the payment collaborator after a confirmed store purchase and by the
// account-lifecycle collaborator for explicit signup bonuses. No source
// balance is debited; money enters the system here.
func (svc *Service) Credit(ctx context.Context, req CreditRequest) error {
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	kind := req.Kind
	if kind == "" {
		kind = KindPurchased
	}
	if kind != KindInitial && kind != KindPurchased {
		return ErrInvalidKind
	}

	unlock := svc.locks.lock(req.UserID)
	defer unlock()

	err := svc.store.WithTx(ctx, func(s Store) error {
		if err := rejectReplay(ctx, s, req.IdempotencyKey); err != nil {
			return err
		}
		balance, err := svc.ensureInitialized(ctx, s, req.UserID)
		if err != nil {
			return err
		}
		if err := s.PutBalance(ctx, req.UserID, balance+req.Amount); err != nil {
			return err
		}
		return s.Append(ctx, Transaction{
			ID:             svc.newID(),
			UserID:         req.UserID,
			Kind:           kind,
			Amount:         req.Amount,
			Description:    req.Description,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      svc.now(),
		})
	})
	return wrapStorage("credit", err)
}

// Boost debits Cost from the user's balance and records it as "given" with
// no counterparty: the recipient is a feature activation, not a user.
// Insufficient balance is a result; nothing is mutated on refusal.
func (svc *Service) Boost(ctx context.Context, req BoostRequest) (TransferResult, error) {
	if req.Cost <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}

	unlock := svc.locks.lock(req.UserID)
	defer unlock()

	var res TransferResult
	err := svc.store.WithTx(ctx, func(s Store) error {
		if err := rejectReplay(ctx, s, req.IdempotencyKey); err != nil {
			return err
		}
		balance, err := svc.ensureInitialized(ctx, s, req.UserID)
		if err != nil {
			return err
		}
		if balance < req.Cost {
			res = TransferResult{Reason: ReasonInsufficientBalance}
			return nil
		}
		if err := s.PutBalance(ctx, req.UserID, balance-req.Cost); err != nil {
			return err
		}
		if err := s.Append(ctx, Transaction{
			ID:             svc.newID(),
			UserID:         req.UserID,
			Kind:           KindGiven,
			Amount:         -req.Cost,
			Description:    req.Description,
			ContentID:      req.ContentID,
			ContentTitle:   req.ContentTitle,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      svc.now(),
		}); err != nil {
			return err
		}
		res = TransferResult{OK: true}
		return nil
	})
	return res, wrapStorage("boost", err)
}

// History returns the user's ledger records, newest first. Read-only: a
// user who has never touched the ledger gets an empty history, not a
// welcome bonus.
func (svc *Service) History(ctx context.Context, userID UserID) ([]Transaction, error) {
	txs, err := svc.store.History(ctx, userID)
	return txs, wrapStorage("history", err)
}

// =============================================================================
// INTERNALS
// =============================================================================

// ensureInitialized returns the user's balance, seeding the welcome bonus
// and its "initial" record on the very first touch. Must run inside the
// user's lock and the enclosing storage transaction.
func (svc *Service) ensureInitialized(ctx context.Context, s Store, userID UserID) (int64, error) {
	balance, ok, err := s.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if ok {
		return balance, nil
	}

	bonus := svc.policy.WelcomeBonus
	if err := s.PutBalance(ctx, userID, bonus); err != nil {
		return 0, err
	}
	if bonus > 0 {
		err := s.Append(ctx, Transaction{
			ID:          svc.newID(),
			UserID:      userID,
			Kind:        KindInitial,
			Amount:      bonus,
			Description: "Welcome bonus",
			CreatedAt:   svc.now(),
		})
		if err != nil {
			return 0, err
		}
	}
	return bonus, nil
}

// allotmentForUpdate loads the user's allotment, creating it on first
// touch and applying the lazy reset. Stale counters are persisted back so
// a crash between read and spend cannot resurrect them.
func (svc *Service) allotmentForUpdate(ctx context.Context, s Store, userID UserID) (Allotment, error) {
	now := svc.now()
	a, ok, err := s.Allotment(ctx, userID)
	if err != nil {
		return Allotment{}, err
	}
	if !ok {
		a = NewAllotment(now)
		return a, s.PutAllotment(ctx, userID, a)
	}
	a, changed := a.WithResets(now)
	if changed {
		if err := s.PutAllotment(ctx, userID, a); err != nil {
			return Allotment{}, err
		}
	}
	return a, nil
}

// rejectReplay refuses an operation whose idempotency key was already
// applied. An empty key disables the check.
func rejectReplay(ctx context.Context, s Store, key string) error {
	if key == "" {
		return nil
	}
	exists, err := s.HasIdempotencyKey(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateIdempotencyKey
	}
	return nil
}

// wrapStorage classifies an operation error: client errors pass through,
// everything else is a storage fault. Keeps "the database is down" from
// ever looking like "not enough Ink".
func wrapStorage(op string, err error) error {
	if err == nil || IsClientError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
