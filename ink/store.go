/*
store.go - Persistence interfaces for balances, allotments, and the ledger

PURPOSE:
  Defines the interface between the domain logic and storage. The Service
  is the only component permitted to call these; HTTP handlers and other
  collaborators never touch storage directly.

KEY INTERFACES:
  Store:   Balance + allotment key-value access and append-only ledger
  TxStore: Store plus WithTx for atomic multi-write operations

APPEND-ONLY CONTRACT:
  The ledger side of the Store is append-only:
  - Append():      single record write
  - AppendBatch(): atomic multi-record write (transfer writes two)
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Records may carry an idempotency key. A write whose key already exists
  is rejected with ErrDuplicateIdempotencyKey, which protects transfers
  and credits against network retries and double-clicks.

ATOMIC OPERATIONS:
  WithTx() gives all-or-nothing semantics across balances, allotments,
  and ledger records. A transfer's four effects (debit, credit, two
  records) commit together or not at all.

IMPLEMENTATIONS:
  - store/sqlite:  Durable SQLite store (production)
  - ink/store:     In-memory store (tests, dev)

SEE ALSO:
  - service.go: The only caller of these interfaces
*/
package ink

import "context"

// =============================================================================
// STORE - Balances, allotments, append-only ledger
// =============================================================================

// Store handles persistence of all ledger state.
//
// Balance and Allotment return ok=false when the user has never been
// touched; the Service turns that into lazy initialization. The ledger
// methods are APPEND-ONLY: no update, no delete, ever.
type Store interface {
	// Balance returns the user's spendable balance.
	// ok=false means the user has no balance row yet.
	Balance(ctx context.Context, userID UserID) (balance int64, ok bool, err error)

	// PutBalance writes the user's balance. Implementations must reject
	// negative values; the Service never writes one.
	PutBalance(ctx context.Context, userID UserID, balance int64) error

	// Allotment returns the user's free-spend counters.
	// ok=false means the user has no allotment row yet.
	Allotment(ctx context.Context, userID UserID) (a Allotment, ok bool, err error)

	// PutAllotment writes the user's free-spend counters.
	PutAllotment(ctx context.Context, userID UserID, a Allotment) error

	// Append persists one ledger record. Fails with
	// ErrDuplicateIdempotencyKey if the record's key already exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple records atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// History returns the user's records, newest first.
	History(ctx context.Context, userID UserID) ([]Transaction, error)

	// HasIdempotencyKey checks whether a key was already applied.
	HasIdempotencyKey(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-write operations
// =============================================================================

// TxStore wraps Store with transaction support.
//
// WithTx executes fn against a transactional view of the store. If fn
// returns an error the transaction is rolled back and no write inside it
// is observable; if fn returns nil, all writes commit together. A
// concurrent reader must never see a partially applied operation.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
