/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ink.Store and ink.TxStore using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  balances:     user_id -> spendable balance (CHECK balance >= 0)
  allotments:   user_id -> free-spend counters + lazy reset timestamps
  transactions: immutable, append-only ledger of balance-level movements

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch the transactions table. The unique
  index on idempotency_key rejects replayed writes at the storage boundary,
  independent of the service-level pre-check.

CONCURRENCY:
  SQLite is opened in WAL mode: readers don't block, one writer at a time.
  All multi-statement writes go through WithTx, which serializes on a
  store-level mutex so concurrent transfers never trip SQLITE_BUSY.

USAGE:
  st, err := sqlite.New("./data/ink.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  svc := ink.NewService(st, ink.DefaultPolicy())

MIGRATION:
  Schema is auto-migrated on New(). For a production fleet, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ink/store.go: Interface definitions
  - ink/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/verseloft/ink-engine/ink"
)

// Store implements ink.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes WithTx; WAL allows one writer at a time
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A :memory: database exists per connection; a second connection would
	// see a different, empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Spendable balances (one row per user)
	CREATE TABLE IF NOT EXISTS balances (
		user_id    TEXT PRIMARY KEY,
		balance    INTEGER NOT NULL CHECK (balance >= 0),
		updated_at TEXT NOT NULL
	);

	-- Free-spend counters (one row per user, lazily created)
	CREATE TABLE IF NOT EXISTS allotments (
		user_id            TEXT PRIMARY KEY,
		daily_used         INTEGER NOT NULL,
		monthly_used       INTEGER NOT NULL,
		last_daily_reset   TEXT NOT NULL,
		last_monthly_reset TEXT NOT NULL
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		kind              TEXT NOT NULL,
		amount            INTEGER NOT NULL,
		description       TEXT,
		counterparty_id   TEXT,
		counterparty_name TEXT,
		content_id        TEXT,
		content_title     TEXT,
		idempotency_key   TEXT UNIQUE,
		created_at        TEXT NOT NULL
	);

	-- History is always read newest-first per user (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions(user_id, created_at DESC);

	CREATE INDEX IF NOT EXISTS idx_transactions_idempotency
		ON transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE INTERFACE - direct (non-transactional) access
// =============================================================================

func (s *Store) Balance(ctx context.Context, userID ink.UserID) (int64, bool, error) {
	return queries{s.db}.balance(ctx, userID)
}

func (s *Store) PutBalance(ctx context.Context, userID ink.UserID, balance int64) error {
	return queries{s.db}.putBalance(ctx, userID, balance)
}

func (s *Store) Allotment(ctx context.Context, userID ink.UserID) (ink.Allotment, bool, error) {
	return queries{s.db}.allotment(ctx, userID)
}

func (s *Store) PutAllotment(ctx context.Context, userID ink.UserID, a ink.Allotment) error {
	return queries{s.db}.putAllotment(ctx, userID, a)
}

func (s *Store) Append(ctx context.Context, tx ink.Transaction) error {
	return queries{s.db}.append(ctx, tx)
}

func (s *Store) AppendBatch(ctx context.Context, txs []ink.Transaction) error {
	// Even outside WithTx, a batch must be all-or-nothing.
	return s.WithTx(ctx, func(view ink.Store) error {
		return view.AppendBatch(ctx, txs)
	})
}

func (s *Store) History(ctx context.Context, userID ink.UserID) ([]ink.Transaction, error) {
	return queries{s.db}.history(ctx, userID)
}

func (s *Store) HasIdempotencyKey(ctx context.Context, key string) (bool, error) {
	return queries{s.db}.hasIdempotencyKey(ctx, key)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx runs fn inside one SQL transaction. fn's view of the store writes
// to the transaction; an error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(ink.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&txView{queries{tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// txView adapts a *sql.Tx to ink.Store.
type txView struct {
	q queries
}

func (v *txView) Balance(ctx context.Context, userID ink.UserID) (int64, bool, error) {
	return v.q.balance(ctx, userID)
}
func (v *txView) PutBalance(ctx context.Context, userID ink.UserID, balance int64) error {
	return v.q.putBalance(ctx, userID, balance)
}
func (v *txView) Allotment(ctx context.Context, userID ink.UserID) (ink.Allotment, bool, error) {
	return v.q.allotment(ctx, userID)
}
func (v *txView) PutAllotment(ctx context.Context, userID ink.UserID, a ink.Allotment) error {
	return v.q.putAllotment(ctx, userID, a)
}
func (v *txView) Append(ctx context.Context, tx ink.Transaction) error {
	return v.q.append(ctx, tx)
}
func (v *txView) AppendBatch(ctx context.Context, txs []ink.Transaction) error {
	for _, tx := range txs {
		if err := v.q.append(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
func (v *txView) History(ctx context.Context, userID ink.UserID) ([]ink.Transaction, error) {
	return v.q.history(ctx, userID)
}
func (v *txView) HasIdempotencyKey(ctx context.Context, key string) (bool, error) {
	return v.q.hasIdempotencyKey(ctx, key)
}

// =============================================================================
// QUERIES - shared between direct and transactional access
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func (q queries) balance(ctx context.Context, userID ink.UserID) (int64, bool, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE user_id = ?`, string(userID),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (q queries) putBalance(ctx context.Context, userID ink.UserID, balance int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO balances (user_id, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = excluded.balance,
			updated_at = excluded.updated_at`,
		string(userID), balance, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (q queries) allotment(ctx context.Context, userID ink.UserID) (ink.Allotment, bool, error) {
	var a ink.Allotment
	var daily, monthly string
	err := q.db.QueryRowContext(ctx, `
		SELECT daily_used, monthly_used, last_daily_reset, last_monthly_reset
		FROM allotments WHERE user_id = ?`, string(userID),
	).Scan(&a.DailyUsed, &a.MonthlyUsed, &daily, &monthly)
	if errors.Is(err, sql.ErrNoRows) {
		return ink.Allotment{}, false, nil
	}
	if err != nil {
		return ink.Allotment{}, false, err
	}
	if a.LastDailyReset, err = time.Parse(time.RFC3339Nano, daily); err != nil {
		return ink.Allotment{}, false, fmt.Errorf("corrupt last_daily_reset: %w", err)
	}
	if a.LastMonthlyReset, err = time.Parse(time.RFC3339Nano, monthly); err != nil {
		return ink.Allotment{}, false, fmt.Errorf("corrupt last_monthly_reset: %w", err)
	}
	return a, true, nil
}

func (q queries) putAllotment(ctx context.Context, userID ink.UserID, a ink.Allotment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO allotments
			(user_id, daily_used, monthly_used, last_daily_reset, last_monthly_reset)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			daily_used = excluded.daily_used,
			monthly_used = excluded.monthly_used,
			last_daily_reset = excluded.last_daily_reset,
			last_monthly_reset = excluded.last_monthly_reset`,
		string(userID), a.DailyUsed, a.MonthlyUsed,
		a.LastDailyReset.UTC().Format(time.RFC3339Nano),
		a.LastMonthlyReset.UTC().Format(time.RFC3339Nano))
	return err
}

func (q queries) append(ctx context.Context, tx ink.Transaction) error {
	var key sql.NullString
	if tx.IdempotencyKey != "" {
		key = sql.NullString{String: tx.IdempotencyKey, Valid: true}
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, kind, amount, description,
			 counterparty_id, counterparty_name, content_id, content_title,
			 idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), string(tx.UserID), string(tx.Kind), tx.Amount, tx.Description,
		string(tx.CounterpartyID), tx.CounterpartyName, tx.ContentID, tx.ContentTitle,
		key, tx.CreatedAt.UTC().Format(time.RFC3339Nano))
	if isUniqueViolation(err) {
		return ink.ErrDuplicateIdempotencyKey
	}
	return err
}

func (q queries) history(ctx context.Context, userID ink.UserID) ([]ink.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, kind, amount, description,
		       counterparty_id, counterparty_name, content_id, content_title,
		       idempotency_key, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ink.Transaction
	for rows.Next() {
		var tx ink.Transaction
		var id, uid, kind, cpID string
		var key sql.NullString
		var createdAt string
		if err := rows.Scan(&id, &uid, &kind, &tx.Amount, &tx.Description,
			&cpID, &tx.CounterpartyName, &tx.ContentID, &tx.ContentTitle,
			&key, &createdAt); err != nil {
			return nil, err
		}
		tx.ID = ink.TransactionID(id)
		tx.UserID = ink.UserID(uid)
		tx.Kind = ink.Kind(kind)
		tx.CounterpartyID = ink.UserID(cpID)
		tx.IdempotencyKey = key.String
		if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt created_at: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (q queries) hasIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		`SELECT 1 FROM transactions WHERE idempotency_key = ?`, key,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
