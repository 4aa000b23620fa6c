// Package store provides the in-memory Store implementation (tests/dev).
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/verseloft/ink-engine/ink"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	balances    map[ink.UserID]int64
	allotments  map[ink.UserID]ink.Allotment
	records     map[ink.UserID][]ink.Transaction
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		balances:    make(map[ink.UserID]int64),
		allotments:  make(map[ink.UserID]ink.Allotment),
		records:     make(map[ink.UserID][]ink.Transaction),
		idempotency: make(map[string]bool),
	}
}

func (m *Memory) Balance(_ context.Context, userID ink.UserID) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[userID]
	return b, ok, nil
}

func (m *Memory) PutBalance(_ context.Context, userID ink.UserID, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBalanceLocked(userID, balance)
}

func (m *Memory) Allotment(_ context.Context, userID ink.UserID) (ink.Allotment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.allotments[userID]
	return a, ok, nil
}

func (m *Memory) PutAllotment(_ context.Context, userID ink.UserID, a ink.Allotment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allotments[userID] = a
	return nil
}

// Append adds a single ledger record. Append-only.
func (m *Memory) Append(_ context.Context, tx ink.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

// AppendBatch adds multiple records atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []ink.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkBatchKeysLocked(txs); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := m.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

// checkBatchKeysLocked verifies no record in the batch collides with a
// stored key or with another record in the same batch, so the append loop
// that follows cannot fail partway.
func (m *Memory) checkBatchKeysLocked(txs []ink.Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || seen[tx.IdempotencyKey] {
			return ink.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}
	return nil
}

// History returns the user's records, newest first.
func (m *Memory) History(_ context.Context, userID ink.UserID) ([]ink.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := m.records[userID]
	result := make([]ink.Transaction, len(txs))
	for i, tx := range txs {
		result[len(txs)-1-i] = tx
	}
	return result, nil
}

func (m *Memory) HasIdempotencyKey(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[key], nil
}

func (m *Memory) putBalanceLocked(userID ink.UserID, balance int64) error {
	if balance < 0 {
		return errors.New("memory: negative balance write rejected")
	}
	m.balances[userID] = balance
	return nil
}

func (m *Memory) appendLocked(tx ink.Transaction) error {
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return ink.ErrDuplicateIdempotencyKey
	}
	m.records[tx.UserID] = append(m.records[tx.UserID], tx)
	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot + rollback on error; the store lock is held
// for the duration, so the transaction is also fully serialized.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ink.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	balances    map[ink.UserID]int64
	allotments  map[ink.UserID]ink.Allotment
	records     map[ink.UserID][]ink.Transaction
	idempotency map[string]bool
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		balances:    make(map[ink.UserID]int64, len(m.balances)),
		allotments:  make(map[ink.UserID]ink.Allotment, len(m.allotments)),
		records:     make(map[ink.UserID][]ink.Transaction, len(m.records)),
		idempotency: make(map[string]bool, len(m.idempotency)),
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.allotments {
		s.allotments[k] = v
	}
	for k, v := range m.records {
		cp := make([]ink.Transaction, len(v))
		copy(cp, v)
		s.records[k] = cp
	}
	for k, v := range m.idempotency {
		s.idempotency[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.balances = s.balances
	m.allotments = s.allotments
	m.records = s.records
	m.idempotency = s.idempotency
}

// txMemoryView is the Store handed to WithTx callbacks. The parent's lock
// is already held, so it calls the unlocked internals directly.
type txMemoryView struct {
	parent *Memory
}

func (v *txMemoryView) Balance(_ context.Context, userID ink.UserID) (int64, bool, error) {
	b, ok := v.parent.balances[userID]
	return b, ok, nil
}

func (v *txMemoryView) PutBalance(_ context.Context, userID ink.UserID, balance int64) error {
	return v.parent.putBalanceLocked(userID, balance)
}

func (v *txMemoryView) Allotment(_ context.Context, userID ink.UserID) (ink.Allotment, bool, error) {
	a, ok := v.parent.allotments[userID]
	return a, ok, nil
}

func (v *txMemoryView) PutAllotment(_ context.Context, userID ink.UserID, a ink.Allotment) error {
	v.parent.allotments[userID] = a
	return nil
}

func (v *txMemoryView) Append(_ context.Context, tx ink.Transaction) error {
	return v.parent.appendLocked(tx)
}

func (v *txMemoryView) AppendBatch(_ context.Context, txs []ink.Transaction) error {
	if err := v.parent.checkBatchKeysLocked(txs); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := v.parent.appendLocked(tx); err != nil {
			return err
		}
	}
	return nil
}

func (v *txMemoryView) History(_ context.Context, userID ink.UserID) ([]ink.Transaction, error) {
	txs := v.parent.records[userID]
	result := make([]ink.Transaction, len(txs))
	for i, tx := range txs {
		result[len(txs)-1-i] = tx
	}
	return result, nil
}

func (v *txMemoryView) HasIdempotencyKey(_ context.Context, key string) (bool, error) {
	return v.parent.idempotency[key], nil
}
