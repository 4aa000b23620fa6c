package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verseloft/ink-engine/ink"
	"github.com/verseloft/ink-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func rec(id string, userID ink.UserID, kind ink.Kind, amount int64, key string, createdAt time.Time) ink.Transaction {
	return ink.Transaction{
		ID:             ink.TransactionID(id),
		UserID:         userID,
		Kind:           kind,
		Amount:         amount,
		Description:    "test",
		IdempotencyKey: key,
		CreatedAt:      createdAt,
	}
}

// =============================================================================
// BALANCES / ALLOTMENTS
// =============================================================================

func TestSQLite_Balance_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "unknown user has no row")

	require.NoError(t, st.PutBalance(ctx, "u1", 100))
	balance, ok, err := st.Balance(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), balance)

	// Upsert overwrites.
	require.NoError(t, st.PutBalance(ctx, "u1", 70))
	balance, _, err = st.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)
}

func TestSQLite_NegativeBalance_RejectedByCheck(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, st.PutBalance(ctx, "u1", -1), "CHECK (balance >= 0) must hold")
}

func TestSQLite_Allotment_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	in := ink.Allotment{
		DailyUsed:        3,
		MonthlyUsed:      17,
		LastDailyReset:   now,
		LastMonthlyReset: now.AddDate(0, 0, -9),
	}
	require.NoError(t, st.PutAllotment(ctx, "u1", in))

	out, ok, err := st.Allotment(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.DailyUsed, out.DailyUsed)
	assert.Equal(t, in.MonthlyUsed, out.MonthlyUsed)
	assert.True(t, in.LastDailyReset.Equal(out.LastDailyReset))
	assert.True(t, in.LastMonthlyReset.Equal(out.LastMonthlyReset))
}

// =============================================================================
// LEDGER
// =============================================================================

func TestSQLite_History_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.Append(ctx, rec("tx-1", "u1", ink.KindInitial, 100, "", base)))
	require.NoError(t, st.Append(ctx, rec("tx-2", "u1", ink.KindGiven, -30, "", base.Add(time.Hour))))
	require.NoError(t, st.Append(ctx, rec("tx-3", "u2", ink.KindEarned, 30, "", base.Add(time.Hour))))

	history, err := st.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ink.TransactionID("tx-2"), history[0].ID)
	assert.Equal(t, ink.TransactionID("tx-1"), history[1].ID)
	assert.Equal(t, ink.KindGiven, history[0].Kind)
	assert.Equal(t, int64(-30), history[0].Amount)
}

func TestSQLite_History_TiesBreakByInsertionOrder(t *testing.T) {
	// A transfer writes both records with one timestamp; the later insert
	// must still sort first.
	st := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendBatch(ctx, []ink.Transaction{
		rec("tx-1", "u1", ink.KindInitial, 100, "", at),
		rec("tx-2", "u1", ink.KindGiven, -30, "", at),
	}))

	history, err := st.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ink.TransactionID("tx-2"), history[0].ID)
}

func TestSQLite_IdempotencyKey_UniqueIndex(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, st.Append(ctx, rec("tx-1", "u1", ink.KindPurchased, 500, "purchase-1", now)))

	err := st.Append(ctx, rec("tx-2", "u1", ink.KindPurchased, 500, "purchase-1", now))
	assert.ErrorIs(t, err, ink.ErrDuplicateIdempotencyKey)

	exists, err := st.HasIdempotencyKey(ctx, "purchase-1")
	require.NoError(t, err)
	assert.True(t, exists)

	// Records without keys never collide with each other.
	require.NoError(t, st.Append(ctx, rec("tx-3", "u1", ink.KindEarned, 10, "", now)))
	require.NoError(t, st.Append(ctx, rec("tx-4", "u1", ink.KindEarned, 10, "", now)))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollbackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.PutBalance(ctx, "u1", 100))

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(s ink.Store) error {
		if err := s.PutBalance(ctx, "u1", 50); err != nil {
			return err
		}
		if err := s.Append(ctx, rec("tx-1", "u1", ink.KindGiven, -50, "", time.Now().UTC())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	balance, _, err := st.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance, "balance write must roll back")

	history, err := st.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history, "record write must roll back")
}

func TestSQLite_WithTx_Commit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(s ink.Store) error {
		if err := s.PutBalance(ctx, "u1", 70); err != nil {
			return err
		}
		return s.PutBalance(ctx, "u2", 130)
	})
	require.NoError(t, err)

	b1, _, err := st.Balance(ctx, "u1")
	require.NoError(t, err)
	b2, _, err := st.Balance(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(70), b1)
	assert.Equal(t, int64(130), b2)
}

// =============================================================================
// END-TO-END OVER SQLITE
// =============================================================================

func TestSQLite_ServiceEndToEnd(t *testing.T) {
	// The full "new reader gifts a poet" flow against the durable store:
	// welcome bonus, transfer, paired records, history ordering.

	st := newTestStore(t)
	svc := ink.NewService(st, ink.DefaultPolicy())
	ctx := context.Background()

	balance, err := svc.Balance(ctx, "reader")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)

	res, err := svc.Transfer(ctx, ink.TransferRequest{
		From:        "reader",
		To:          "poet",
		Amount:      30,
		Description: "Supported poem X",
		ToName:      "The Poet",
	})
	require.NoError(t, err)
	require.True(t, res.OK)

	readerBal, err := svc.Balance(ctx, "reader")
	require.NoError(t, err)
	poetBal, err := svc.Balance(ctx, "poet")
	require.NoError(t, err)
	assert.Equal(t, int64(70), readerBal)
	assert.Equal(t, int64(130), poetBal)

	poetHist, err := svc.History(ctx, "poet")
	require.NoError(t, err)
	require.Len(t, poetHist, 2)
	assert.Equal(t, ink.KindEarned, poetHist[0].Kind)
	assert.Equal(t, int64(30), poetHist[0].Amount)
	assert.Equal(t, ink.UserID("reader"), poetHist[0].CounterpartyID)
}
