package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verseloft/ink-engine/api"
	"github.com/verseloft/ink-engine/ink"
	"github.com/verseloft/ink-engine/ink/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, policy ink.Policy) *httptest.Server {
	t.Helper()
	svc := ink.NewService(store.NewTxMemory(), policy)
	router := api.NewRouter(api.NewHandler(svc, zap.NewNop()))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// =============================================================================
// BALANCE / ALLOWANCE
// =============================================================================

func TestGetBalance_SeedsWelcomeBonus(t *testing.T) {
	srv := newTestServer(t, ink.DefaultPolicy())

	var resp api.BalanceResponse
	status := getJSON(t, srv.URL+"/api/users/user-1/balance", &resp)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1", resp.UserID)
	assert.Equal(t, int64(100), resp.Balance)
}

func TestGetAllowance_DeniedCarriesReasonAndCountdown(t *testing.T) {
	// Zero bonus + zero caps: the very first allowance check is denied
	// with a daily_cap reason and a usable countdown.
	srv := newTestServer(t, ink.Policy{WelcomeBonus: 0, DailyFreeCap: 0, MonthlyFreeCap: 0})

	var resp api.AllowanceResponse
	status := getJSON(t, srv.URL+"/api/users/user-1/allowance", &resp)

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Allowed)
	assert.Equal(t, "daily_cap", resp.Reason)
	assert.NotEmpty(t, resp.ResetsIn)
	assert.Greater(t, resp.ResetsInSecond, int64(0))
}

// =============================================================================
// SPEND
// =============================================================================

func TestSpend_FreeAllotmentExhausts(t *testing.T) {
	srv := newTestServer(t, ink.Policy{WelcomeBonus: 0, DailyFreeCap: 2, MonthlyFreeCap: 50})

	for i := 0; i < 2; i++ {
		var resp api.AllowanceResponse
		status := postJSON(t, srv.URL+"/api/users/user-1/spend", nil, &resp)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, resp.Allowed, "spend %d", i+1)
		assert.Equal(t, "free_allotment", resp.Source)
	}

	var resp api.AllowanceResponse
	status := postJSON(t, srv.URL+"/api/users/user-1/spend", nil, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Allowed)
	assert.Equal(t, "daily_cap", resp.Reason)
}

// =============================================================================
// TRANSFER
// =============================================================================

func TestTransfer_SuccessAndHistory(t *testing.T) {
	srv := newTestServer(t, ink.DefaultPolicy())

	var resp api.TransferResponse
	status := postJSON(t, srv.URL+"/api/transfers", api.TransferRequestDTO{
		FromUserID:  "alice",
		ToUserID:    "bob",
		Amount:      30,
		Description: "Supported poem X",
		ToName:      "Bob",
	}, &resp)

	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	var bal api.BalanceResponse
	getJSON(t, srv.URL+"/api/users/bob/balance", &bal)
	assert.Equal(t, int64(130), bal.Balance)

	var hist api.HistoryResponse
	getJSON(t, srv.URL+"/api/users/alice/transactions", &hist)
	require.Len(t, hist.Transactions, 2)
	assert.Equal(t, "given", hist.Transactions[0].Kind)
	assert.Equal(t, int64(-30), hist.Transactions[0].Amount)
	assert.Equal(t, "bob", hist.Transactions[0].CounterpartyID)
}

func TestTransfer_InsufficientBalance_Is200(t *testing.T) {
	// A business denial is not an HTTP error: the UI renders "not enough
	// Ink", not a failure page.
	srv := newTestServer(t, ink.DefaultPolicy())

	var resp api.TransferResponse
	status := postJSON(t, srv.URL+"/api/transfers", api.TransferRequestDTO{
		FromUserID: "alice",
		ToUserID:   "bob",
		Amount:     101,
	}, &resp)

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Success)
	assert.Equal(t, "insufficient_balance", resp.Reason)
}

func TestTransfer_PreconditionViolationsAre400(t *testing.T) {
	srv := newTestServer(t, ink.DefaultPolicy())

	status := postJSON(t, srv.URL+"/api/transfers", api.TransferRequestDTO{
		FromUserID: "alice", ToUserID: "alice", Amount: 10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = postJSON(t, srv.URL+"/api/transfers", api.TransferRequestDTO{
		FromUserID: "alice", ToUserID: "bob", Amount: 0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = postJSON(t, srv.URL+"/api/transfers", api.TransferRequestDTO{
		ToUserID: "bob", Amount: 10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTransfer_IdempotencyReplayIs409(t *testing.T) {
	srv := newTestServer(t, ink.DefaultPolicy())

	req := api.TransferRequestDTO{
		FromUserID:     "alice",
		ToUserID:       "bob",
		Amount:         10,
		IdempotencyKey: "gift-1",
	}

	status := postJSON(t, srv.URL+"/api/transfers", req, nil)
	require.Equal(t, http.StatusOK, status)

	status = postJSON(t, srv.URL+"/api/transfers", req, nil)
	assert.Equal(t, http.StatusConflict, status)

	var bal api.BalanceResponse
	getJSON(t, srv.URL+"/api/users/alice/balance", &bal)
	assert.Equal(t, int64(90), bal.Balance, "replay must not debit twice")
}

// =============================================================================
// CREDIT / BOOST
// =============================================================================

func TestCredit_StoreWebhook(t *testing.T) {
	srv := newTestServer(t, ink.DefaultPolicy())

	status := postJSON(t, srv.URL+"/api/users/alice/credits", api.CreditRequestDTO{
		Amount:      500,
		Description: "Ink pack (500)",
	}, nil)
	assert.Equal(t, http.StatusNoContent, status)

	var bal api.BalanceResponse
	getJSON(t, srv.URL+"/api/users/alice/balance", &bal)
	assert.Equal(t, int64(600), bal.Balance)

	var hist api.HistoryResponse
	getJSON(t, srv.URL+"/api/users/alice/transactions", &hist)
	require.Len(t, hist.Transactions, 2)
	assert.Equal(t, "purchased", hist.Transactions[0].Kind)
}

func TestBoost_DebitsBalance(t *testing.T) {
	srv := newTestServer(t, ink.DefaultPolicy())

	var resp api.TransferResponse
	status := postJSON(t, srv.URL+"/api/users/alice/boosts", api.BoostRequestDTO{
		Cost:        40,
		Description: "Boosted poem",
		ContentID:   "poem-9",
	}, &resp)

	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	var bal api.BalanceResponse
	getJSON(t, srv.URL+"/api/users/alice/balance", &bal)
	assert.Equal(t, int64(60), bal.Balance)
}

// =============================================================================
// OPERATIONAL ENDPOINTS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, ink.DefaultPolicy())

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", nil))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
