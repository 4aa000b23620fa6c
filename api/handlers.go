/*
handlers.go - HTTP handlers for the Ink ledger

PURPOSE:
  Exposes the ledger engine over a small set of JSON RPCs mirroring the
  ink.Service operations one-to-one. Handlers parse, validate, delegate,
  serialize; no ledger logic lives here.

ENDPOINTS:
  GET  /api/users/{id}/balance       Spendable balance (lazily initialized)
  GET  /api/users/{id}/allowance     Can the user spend one unit right now?
  POST /api/users/{id}/spend         Spend one unit (the clap gate)
  POST /api/users/{id}/credits       External money-in (store webhook)
  POST /api/users/{id}/boosts        Balance-debiting feature purchase
  POST /api/transfers                User-to-user gift
  GET  /api/users/{id}/transactions  Ledger history, newest first

ERROR HANDLING:
  Business denials (insufficient balance, exhausted allotment) are 200
  responses the client branches on - the UI renders an upsell, not an
  error page. HTTP status codes are reserved for real failures:
  - 400: malformed request, precondition violation
  - 409: replayed idempotency key
  - 500: storage fault ("try again", never "not enough Ink")

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/verseloft/ink-engine/ink"
	"github.com/verseloft/ink-engine/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Svc *ink.Service
	Log *zap.Logger
}

// NewHandler creates a handler over the given service.
func NewHandler(svc *ink.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Svc: svc, Log: log}
}

// =============================================================================
// BALANCE / ALLOWANCE
// =============================================================================

// GetBalance returns the user's spendable balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := ink.UserID(chi.URLParam(r, "id"))

	balance, err := h.Svc.Balance(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{UserID: string(userID), Balance: balance})
}

// GetAllowance previews whether a one-unit spend would be allowed.
func (h *Handler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	userID := ink.UserID(chi.URLParam(r, "id"))

	d, err := h.Svc.CanSpend(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "allowance", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllowanceResponse(d))
}

// =============================================================================
// SPENDING
// =============================================================================

// SpendOne spends one unit. Content collaborators call this before
// incrementing their own engagement counters.
func (h *Handler) SpendOne(w http.ResponseWriter, r *http.Request) {
	userID := ink.UserID(chi.URLParam(r, "id"))

	d, err := h.Svc.SpendOne(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "spend", err)
		return
	}
	metrics.Spends.WithLabelValues(spendSourceLabel(d), spendOutcomeLabel(d)).Inc()
	writeJSON(w, http.StatusOK, toAllowanceResponse(d))
}

// Transfer moves Ink from one user to another.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if req.FromUserID == "" || req.ToUserID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "from_user_id and to_user_id are required"})
		return
	}

	res, err := h.Svc.Transfer(r.Context(), ink.TransferRequest{
		From:           ink.UserID(req.FromUserID),
		To:             ink.UserID(req.ToUserID),
		Amount:         req.Amount,
		Description:    req.Description,
		FromName:       req.FromName,
		ToName:         req.ToName,
		ContentID:      req.ContentID,
		ContentTitle:   req.ContentTitle,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, "transfer", err)
		return
	}
	metrics.Transfers.WithLabelValues(resultLabel(res)).Inc()
	writeJSON(w, http.StatusOK, TransferResponse{Success: res.OK, Reason: string(res.Reason)})
}

// Credit adds purchased (or signup) Ink. The payment collaborator calls
// this exactly once per confirmed purchase.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	userID := ink.UserID(chi.URLParam(r, "id"))

	var req CreditRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	err := h.Svc.Credit(r.Context(), ink.CreditRequest{
		UserID:         userID,
		Amount:         req.Amount,
		Kind:           ink.Kind(req.Kind),
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, "credit", err)
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = string(ink.KindPurchased)
	}
	metrics.Credits.WithLabelValues(kind).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// Boost debits a feature purchase with no receiving user.
func (h *Handler) Boost(w http.ResponseWriter, r *http.Request) {
	userID := ink.UserID(chi.URLParam(r, "id"))

	var req BoostRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	res, err := h.Svc.Boost(r.Context(), ink.BoostRequest{
		UserID:         userID,
		Cost:           req.Cost,
		Description:    req.Description,
		ContentID:      req.ContentID,
		ContentTitle:   req.ContentTitle,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, "boost", err)
		return
	}
	metrics.Boosts.WithLabelValues(resultLabel(res)).Inc()
	writeJSON(w, http.StatusOK, TransferResponse{Success: res.OK, Reason: string(res.Reason)})
}

// =============================================================================
// HISTORY
// =============================================================================

// GetHistory returns the user's ledger records, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := ink.UserID(chi.URLParam(r, "id"))

	txs, err := h.Svc.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "history", err)
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, HistoryResponse{UserID: string(userID), Transactions: dtos})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto an HTTP status. Storage faults log
// at error level and return a retryable 500; client errors do not.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ink.ErrDuplicateIdempotencyKey):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "duplicate idempotency key",
			Details: "this operation was already applied",
		})
	case ink.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		metrics.StorageFaults.WithLabelValues(op).Inc()
		h.Log.Error("storage fault",
			zap.String("op", op),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "temporary storage failure",
			Details: "please retry",
		})
	}
}

func spendSourceLabel(d ink.Decision) string {
	if !d.Allowed {
		return "none"
	}
	return string(d.Source)
}

func spendOutcomeLabel(d ink.Decision) string {
	if d.Allowed {
		return "allowed"
	}
	return string(d.Reason)
}

func resultLabel(res ink.TransferResult) string {
	if res.OK {
		return "ok"
	}
	return string(res.Reason)
}
