/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  JSON shapes exchanged with callers. These mirror the ink.Service
  operations one-to-one; conversion lives here so the domain types never
  grow json tags.

CONVENTIONS:
  - Business denials are 200 responses with allowed/success=false plus a
    machine-readable reason and a reset countdown where one applies.
  - resets_in is both a human-readable duration ("7h32m10s") and whole
    seconds, so web and mobile clients don't parse Go duration syntax.
*/
package api

import (
	"time"

	"github.com/verseloft/ink-engine/ink"
)

// =============================================================================
// RESPONSES
// =============================================================================

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// AllowanceResponse answers "can this user spend one unit right now?".
type AllowanceResponse struct {
	Allowed        bool   `json:"allowed"`
	Source         string `json:"source,omitempty"`
	Reason         string `json:"reason,omitempty"`
	ResetsIn       string `json:"resets_in,omitempty"`
	ResetsInSecond int64  `json:"resets_in_seconds,omitempty"`
}

type TransferResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type TransactionDTO struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	Amount           int64     `json:"amount"`
	Description      string    `json:"description,omitempty"`
	CounterpartyID   string    `json:"counterparty_id,omitempty"`
	CounterpartyName string    `json:"counterparty_name,omitempty"`
	ContentID        string    `json:"content_id,omitempty"`
	ContentTitle     string    `json:"content_title,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type HistoryResponse struct {
	UserID       string           `json:"user_id"`
	Transactions []TransactionDTO `json:"transactions"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type TransferRequestDTO struct {
	FromUserID     string `json:"from_user_id"`
	ToUserID       string `json:"to_user_id"`
	Amount         int64  `json:"amount"`
	Description    string `json:"description"`
	FromName       string `json:"from_name,omitempty"`
	ToName         string `json:"to_name,omitempty"`
	ContentID      string `json:"content_id,omitempty"`
	ContentTitle   string `json:"content_title,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type CreditRequestDTO struct {
	Amount         int64  `json:"amount"`
	Kind           string `json:"kind,omitempty"` // defaults to "purchased"
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type BoostRequestDTO struct {
	Cost           int64  `json:"cost"`
	Description    string `json:"description"`
	ContentID      string `json:"content_id,omitempty"`
	ContentTitle   string `json:"content_title,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAllowanceResponse(d ink.Decision) AllowanceResponse {
	resp := AllowanceResponse{
		Allowed: d.Allowed,
		Source:  string(d.Source),
		Reason:  string(d.Reason),
	}
	if d.ResetsIn > 0 {
		resp.ResetsIn = d.ResetsIn.Round(time.Second).String()
		resp.ResetsInSecond = int64(d.ResetsIn / time.Second)
	}
	return resp
}

func toTransactionDTO(tx ink.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:               string(tx.ID),
		Kind:             string(tx.Kind),
		Amount:           tx.Amount,
		Description:      tx.Description,
		CounterpartyID:   string(tx.CounterpartyID),
		CounterpartyName: tx.CounterpartyName,
		ContentID:        tx.ContentID,
		ContentTitle:     tx.ContentTitle,
		CreatedAt:        tx.CreatedAt,
	}
}
