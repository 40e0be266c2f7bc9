package dto

import (
	"caixapdv/internal/ledger"
	"caixapdv/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated user performing a register operation.
type Actor struct {
	ID   uuid.UUID
	Name string
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenRegisterRequest struct {
	InitialValue decimal.Decimal `json:"initial_value" validate:"min=0"`
}

// ManualTransactionRequest: the sign of Value is ignored, Type decides it
// (add → inflow, remove/expense → outflow).
type ManualTransactionRequest struct {
	Description string          `json:"description"  validate:"required,min=2,max=200"`
	Notes       string          `json:"notes"        validate:"max=500"`
	Value       decimal.Decimal `json:"value"        validate:"required"`
	Type        string          `json:"type"         validate:"required,oneof=add remove expense"`
	MethodLabel string          `json:"method_label" validate:"max=40"`
	MethodCode  string          `json:"method_code"  validate:"omitempty,oneof=cash pix debit credit transfer other"`
}

// CloseRegisterRequest carries the amounts counted by the operator per
// method label. They are recorded even when they disagree with the ledger.
type CloseRegisterRequest struct {
	Informed     map[string]decimal.Decimal `json:"informed"     validate:"required"`
	Observations string                     `json:"observations" validate:"max=1000"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ManualTransactionResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
	Value       decimal.Decimal `json:"value"`
	Type        string          `json:"type"`
	MethodLabel string          `json:"method_label"`
	MethodCode  string          `json:"method_code"`
	Date        string          `json:"date"`
	UserID      string          `json:"user_id"`
	UserName    string          `json:"user_name"`
}

type RegisterResponse struct {
	ID            string                      `json:"id"`
	StoreID       string                      `json:"store_id"`
	Status        string                      `json:"status"`
	InitialValue  decimal.Decimal             `json:"initial_value"`
	OpenedByID    string                      `json:"opened_by_id"`
	OpenedByName  string                      `json:"opened_by_name"`
	OpenedAt      string                      `json:"opened_at"`
	ClosedAt      *string                     `json:"closed_at"`
	Transactions  []ManualTransactionResponse `json:"transactions"`
	ClosingValues *model.ClosingValues        `json:"closing_values"`
}

// SummaryResponse is what the register screens render: the register (nil
// when the store has none open) plus the ledger feed and financials.
type SummaryResponse struct {
	Register   *RegisterResponse  `json:"register"`
	Feed       []ledger.FeedEntry `json:"feed"`
	Financials ledger.Financials  `json:"financials"`
}

type RegisterHistoryResponse struct {
	Data  []RegisterResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}
