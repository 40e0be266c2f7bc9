package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Filter / List ──────────────────────────────────────────────────────────

// OrderFilter is bound from the query string of GET /v1/stores/:storeID/orders.
type OrderFilter struct {
	Status string `form:"status"`
	Type   string `form:"type"   validate:"omitempty,oneof=sale service_order"`
	// Finalized keeps orders whose status carries a finalized or invoiced word
	Finalized bool `form:"finalized"`
	Page      int  `form:"page,default=1"   validate:"min=1"`
	Limit     int  `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type PaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"      validate:"required"`
	Method     string          `json:"method"      validate:"required,max=40"`
	MethodCode string          `json:"method_code" validate:"omitempty,oneof=cash pix debit credit transfer other"`
	// Date defaults to the order creation time when omitted
	Date *time.Time `json:"date"`
}

type CreateOrderRequest struct {
	Type     string           `json:"type"     validate:"required,oneof=sale service_order"`
	Status   string           `json:"status"   validate:"required,max=60"`
	Total    decimal.Decimal  `json:"total"    validate:"min=0"`
	Payments []PaymentRequest `json:"payments" validate:"dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,max=60"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PaymentResponse struct {
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	MethodCode string          `json:"method_code"`
	Date       *string         `json:"date"`
}

type OrderResponse struct {
	ID        string            `json:"id"`
	StoreID   string            `json:"store_id"`
	Number    int               `json:"number"`
	Label     string            `json:"label"`
	Type      string            `json:"type"`
	Status    string            `json:"status"`
	Finalized bool              `json:"finalized"`
	Total     decimal.Decimal   `json:"total"`
	Payments  []PaymentResponse `json:"payments"`
	CreatedAt string            `json:"created_at"`
}

type OrderListResponse struct {
	Data  []OrderResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
