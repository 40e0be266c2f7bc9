package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	RegisterOpen   = "open"
	RegisterClosed = "closed"
)

// Register is one cash-drawer session of a store.
// Status: "open" | "closed". At most one open register per store
// (enforced by ux_registers_store_open and the repository lock).
type Register struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID string    `gorm:"type:varchar(64);not null;index"`
	Status  string    `gorm:"type:varchar(10);not null;default:'open'"`
	// InitialValue is set at open time and never changes afterwards.
	InitialValue decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	OpenedByID   uuid.UUID       `gorm:"type:uuid"`
	OpenedByName string
	OpenedAt     time.Time
	ClosedAt     *time.Time
	// ClosingValues is written once at close and cleared on reopen.
	ClosingValues datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt     time.Time

	Transactions []RegisterTransaction `gorm:"foreignKey:RegisterID"`
}

func (Register) TableName() string { return "registers" }

func (r *Register) IsOpen() bool { return r.Status == RegisterOpen }

// Closing decodes ClosingValues. Returns nil when the register was never closed.
func (r *Register) Closing() (*ClosingValues, error) {
	if len(r.ClosingValues) == 0 {
		return nil, nil
	}
	var cv ClosingValues
	if err := json.Unmarshal(r.ClosingValues, &cv); err != nil {
		return nil, err
	}
	return &cv, nil
}

// SetClosing encodes cv into ClosingValues; nil clears the column.
func (r *Register) SetClosing(cv *ClosingValues) error {
	if cv == nil {
		r.ClosingValues = nil
		return nil
	}
	raw, err := json.Marshal(cv)
	if err != nil {
		return err
	}
	r.ClosingValues = datatypes.JSON(raw)
	return nil
}

// RegisterTransaction is a manual cash movement (reinforcement, withdrawal,
// expense). Rows are append-only: there is no update or delete path.
// Type: "add" | "remove" | "expense". Value is signed.
type RegisterTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID  uuid.UUID       `gorm:"type:uuid;index;not null"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"not null"`
	Notes       string
	Value       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Type        string          `gorm:"type:varchar(10);not null"`
	MethodLabel string          `gorm:"type:varchar(40)"`
	MethodCode  string          `gorm:"type:varchar(20)"`
	Date        time.Time
	UserID      uuid.UUID `gorm:"type:uuid"`
	UserName    string
}

func (RegisterTransaction) TableName() string { return "register_transactions" }

// ClosingValues is the snapshot stored when a register is closed.
// Informed amounts are recorded as typed by the operator; discrepancies
// against Expected are kept, never rejected.
type ClosingValues struct {
	Informed       map[string]decimal.Decimal `json:"informed"`
	Expected       map[string]decimal.Decimal `json:"expected"`
	Differences    map[string]decimal.Decimal `json:"differences"`
	Observations   string                     `json:"observations"`
	Snapshot       ClosingSnapshot            `json:"snapshot"`
	Deviation      decimal.Decimal            `json:"deviation"`
	DeviationPct   decimal.Decimal            `json:"deviation_pct"`
	Classification string                     `json:"classification"` // normal | warning | critical
	ClosedByID     string                     `json:"closed_by_id"`
	ClosedByName   string                     `json:"closed_by_name"`
}

type ClosingSnapshot struct {
	Opening      decimal.Decimal `json:"opening"`
	Sales        decimal.Decimal `json:"sales"`
	OS           decimal.Decimal `json:"os"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
	TotalIn      decimal.Decimal `json:"total_in"`
	TotalOut     decimal.Decimal `json:"total_out"`
	MoneyAdded   decimal.Decimal `json:"money_added"`
	MoneyRemoved decimal.Decimal `json:"money_removed"`
	Expenses     decimal.Decimal `json:"expenses"`
}
