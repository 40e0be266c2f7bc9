package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is a sale or service order. Type is nil on legacy rows written
// before the column existed; the ledger classifies those by Status.
type Order struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID   string          `gorm:"type:varchar(64);not null;index"`
	Number    int             `gorm:"not null"`
	Type      *string         `gorm:"type:varchar(20)"`
	Status    string          `gorm:"type:varchar(60);not null"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Payments []OrderPayment `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// OrderPayment is one method-tagged amount of an order. Date falls back to
// the order's CreatedAt when nil.
type OrderPayment struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Position   int             `gorm:"not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method     string          `gorm:"type:varchar(40);not null"`
	MethodCode string          `gorm:"type:varchar(20)"`
	Date       *time.Time
}

func (OrderPayment) TableName() string { return "order_payments" }
