// Package ledger derives the reconciliation summary of a cash register from
// its manual transactions and the store's order payments. Everything here is
// a pure function of its inputs: no I/O, no clock, no hidden state.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CashLabel is the method bucket that holds the opening value, every manual
// transaction and every payment recognised as cash.
const CashLabel = "Dinheiro"

// OrderType tags an order as a sale or a service order. OrderUnknown is used
// for legacy documents whose type cannot be derived from their status.
type OrderType string

const (
	OrderSale         OrderType = "sale"
	OrderServiceOrder OrderType = "service_order"
	OrderUnknown      OrderType = ""
)

// ParseOrderType maps a stored type column onto OrderType.
func ParseOrderType(s string) OrderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sale", "venda":
		return OrderSale
	case "service_order", "os", "ordem_servico":
		return OrderServiceOrder
	default:
		return OrderUnknown
	}
}

// MethodCode is the machine code of a payment method.
type MethodCode string

const (
	MethodCash     MethodCode = "cash"
	MethodPix      MethodCode = "pix"
	MethodDebit    MethodCode = "debit"
	MethodCredit   MethodCode = "credit"
	MethodTransfer MethodCode = "transfer"
	MethodOther    MethodCode = "other"
	MethodNone     MethodCode = ""
)

// ParseMethodCode normalises a stored method code. Unrecognised non-empty
// codes become MethodOther.
func ParseMethodCode(s string) MethodCode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return MethodNone
	case "cash", "dinheiro":
		return MethodCash
	case "pix":
		return MethodPix
	case "debit", "debito", "débito":
		return MethodDebit
	case "credit", "credito", "crédito":
		return MethodCredit
	case "transfer", "transferencia", "transferência":
		return MethodTransfer
	default:
		return MethodOther
	}
}

// TransactionType classifies a manual register transaction.
type TransactionType string

const (
	TxAdd     TransactionType = "add"
	TxRemove  TransactionType = "remove"
	TxExpense TransactionType = "expense"
)

// ParseTransactionType reports whether s names a known transaction type.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case TxAdd, TxRemove, TxExpense:
		return t, true
	}
	return "", false
}

// Signed applies the type's sign to the magnitude of v:
// add is an inflow, remove and expense are outflows.
func (t TransactionType) Signed(v decimal.Decimal) decimal.Decimal {
	if t == TxAdd {
		return v.Abs()
	}
	return v.Abs().Neg()
}
