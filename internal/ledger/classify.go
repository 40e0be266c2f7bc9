package ledger

import (
	"fmt"
	"strings"

	"caixapdv/internal/model"
)

var saleStatuses = map[string]bool{
	"venda":           true,
	"cliente final":   true,
	"cliente lojista": true,
}

// Exact statuses written by older clients for finalized service orders.
var legacyFinalizedStatuses = map[string]bool{
	"os finalizada e faturada": true,
	"os faturada":              true,
	"finalizada/faturada":      true,
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsCancelled reports whether an order status marks it as cancelled.
func IsCancelled(status string) bool {
	return strings.Contains(norm(status), "cancelada")
}

// IsSaleStatus matches the status literals that identify a sale when the
// order carries no explicit type.
func IsSaleStatus(status string) bool {
	return saleStatuses[norm(status)]
}

// IsFinalizedServiceOrder is the canonical finalized-service-order predicate:
// the status must say both "finalizada" and "faturada", or be one of the
// legacy exact strings.
func IsFinalizedServiceOrder(status string) bool {
	s := norm(status)
	if legacyFinalizedStatuses[s] {
		return true
	}
	return strings.Contains(s, "finalizada") && strings.Contains(s, "faturada")
}

// ClosedServiceOrderWords are the lower-case status words the order listing
// treats as finalized.
var ClosedServiceOrderWords = []string{"finalizada", "faturada", "finalizado", "faturado"}

// IsClosedServiceOrderLoose is the permissive predicate of the order listing:
// any one of ClosedServiceOrderWords is enough. Reconciliation never uses it.
func IsClosedServiceOrderLoose(status string) bool {
	s := norm(status)
	for _, w := range ClosedServiceOrderWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// KindOf resolves the order type. An explicit type wins; legacy orders
// without one are classified by status.
func KindOf(o *model.Order) OrderType {
	if o.Type != nil {
		if t := ParseOrderType(*o.Type); t != OrderUnknown {
			return t
		}
	}
	switch {
	case IsSaleStatus(o.Status):
		return OrderSale
	case strings.Contains(norm(o.Status), "os finalizada"), IsFinalizedServiceOrder(o.Status):
		return OrderServiceOrder
	default:
		return OrderUnknown
	}
}

// isServiceOrderRow decides the feed label prefix.
func isServiceOrderRow(o *model.Order) bool {
	if o.Type != nil && ParseOrderType(*o.Type) == OrderServiceOrder {
		return true
	}
	return strings.Contains(norm(o.Status), "os finalizada")
}

// FormatOrderNumber renders the feed label of an order: "O.S:<n>" for
// service orders and "PV:<n>" for everything else. Orders without a number
// fall back to the first block of their id.
func FormatOrderNumber(o *model.Order) string {
	prefix := "PV:"
	if isServiceOrderRow(o) {
		prefix = "O.S:"
	}
	if o.Number > 0 {
		return fmt.Sprintf("%s%d", prefix, o.Number)
	}
	id := o.ID.String()
	return prefix + strings.ToUpper(id[:8])
}

// ResolveMethodLabel returns the methods-map bucket for a payment.
func ResolveMethodLabel(label, code string) string {
	if ParseMethodCode(code) == MethodCash || strings.Contains(norm(label), "dinheiro") {
		return CashLabel
	}
	if l := strings.TrimSpace(label); l != "" {
		return l
	}
	if c := strings.TrimSpace(code); c != "" {
		return c
	}
	return "Outros"
}
