package ledger

import (
	"sort"
	"time"

	"caixapdv/internal/model"

	"github.com/shopspring/decimal"
)

// EntryKind: "opening" | "manual" | "order"
type EntryKind string

const (
	EntryOpening EntryKind = "opening"
	EntryManual  EntryKind = "manual"
	EntryOrder   EntryKind = "order"
)

// MethodAmount is one per-method sub-amount of an order row.
type MethodAmount struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// FeedEntry is one row of the register feed. Orders produce a single row no
// matter how many payments they carry; Methods lists the split.
type FeedEntry struct {
	ID          string          `json:"id"`
	Kind        EntryKind       `json:"kind"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Notes       string          `json:"notes,omitempty"`
	Type        string          `json:"type,omitempty"`
	Value       decimal.Decimal `json:"value"`
	MethodLabel string          `json:"method_label,omitempty"`
	Methods     []MethodAmount  `json:"methods,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	UserName    string          `json:"user_name,omitempty"`
	At          time.Time       `json:"at"`
}

// Financials are the aggregated totals of a register period.
// CashBalance is the grand total across every method bucket, not only the
// physical drawer.
type Financials struct {
	Opening      decimal.Decimal            `json:"opening"`
	Sales        decimal.Decimal            `json:"sales"`
	OS           decimal.Decimal            `json:"os"`
	CashBalance  decimal.Decimal            `json:"cash_balance"`
	Methods      map[string]decimal.Decimal `json:"methods"`
	TotalIn      decimal.Decimal            `json:"total_in"`
	TotalOut     decimal.Decimal            `json:"total_out"`
	MoneyAdded   decimal.Decimal            `json:"money_added"`
	MoneyRemoved decimal.Decimal            `json:"money_removed"`
	Expenses     decimal.Decimal            `json:"expenses"`
}

type Summary struct {
	Feed       []FeedEntry `json:"feed"`
	Financials Financials  `json:"financials"`
}

var epoch = time.Unix(0, 0)

// BuildSummary reduces a register and the store's orders into the feed and
// financials. A nil register yields an empty feed and zeroed financials.
// orders may contain other stores' orders and cancelled orders; both are
// skipped.
func BuildSummary(reg *model.Register, orders []model.Order) Summary {
	fin := Financials{Methods: map[string]decimal.Decimal{}}
	if reg == nil {
		return Summary{Feed: []FeedEntry{}, Financials: fin}
	}

	openTime := reg.OpenedAt
	var closeTime *time.Time
	if !reg.IsOpen() && reg.ClosedAt != nil {
		closeTime = reg.ClosedAt
	}
	inWindow := func(t time.Time) bool {
		if t.Before(openTime) {
			return false
		}
		return closeTime == nil || !t.After(*closeTime)
	}

	feed := make([]FeedEntry, 0, 1+len(reg.Transactions))
	feed = append(feed, FeedEntry{
		ID:          "opening-" + reg.ID.String(),
		Kind:        EntryOpening,
		Label:       "Abertura de caixa",
		Description: "Valor inicial",
		Type:        string(TxAdd),
		Value:       reg.InitialValue,
		MethodLabel: CashLabel,
		UserID:      reg.OpenedByID.String(),
		UserName:    reg.OpenedByName,
		At:          reg.OpenedAt,
	})
	fin.Opening = reg.InitialValue
	fin.Methods[CashLabel] = reg.InitialValue

	for _, tx := range reg.Transactions {
		feed = append(feed, FeedEntry{
			ID:          tx.ID.String(),
			Kind:        EntryManual,
			Label:       tx.Description,
			Description: tx.Description,
			Notes:       tx.Notes,
			Type:        tx.Type,
			Value:       tx.Value,
			MethodLabel: CashLabel,
			UserID:      tx.UserID.String(),
			UserName:    tx.UserName,
			At:          tx.Date,
		})
		fin.Methods[CashLabel] = fin.Methods[CashLabel].Add(tx.Value)

		if tx.Value.IsPositive() {
			fin.TotalIn = fin.TotalIn.Add(tx.Value)
		} else {
			fin.TotalOut = fin.TotalOut.Add(tx.Value.Abs())
		}
		switch TransactionType(tx.Type) {
		case TxAdd:
			fin.MoneyAdded = fin.MoneyAdded.Add(tx.Value.Abs())
		case TxRemove:
			fin.MoneyRemoved = fin.MoneyRemoved.Add(tx.Value.Abs())
		case TxExpense:
			fin.Expenses = fin.Expenses.Add(tx.Value.Abs())
		}
	}

	for i := range orders {
		o := &orders[i]
		if o.StoreID != reg.StoreID || IsCancelled(o.Status) || len(o.Payments) == 0 {
			continue
		}
		kind := KindOf(o)

		var (
			rowTotal decimal.Decimal
			rowAt    time.Time
			split    []MethodAmount
			kept     int
		)
		for _, p := range o.Payments {
			at := o.CreatedAt
			if p.Date != nil {
				at = *p.Date
			}
			if !inWindow(at) {
				continue
			}
			kept++
			if at.After(rowAt) {
				rowAt = at
			}

			switch kind {
			case OrderSale:
				fin.Sales = fin.Sales.Add(p.Amount)
			case OrderServiceOrder:
				fin.OS = fin.OS.Add(p.Amount)
			}
			fin.TotalIn = fin.TotalIn.Add(p.Amount)
			rowTotal = rowTotal.Add(p.Amount)

			label := ResolveMethodLabel(p.Method, p.MethodCode)
			fin.Methods[label] = fin.Methods[label].Add(p.Amount)
			split = addToSplit(split, label, p.Amount)
		}
		if kept == 0 {
			continue
		}

		entry := FeedEntry{
			ID:          o.ID.String(),
			Kind:        EntryOrder,
			Label:       FormatOrderNumber(o),
			Description: o.Status,
			Type:        string(kind),
			Value:       rowTotal,
			Methods:     split,
			At:          rowAt,
		}
		if len(split) == 1 {
			entry.MethodLabel = split[0].Method
		}
		feed = append(feed, entry)
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return sortKey(feed[i].At).After(sortKey(feed[j].At))
	})

	for _, v := range fin.Methods {
		fin.CashBalance = fin.CashBalance.Add(v)
	}

	return Summary{Feed: feed, Financials: fin}
}

func sortKey(t time.Time) time.Time {
	if t.IsZero() {
		return epoch
	}
	return t
}

func addToSplit(split []MethodAmount, label string, amount decimal.Decimal) []MethodAmount {
	for i := range split {
		if split[i].Method == label {
			split[i].Amount = split[i].Amount.Add(amount)
			return split
		}
	}
	return append(split, MethodAmount{Method: label, Amount: amount})
}
