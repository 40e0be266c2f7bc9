package ledger

import (
	"caixapdv/internal/model"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	onePct  = decimal.NewFromInt(1)
	fivePct = decimal.NewFromInt(5)
)

// ClassifyDeviation grades a count deviation percentage.
// normal: |pct| <= 1, warning: <= 5, critical: > 5
func ClassifyDeviation(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(onePct):
		return "normal"
	case abs.LessThanOrEqual(fivePct):
		return "warning"
	default:
		return "critical"
	}
}

// BuildClosing compares the operator's informed amounts with the computed
// method balances. Informed labels are normalised the same way payment
// labels are, so "dinheiro" and "Dinheiro" land in one bucket.
func BuildClosing(fin Financials, informed map[string]decimal.Decimal, observations string) model.ClosingValues {
	inf := make(map[string]decimal.Decimal, len(informed))
	for label, amount := range informed {
		key := ResolveMethodLabel(label, "")
		inf[key] = inf[key].Add(amount)
	}

	expected := make(map[string]decimal.Decimal, len(fin.Methods))
	for label, amount := range fin.Methods {
		expected[label] = amount
	}

	diffs := make(map[string]decimal.Decimal, len(expected))
	informedTotal := decimal.Zero
	for label, amount := range inf {
		diffs[label] = amount.Sub(expected[label])
		informedTotal = informedTotal.Add(amount)
	}
	for label, amount := range expected {
		if _, ok := inf[label]; !ok {
			diffs[label] = amount.Neg()
		}
	}

	deviation := informedTotal.Sub(fin.CashBalance)
	var pct decimal.Decimal
	if !fin.CashBalance.IsZero() {
		pct = deviation.Div(fin.CashBalance).Mul(hundred).Round(2)
	}

	return model.ClosingValues{
		Informed:     inf,
		Expected:     expected,
		Differences:  diffs,
		Observations: observations,
		Snapshot: model.ClosingSnapshot{
			Opening:      fin.Opening,
			Sales:        fin.Sales,
			OS:           fin.OS,
			CashBalance:  fin.CashBalance,
			TotalIn:      fin.TotalIn,
			TotalOut:     fin.TotalOut,
			MoneyAdded:   fin.MoneyAdded,
			MoneyRemoved: fin.MoneyRemoved,
			Expenses:     fin.Expenses,
		},
		Deviation:      deviation,
		DeviationPct:   pct,
		Classification: ClassifyDeviation(pct),
	}
}
