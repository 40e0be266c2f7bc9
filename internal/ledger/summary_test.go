package ledger_test

import (
	"testing"
	"time"

	"caixapdv/internal/ledger"
	"caixapdv/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ──────────────────────────────────────────────────────────────────

const store = "loja-1"

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func openRegister(initial string) *model.Register {
	return &model.Register{
		ID:           uuid.New(),
		StoreID:      store,
		Status:       model.RegisterOpen,
		InitialValue: dec(initial),
		OpenedByID:   uuid.New(),
		OpenedByName: "Ana",
		OpenedAt:     t0,
	}
}

func closedRegister(initial string, closedAt time.Time) *model.Register {
	r := openRegister(initial)
	r.Status = model.RegisterClosed
	r.ClosedAt = timePtr(closedAt)
	return r
}

func saleOrder(number int, payments ...model.OrderPayment) model.Order {
	return model.Order{
		ID:        uuid.New(),
		StoreID:   store,
		Number:    number,
		Type:      strPtr("sale"),
		Status:    "venda",
		CreatedAt: t0.Add(time.Hour),
		Payments:  payments,
	}
}

func pay(amount, method, code string, at time.Time) model.OrderPayment {
	return model.OrderPayment{ID: uuid.New(), Amount: dec(amount), Method: method, MethodCode: code, Date: timePtr(at)}
}

func manual(value, typ string, at time.Time) model.RegisterTransaction {
	return model.RegisterTransaction{
		ID:          uuid.New(),
		Description: "movimento",
		Value:       dec(value),
		Type:        typ,
		MethodLabel: ledger.CashLabel,
		MethodCode:  "cash",
		Date:        at,
		UserName:    "Ana",
	}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// ── Scenarios ─────────────────────────────────────────────────────────────────

func TestBuildSummary_NilRegister(t *testing.T) {
	s := ledger.BuildSummary(nil, []model.Order{saleOrder(1, pay("10", "Pix", "pix", t0))})

	assert.Empty(t, s.Feed)
	assert.Empty(t, s.Financials.Methods)
	assert.True(t, s.Financials.CashBalance.IsZero())
	assert.True(t, s.Financials.TotalIn.IsZero())
}

func TestBuildSummary_SimpleDay(t *testing.T) {
	reg := openRegister("100.00")
	orders := []model.Order{saleOrder(7, pay("50.00", "Dinheiro", "cash", t0.Add(time.Hour)))}

	s := ledger.BuildSummary(reg, orders)

	assertDec(t, "50", s.Financials.Sales)
	assertDec(t, "150", s.Financials.Methods[ledger.CashLabel])
	assertDec(t, "150", s.Financials.CashBalance)
	assertDec(t, "100", s.Financials.Opening)
	require.Len(t, s.Feed, 2)
	assert.Equal(t, "PV:7", s.Feed[0].Label)
	assert.Equal(t, ledger.EntryOpening, s.Feed[1].Kind)
}

func TestBuildSummary_ManualWithdrawal(t *testing.T) {
	reg := openRegister("100.00")
	reg.Transactions = []model.RegisterTransaction{manual("-30.00", "remove", t0.Add(2*time.Hour))}
	orders := []model.Order{saleOrder(7, pay("50.00", "Dinheiro", "cash", t0.Add(time.Hour)))}

	s := ledger.BuildSummary(reg, orders)

	assertDec(t, "30", s.Financials.MoneyRemoved)
	assertDec(t, "30", s.Financials.TotalOut)
	assertDec(t, "120", s.Financials.Methods[ledger.CashLabel])
	assertDec(t, "120", s.Financials.CashBalance)
	assert.Equal(t, ledger.EntryManual, s.Feed[0].Kind, "newest entry first")
}

func TestBuildSummary_MultiMethodPayment(t *testing.T) {
	reg := openRegister("80")
	orders := []model.Order{saleOrder(3,
		pay("20", "Pix", "pix", t0.Add(time.Hour)),
		pay("30", "Dinheiro", "cash", t0.Add(time.Hour)),
	)}

	s := ledger.BuildSummary(reg, orders)

	var rows []ledger.FeedEntry
	for _, e := range s.Feed {
		if e.Kind == ledger.EntryOrder {
			rows = append(rows, e)
		}
	}
	require.Len(t, rows, 1, "one feed row per order")
	assertDec(t, "50", rows[0].Value)
	require.Len(t, rows[0].Methods, 2)
	assert.Equal(t, "Pix", rows[0].Methods[0].Method)
	assert.Empty(t, rows[0].MethodLabel)

	assertDec(t, "20", s.Financials.Methods["Pix"])
	assertDec(t, "110", s.Financials.Methods[ledger.CashLabel])
	assertDec(t, "50", s.Financials.Sales)
	assertDec(t, "130", s.Financials.CashBalance)
}

// ── Properties ────────────────────────────────────────────────────────────────

func TestBuildSummary_BalanceConservation(t *testing.T) {
	reg := openRegister("250.50")
	reg.Transactions = []model.RegisterTransaction{
		manual("40", "add", t0.Add(10*time.Minute)),
		manual("-12.25", "expense", t0.Add(3*time.Hour)),
		manual("-60", "remove", t0.Add(5*time.Hour)),
	}
	orders := []model.Order{
		saleOrder(1, pay("19.90", "Crédito", "credit", t0.Add(time.Hour))),
		saleOrder(2, pay("5", "dinheiro", "", t0.Add(2*time.Hour)), pay("7.10", "Débito", "debit", t0.Add(2*time.Hour))),
		{
			ID: uuid.New(), StoreID: store, Number: 3, Type: strPtr("service_order"), Status: "OS finalizada e faturada",
			CreatedAt: t0.Add(4 * time.Hour),
			Payments:  []model.OrderPayment{{Amount: dec("300"), Method: "Pix", MethodCode: "pix"}},
		},
	}

	s := ledger.BuildSummary(reg, orders)

	want := dec("250.50").
		Add(dec("40")).Add(dec("-12.25")).Add(dec("-60")).
		Add(dec("19.90")).Add(dec("5")).Add(dec("7.10")).Add(dec("300"))
	assertDec(t, want.String(), s.Financials.CashBalance)
	assertDec(t, "32", s.Financials.Sales)
	assertDec(t, "300", s.Financials.OS)
	assertDec(t, "12.25", s.Financials.Expenses)
	assertDec(t, "40", s.Financials.MoneyAdded)
	assertDec(t, "372", s.Financials.TotalIn)
	assertDec(t, "72.25", s.Financials.TotalOut)
}

func TestBuildSummary_WindowBoundsInclusive(t *testing.T) {
	closeAt := t0.Add(8 * time.Hour)
	reg := closedRegister("0", closeAt)
	ms := time.Millisecond
	orders := []model.Order{
		saleOrder(1, pay("1", "Pix", "pix", t0)),
		saleOrder(2, pay("2", "Pix", "pix", closeAt)),
		saleOrder(3, pay("4", "Pix", "pix", t0.Add(-ms))),
		saleOrder(4, pay("8", "Pix", "pix", closeAt.Add(ms))),
	}

	s := ledger.BuildSummary(reg, orders)

	assertDec(t, "3", s.Financials.Methods["Pix"])
	assertDec(t, "3", s.Financials.Sales)
}

func TestBuildSummary_OpenRegisterIsUnbounded(t *testing.T) {
	reg := openRegister("0")
	far := t0.AddDate(1, 0, 0)

	s := ledger.BuildSummary(reg, []model.Order{saleOrder(1, pay("9", "Pix", "pix", far))})

	assertDec(t, "9", s.Financials.Sales)
}

func TestBuildSummary_PaymentLevelWindowing(t *testing.T) {
	closeAt := t0.Add(8 * time.Hour)
	reg := closedRegister("10", closeAt)
	o := saleOrder(5,
		pay("15", "Pix", "pix", t0.Add(time.Hour)),
		pay("99", "Pix", "pix", closeAt.Add(time.Hour)),
	)

	s := ledger.BuildSummary(reg, []model.Order{o})

	assertDec(t, "15", s.Financials.Sales)
	assertDec(t, "25", s.Financials.CashBalance)
}

func TestBuildSummary_PaymentDateFallsBackToOrderCreation(t *testing.T) {
	reg := closedRegister("0", t0.Add(time.Hour))
	inside := saleOrder(1, model.OrderPayment{Amount: dec("6"), Method: "Pix"})
	inside.CreatedAt = t0.Add(30 * time.Minute)
	outside := saleOrder(2, model.OrderPayment{Amount: dec("50"), Method: "Pix"})
	outside.CreatedAt = t0.Add(-time.Minute)

	s := ledger.BuildSummary(reg, []model.Order{inside, outside})

	assertDec(t, "6", s.Financials.Sales)
}

func TestBuildSummary_IdempotentRecompute(t *testing.T) {
	reg := openRegister("100")
	reg.Transactions = []model.RegisterTransaction{manual("-5", "expense", t0.Add(time.Minute))}
	orders := []model.Order{
		saleOrder(1, pay("10", "Pix", "pix", t0.Add(time.Hour))),
		saleOrder(2, pay("10", "Dinheiro", "cash", t0.Add(time.Hour))),
	}

	first := ledger.BuildSummary(reg, orders)
	second := ledger.BuildSummary(reg, orders)

	assert.Equal(t, first, second)
}

func TestBuildSummary_CancelledOrderExcluded(t *testing.T) {
	reg := openRegister("10")
	for _, status := range []string{"cancelada", "CANCELADA", "Venda Cancelada"} {
		o := saleOrder(1, pay("500", "Pix", "pix", t0.Add(time.Hour)))
		o.Status = status

		s := ledger.BuildSummary(reg, []model.Order{o})

		assert.True(t, s.Financials.Sales.IsZero(), status)
		assert.True(t, s.Financials.TotalIn.IsZero(), status)
		assertDec(t, "10", s.Financials.CashBalance, status)
		assert.Len(t, s.Feed, 1, status)
	}
}

func TestBuildSummary_SkipsOrdersWithoutPaymentsAndOtherStores(t *testing.T) {
	reg := openRegister("10")
	empty := saleOrder(1)
	foreign := saleOrder(2, pay("70", "Pix", "pix", t0.Add(time.Hour)))
	foreign.StoreID = "loja-2"

	s := ledger.BuildSummary(reg, []model.Order{empty, foreign})

	assert.Len(t, s.Feed, 1)
	assertDec(t, "10", s.Financials.CashBalance)
}

func TestBuildSummary_ServiceOrderLabelAndTotals(t *testing.T) {
	reg := openRegister("0")
	legacy := model.Order{
		ID: uuid.New(), StoreID: store, Number: 42, Status: "Os Finalizada",
		CreatedAt: t0.Add(time.Hour),
		Payments:  []model.OrderPayment{{Amount: dec("80"), Method: "Cartão", MethodCode: "credit"}},
	}

	s := ledger.BuildSummary(reg, []model.Order{legacy})

	require.Len(t, s.Feed, 2)
	assert.Equal(t, "O.S:42", s.Feed[0].Label)
	assertDec(t, "80", s.Financials.OS)
	assert.True(t, s.Financials.Sales.IsZero())
	assertDec(t, "80", s.Financials.Methods["Cartão"])
}

func TestBuildSummary_UnknownKindCountsOnlyInTotals(t *testing.T) {
	reg := openRegister("0")
	o := model.Order{
		ID: uuid.New(), StoreID: store, Number: 9, Status: "orçamento",
		Payments: []model.OrderPayment{pay("12", "Pix", "pix", t0.Add(time.Hour))},
	}

	s := ledger.BuildSummary(reg, []model.Order{o})

	assert.True(t, s.Financials.Sales.IsZero())
	assert.True(t, s.Financials.OS.IsZero())
	assertDec(t, "12", s.Financials.TotalIn)
	assertDec(t, "12", s.Financials.CashBalance)
}

func TestBuildSummary_FeedSortedNewestFirstWithZeroTimesLast(t *testing.T) {
	reg := openRegister("0")
	reg.Transactions = []model.RegisterTransaction{
		manual("1", "add", time.Time{}),
		manual("2", "add", t0.Add(3*time.Hour)),
		manual("3", "add", t0.Add(1*time.Hour)),
	}

	s := ledger.BuildSummary(reg, nil)

	require.Len(t, s.Feed, 4)
	assertDec(t, "2", s.Feed[0].Value)
	assertDec(t, "3", s.Feed[1].Value)
	assert.Equal(t, ledger.EntryOpening, s.Feed[2].Kind)
	assertDec(t, "1", s.Feed[3].Value)
}
