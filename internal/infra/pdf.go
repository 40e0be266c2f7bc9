package infra

// pdf.go: A4 closing report of one register, rendered with go-pdf/fpdf.
// Sections: header, financial totals, informed vs expected per method, and
// the full feed. Written to storagePath/closing_<store>_<register>.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"caixapdv/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const reportTimeLayout = "02/01/2006 15:04"

func money(d decimal.Decimal) string { return "R$ " + d.StringFixed(2) }

// GenerateClosingReportPDF writes the report of a closed register and returns
// the file path. The summary must carry the register.
func GenerateClosingReportPDF(s *dto.SummaryResponse, storagePath string) (string, error) {
	if s == nil || s.Register == nil {
		return "", fmt.Errorf("pdf: summary without register")
	}
	reg := s.Register
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	safeStore := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(reg.StoreID)
	filePath := filepath.Join(storagePath, fmt.Sprintf("closing_%s_%s.pdf", safeStore, reg.ID))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 8, tr("Fechamento de Caixa"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, tr("Loja: "+reg.StoreID), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 9)
	line := func(label, value string) {
		pdf.CellFormat(45, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW-45, 5, tr(value), "", 1, "L", false, 0, "")
	}
	line("Caixa:", reg.ID)
	line("Aberto por:", reg.OpenedByName)
	line("Abertura:", formatReportTime(reg.OpenedAt))
	if reg.ClosedAt != nil {
		line("Fechamento:", formatReportTime(*reg.ClosedAt))
	}
	cv := reg.ClosingValues
	if cv != nil {
		line("Fechado por:", cv.ClosedByName)
	}
	pdf.Ln(2)
	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(3)

	// ── Totals ────────────────────────────────────────────────────────────────
	fin := s.Financials
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 6, "Resumo", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	total := func(label string, v decimal.Decimal) {
		pdf.CellFormat(contentW*0.6, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.4, 5, money(v), "", 1, "R", false, 0, "")
	}
	total("Abertura", fin.Opening)
	total("Vendas", fin.Sales)
	total("Ordens de serviço", fin.OS)
	total("Reforços", fin.MoneyAdded)
	total("Sangrias", fin.MoneyRemoved)
	total("Despesas", fin.Expenses)
	total("Total de entradas", fin.TotalIn)
	total("Total de saídas", fin.TotalOut)
	pdf.SetFont("Helvetica", "B", 10)
	total("Saldo", fin.CashBalance)
	pdf.Ln(3)

	// ── Informed vs expected ─────────────────────────────────────────────────
	if cv != nil {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentW, 6, tr("Conferência"), "", 1, "L", false, 0, "")

		w1, w2 := contentW*0.4, contentW*0.2
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(w1, 6, "Forma", "B", 0, "L", false, 0, "")
		pdf.CellFormat(w2, 6, "Esperado", "B", 0, "R", false, 0, "")
		pdf.CellFormat(w2, 6, "Informado", "B", 0, "R", false, 0, "")
		pdf.CellFormat(w2, 6, tr("Diferença"), "B", 1, "R", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, label := range sortedLabels(cv.Expected, cv.Informed) {
			pdf.CellFormat(w1, 5, tr(label), "", 0, "L", false, 0, "")
			pdf.CellFormat(w2, 5, money(cv.Expected[label]), "", 0, "R", false, 0, "")
			pdf.CellFormat(w2, 5, money(cv.Informed[label]), "", 0, "R", false, 0, "")
			pdf.CellFormat(w2, 5, money(cv.Differences[label]), "", 1, "R", false, 0, "")
		}
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW, 5,
			tr(fmt.Sprintf("Desvio: %s (%s%%) - %s", money(cv.Deviation), cv.DeviationPct.StringFixed(2), cv.Classification)),
			"", 1, "L", false, 0, "")
		if cv.Observations != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(contentW, 5, tr("Observações: "+cv.Observations), "", "L", false)
		}
		pdf.Ln(3)
	}

	// ── Feed ──────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 6, tr("Movimentações"), "", 1, "L", false, 0, "")
	c1, c2, c3, c4 := contentW*0.2, contentW*0.18, contentW*0.42, contentW*0.2
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(c1, 5, "Data", "B", 0, "L", false, 0, "")
	pdf.CellFormat(c2, 5, "Ref.", "B", 0, "L", false, 0, "")
	pdf.CellFormat(c3, 5, tr("Descrição"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(c4, 5, "Valor", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	for _, e := range s.Feed {
		desc := e.Description
		if len(desc) > 48 {
			desc = desc[:47] + "..."
		}
		pdf.CellFormat(c1, 5, e.At.Format(reportTimeLayout), "", 0, "L", false, 0, "")
		pdf.CellFormat(c2, 5, tr(e.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(c3, 5, tr(desc), "", 0, "L", false, 0, "")
		pdf.CellFormat(c4, 5, money(e.Value), "", 1, "R", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func sortedLabels(maps ...map[string]decimal.Decimal) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// formatReportTime re-renders an RFC 3339 timestamp; unparsable input is
// returned unchanged.
func formatReportTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format(reportTimeLayout)
}
