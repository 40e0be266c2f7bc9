package worker

// closing_report_worker.go: renders the PDF of a closed register and, when
// a recipient is configured, hands it to the e-mail queue.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"caixapdv/internal/apperrors"
	"caixapdv/internal/dto"
	"caixapdv/internal/infra"
	"caixapdv/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReportSource is satisfied by service.RegisterService.
type ReportSource interface {
	Report(ctx context.Context, registerID uuid.UUID) (*dto.SummaryResponse, error)
}

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ClosingReportWorker struct {
	reports     ReportSource
	emails      EmailEnqueuer
	storagePath string
	emailTo     string
}

func NewClosingReportWorker(reports ReportSource, emails EmailEnqueuer, storagePath, emailTo string) *ClosingReportWorker {
	return &ClosingReportWorker{reports: reports, emails: emails, storagePath: storagePath, emailTo: emailTo}
}

func (w *ClosingReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ClosingReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("closing_report_worker: invalid payload")
		return nil
	}
	id, err := uuid.Parse(payload.RegisterID)
	if err != nil {
		log.Error().Str("register_id", payload.RegisterID).Msg("closing_report_worker: invalid register_id")
		return nil
	}

	summary, err := w.reports.Report(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		log.Warn().Str("register_id", payload.RegisterID).Msg("closing_report_worker: register not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("closing_report_worker: load report: %w", err)
	}
	// Reopened before the job ran; the next close enqueues a fresh report
	if summary.Register == nil || summary.Register.Status != model.RegisterClosed {
		log.Info().Str("register_id", payload.RegisterID).Msg("closing_report_worker: register no longer closed, skipping")
		return nil
	}

	path, err := infra.GenerateClosingReportPDF(summary, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("register_id", payload.RegisterID).Str("path", path).Msg("closing_report_worker: PDF generated")

	if w.emailTo == "" || w.emails == nil {
		return nil
	}
	reg := summary.Register
	body := fmt.Sprintf("Fechamento do caixa %s da loja %s.\nSaldo: R$ %s\n",
		reg.ID, reg.StoreID, summary.Financials.CashBalance.StringFixed(2))
	if cv := reg.ClosingValues; cv != nil {
		body += fmt.Sprintf("Desvio: R$ %s (%s)\n", cv.Deviation.StringFixed(2), cv.Classification)
	}
	return w.emails.EnqueueEmail(ctx, EmailJobPayload{
		ToEmail: w.emailTo,
		Subject: fmt.Sprintf("Fechamento de caixa - loja %s", reg.StoreID),
		Body:    body,
		PDFPath: path,
	})
}
