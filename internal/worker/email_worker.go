package worker

// email_worker.go: sends closing reports from QueueEmail. Every send goes
// through the SMTP circuit breaker.

import (
	"context"
	"encoding/json"
	"fmt"

	"caixapdv/internal/infra"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path"`
}

// ReportSender is satisfied by *infra.Mailer.
type ReportSender interface {
	SendReport(to, subject, body, pdfPath string) error
}

type EmailWorker struct {
	mailer ReportSender
	cb     *infra.CircuitBreaker
}

func NewEmailWorker(mailer ReportSender, cb *infra.CircuitBreaker) *EmailWorker {
	return &EmailWorker{mailer: mailer, cb: cb}
}

// Process returns an error for anything worth retrying; malformed payloads
// are logged and dropped.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	err := w.cb.Execute(func() error {
		return w.mailer.SendReport(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath)
	})
	if err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: closing report sent")
	return nil
}
