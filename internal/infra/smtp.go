package infra

import (
	"fmt"
	"net/smtp"

	"caixapdv/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending closing reports.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Enabled reports whether an SMTP host was configured.
func (m *Mailer) Enabled() bool { return m.host != "" }

// SendReport mails body with the PDF at pdfPath attached (if any).
func (m *Mailer) SendReport(to, subject, body, pdfPath string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer: SMTP host not configured")
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return e.Send(m.addr, auth)
}
