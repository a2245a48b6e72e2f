package user

import (
	"context"
	"mime"
	"net/smtp"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/buyproxy/internal/config"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpMailer struct {
	addr string
	from string
}

type logMailer struct{}

// NewMailer sends through SMTP, or only logs the message when no host is configured.
func NewMailer(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		return logMailer{}
	}
	return &smtpMailer{addr: cfg.Host + ":" + cfg.Port, from: cfg.From}
}

func (m *smtpMailer) Send(_ context.Context, to, subject, body string) error {
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, buildMessage(m.from, to, subject, body))
}

// buildMessage renders a plain-text message. The subject is RFC 2047 encoded since reset mails carry Korean subjects.
func buildMessage(from, to, subject, body string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n" +
		"MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n" +
		body)
}

// Send on logMailer records only the envelope; the body holds the reset token.
func (logMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("mail delivery disabled, message dropped")
	return nil
}
