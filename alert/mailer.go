package alert

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Mailer delivers a single alert message to the given recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPConfig holds connection settings for the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends alerts through an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	client *mail.Client
}

// NewSMTPMailer creates a mailer connected to the configured relay.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("alert: smtp client: %w", err)
	}
	return &SMTPMailer{cfg: cfg, client: client}, nil
}

// Send composes and delivers a plain-text alert message.
func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("alert: from address: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("alert: recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("alert: send: %w", err)
	}
	return nil
}
