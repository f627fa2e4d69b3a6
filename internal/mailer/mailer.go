// Package mailer delivers transactional email. Rendering is a pure function
// of the message data; delivery failures are surfaced to the caller, which
// decides whether they are fatal for the enclosing flow.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/flicky/go-storefront-api/internal/config"
)

var ErrDelivery = errors.New("email delivery failed")

type Template string

const (
	TemplateEmailVerification Template = "email_verification"
	TemplatePasswordReset     Template = "password_reset"
	TemplateOrderConfirmation Template = "order_confirmation"
	TemplateOrderStatusUpdate Template = "order_status_update"
)

type Message struct {
	To       string
	Subject  string
	Template Template
	Data     map[string]any
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type smtpMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg config.SMTPConfig) (Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &smtpMailer{client: client, from: cfg.From}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	body, err := render(msg.Template, msg.Data)
	if err != nil {
		return fmt.Errorf("render %s: %w", msg.Template, err)
	}

	mm := mail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextHTML, body)

	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}
