package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/secureflow/vulnticket/internal/config"
)

// SMTPNotifier delivers mail through a relay via gomail.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPNotifier builds a notifier from SMTP configuration.
func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendImmediate dials the relay and sends one message. gomail has no context
// support; cancellation is checked before dialing.
func (n *SMTPNotifier) SendImmediate(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
