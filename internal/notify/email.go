package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"fleetgov.org/internal/auth"
	"fleetgov.org/internal/config"
)

// EmailSender delivers one-time codes over SMTP.
type EmailSender struct {
	client *mail.Client
	from   string
}

var _ auth.Sender = (*EmailSender)(nil)

func NewEmailSender(cfg config.SMTPConfig) (*EmailSender, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("mail client: %w", err)
	}
	return &EmailSender{client: client, from: cfg.From}, nil
}

func (s *EmailSender) Send(ctx context.Context, _ auth.Channel, recipient, code string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject("Fleet management sign-in code")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Your sign-in verification code is %s.\n\nIt expires in 5 minutes. If you did not attempt to sign in, contact your transport officer.\n", code))

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
