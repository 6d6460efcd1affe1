package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendOTP(ctx context.Context, to, code string, purpose otp.Purpose, validFor time.Duration) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	msg := otpMessage(code, purpose, validFor)

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Email: to}})
	email.SetSubject(msg.subject)
	email.SetText(msg.text)
	email.SetHTML(msg.html)
	email.SetTags([]string{"otp", string(purpose)})

	if _, err := m.client.Email.Send(ctx, email); err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	return nil
}
