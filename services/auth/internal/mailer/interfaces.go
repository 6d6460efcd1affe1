package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

// Service delivers one-time codes. Implementations must honor ctx's deadline.
type Service interface {
	SendOTP(ctx context.Context, to, code string, purpose otp.Purpose, validFor time.Duration) error
}

// New picks MailerSend when an API key is set, the dev mailer in dev mode,
// and SMTP otherwise.
func New(cfg config.EmailConfig) Service {
	switch {
	case cfg.MailerSendKey != "":
		logger.Info("Using MailerSend for email delivery")
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	case cfg.DevMode:
		logger.Info("Using dev mailer, codes are written to the log")
		return NewDevMailer()
	default:
		logger.Info("Using SMTP for email delivery", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}

type message struct {
	subject string
	text    string
	html    string
}

func otpMessage(code string, purpose otp.Purpose, validFor time.Duration) message {
	minutes := int(validFor.Minutes())

	switch purpose {
	case otp.PurposeEmailVerification:
		return message{
			subject: "Verify your RRU Cricket account",
			text:    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
			html: fmt.Sprintf(`
		<h2>Welcome to RRU Cricket Attendance</h2>
		<p>Your verification code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>This code will expire in %d minutes.</p>
		<p>If you didn't create an account, please ignore this email.</p>
	`, code, minutes),
		}
	default:
		return message{
			subject: "Your RRU Cricket password reset code",
			text:    fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, minutes),
			html: fmt.Sprintf(`
		<h2>Password reset</h2>
		<p>Your reset code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>This code will expire in %d minutes.</p>
		<p>If you didn't request a reset, you can ignore this email.</p>
	`, code, minutes),
		}
	}
}
