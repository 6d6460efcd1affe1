package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

type DevMailer struct {
	out io.Writer
}

func NewDevMailer() *DevMailer {
	return &DevMailer{out: os.Stdout}
}

func (d *DevMailer) SendOTP(ctx context.Context, to, code string, purpose otp.Purpose, validFor time.Duration) error {
	msg := otpMessage(code, purpose, validFor)

	logger.InfoContext(ctx, "[DEV MAIL] OTP email",
		"to", to,
		"purpose", purpose,
		"code", code,
	)

	fmt.Fprintf(d.out, "\n"+
		"-----------------------------------------------------------------\n"+
		"OTP EMAIL (DEV MODE)\n"+
		"-----------------------------------------------------------------\n"+
		"To: %s\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"-----------------------------------------------------------------\n\n",
		to, msg.subject, msg.text)

	return nil
}
