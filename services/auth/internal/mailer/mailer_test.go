package mailer

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

func TestDevMailer_WritesCode(t *testing.T) {
	var buf bytes.Buffer
	d := &DevMailer{out: &buf}

	if err := d.SendOTP(context.Background(), "player@rru.ac.in", "482913", otp.PurposePasswordReset, 10*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "482913") || !strings.Contains(out, "player@rru.ac.in") {
		t.Errorf("dev mail output missing code or recipient: %s", out)
	}
	if !strings.Contains(out, "expires in 10 minutes") {
		t.Errorf("dev mail output missing expiry: %s", out)
	}
}

func TestOTPMessage_SubjectPerPurpose(t *testing.T) {
	verify := otpMessage("111111", otp.PurposeEmailVerification, 10*time.Minute)
	reset := otpMessage("111111", otp.PurposePasswordReset, 10*time.Minute)

	if verify.subject == reset.subject {
		t.Error("expected different subjects per purpose")
	}
	if !strings.Contains(verify.html, "111111") || !strings.Contains(reset.text, "111111") {
		t.Error("expected code in both bodies")
	}
}

func TestNew_SelectsImplementation(t *testing.T) {
	if _, ok := New(config.EmailConfig{DevMode: true}).(*DevMailer); !ok {
		t.Error("expected dev mailer in dev mode")
	}
	if _, ok := New(config.EmailConfig{MailerSendKey: "k", SMTPFrom: "a@b.c"}).(*MailerSendClient); !ok {
		t.Error("expected MailerSend when key is set")
	}
	if _, ok := New(config.EmailConfig{SMTPHost: "localhost", SMTPPort: 25}).(*SMTPMailer); !ok {
		t.Error("expected SMTP otherwise")
	}
}

func TestMailerSend_NotConfigured(t *testing.T) {
	m := NewMailerSend("", "RRU", "")
	if err := m.SendOTP(context.Background(), "a@b.c", "123456", otp.PurposePasswordReset, time.Minute); err == nil {
		t.Error("expected error when MailerSend is not configured")
	}
}

func TestSMTPMailer_HonorsDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// accept and never send a greeting
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	m := NewSMTPMailer("127.0.0.1", port, "noreply@rru.local", "", "", false)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = m.SendOTP(ctx, "player@rru.ac.in", "123456", otp.PurposePasswordReset, time.Minute)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("send did not respect deadline, took %v", elapsed)
	}
}
