// Package otp issues, stores and checks single-use six digit passcodes keyed
// by purpose and email.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/logger"
)

type Purpose string

const (
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
)

func (p Purpose) Valid() bool {
	return p == PurposePasswordReset || p == PurposeEmailVerification
}

const (
	// TTL is fixed; callers cannot shorten or extend a code's lifetime.
	TTL = 10 * time.Minute

	DefaultDeliveryTimeout = 10 * time.Second

	codeMin = 100000
	codeMax = 999999
)

var (
	ErrNotFound = &apperr.Error{Kind: apperr.NotFound, Code: "OTP_NOT_FOUND", Msg: "no code was requested for this email"}
	ErrMismatch = &apperr.Error{Kind: apperr.Mismatch, Msg: "the code is incorrect"}
	ErrExpired  = &apperr.Error{Kind: apperr.Expired, Msg: "the code has expired, request a new one"}
)

type Record struct {
	Purpose   Purpose   `json:"purpose"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists at most one record per (purpose, email). Get returns nil, nil
// when no record exists.
type Store interface {
	Get(ctx context.Context, purpose Purpose, email string) (*Record, error)
	Set(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, purpose Purpose, email string) error
}

type Sender interface {
	SendOTP(ctx context.Context, to, code string, purpose Purpose, validFor time.Duration) error
}

type Manager struct {
	store           Store
	sender          Sender
	deliveryTimeout time.Duration
	now             func() time.Time
	generate        func() (string, error)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.generate = gen }
}

func WithDeliveryTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.deliveryTimeout = d
		}
	}
}

func NewManager(store Store, sender Sender, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		sender:          sender,
		deliveryTimeout: DefaultDeliveryTimeout,
		now:             time.Now,
		generate:        GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates a fresh code for email, replacing any previous one, and
// emails it. A delivery failure leaves the new record in place.
func (m *Manager) Issue(ctx context.Context, purpose Purpose, email string) (*Record, error) {
	email = normalizeEmail(email)
	if !purpose.Valid() {
		return nil, apperr.E(apperr.InvalidArgument, fmt.Sprintf("unknown otp purpose %q", purpose))
	}
	if email == "" {
		return nil, apperr.E(apperr.InvalidArgument, "email is required")
	}

	code, err := m.generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	now := m.now()
	rec := &Record{
		Purpose:   purpose,
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}
	if err := m.store.Set(ctx, rec); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.deliveryTimeout)
	defer cancel()
	if err := m.sender.SendOTP(sendCtx, email, code, purpose, TTL); err != nil {
		logger.ErrorContext(ctx, "Failed to deliver otp", "error", err, "purpose", purpose)
		return nil, apperr.Wrap(apperr.DeliveryError, "could not send the code, please try again", err)
	}

	logger.InfoContext(ctx, "OTP issued", "purpose", purpose, "expires_at", rec.ExpiresAt)
	return rec, nil
}

// Verify consumes the code for email. Checks run in the order not found,
// mismatch, expired; failed attempts leave the record untouched.
func (m *Manager) Verify(ctx context.Context, purpose Purpose, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)

	rec, err := m.store.Get(ctx, purpose, email)
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if rec == nil {
		return ErrNotFound
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return ErrMismatch
	}
	if m.now().After(rec.ExpiresAt) {
		return ErrExpired
	}

	if err := m.store.Delete(ctx, purpose, email); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// GenerateCode returns a uniformly distributed six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
