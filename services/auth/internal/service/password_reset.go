package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/services/auth/internal/domain"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

var errInvalidResetToken = apperr.Coded(apperr.Unauthorized, "INVALID_TOKEN", "Reset link is invalid or has expired. Please start again.")

// RequestPasswordResetOtp sends a reset code when the email belongs to an
// account. Unknown emails get the same empty acknowledgement so the endpoint
// cannot be used to enumerate accounts; the returned record is nil then.
func (s *authService) RequestPasswordResetOtp(ctx context.Context, req *domain.OTPRequest) (*otp.Record, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		logger.InfoContext(ctx, "Password reset requested for unknown email")
		return nil, nil
	}

	rec, err := s.otp.Issue(ctx, otp.PurposePasswordReset, user.Email)
	if err != nil {
		return nil, err
	}
	s.publishIssued(ctx, rec)
	return rec, nil
}

// VerifyPasswordResetOtp consumes the reset code and exchanges it for a
// short-lived token that authorizes exactly one password change.
func (s *authService) VerifyPasswordResetOtp(ctx context.Context, req *domain.OTPVerifyRequest) (*domain.ResetTokenResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.otp.Verify(ctx, otp.PurposePasswordReset, req.Email, req.Code); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, errUserNotFound
	}

	ttl := s.config.Auth.PasswordResetTokenTTL
	token, _, err := auth.NewResetToken(user.ID, user.Email, s.config.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}

	return &domain.ResetTokenResponse{
		ResetToken: token,
		ExpiresIn:  int64(ttl.Seconds()),
	}, nil
}

func (s *authService) ApplyNewPassword(ctx context.Context, req *domain.NewPasswordRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	claims, err := auth.ParseScoped(req.ResetToken, s.config.Auth.JWTSecret, auth.ScopePasswordReset)
	if err != nil {
		return errInvalidResetToken
	}
	if claims.Email != req.Email {
		return errInvalidResetToken
	}
	resetSess := claims.Session()

	revoked, err := s.revoker.IsRevoked(ctx, resetSess.ID)
	if err != nil {
		return fmt.Errorf("failed to check reset token: %w", err)
	}
	if revoked {
		return errInvalidResetToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.Sub)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.Email != req.Email {
		return errInvalidResetToken
	}

	passwordHash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.revoker.Revoke(ctx, resetSess); err != nil {
		logger.ErrorContext(ctx, "Failed to revoke used reset token", "error", err, "user_id", user.ID)
	}
	s.publishRevoked(ctx, resetSess)

	s.publish(ctx, events.PasswordReset, events.PasswordResetEvent{
		UserID:  user.ID,
		Email:   user.Email,
		ResetAt: time.Now(),
	})
	logger.InfoContext(ctx, "Password reset", "user_id", user.ID)
	return nil
}
