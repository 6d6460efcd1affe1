package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/services/auth/internal/domain"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
	"github.com/rrucricket/attendance/services/auth/internal/repository"
)

var (
	errInvalidCredentials = apperr.E(apperr.Unauthorized, "invalid email or password")
	errEmailExists        = apperr.Coded(apperr.Conflict, "EMAIL_EXISTS", "This email is already registered. Try logging in or resetting your password.")
	errUsernameTaken      = apperr.Coded(apperr.Conflict, "USERNAME_TAKEN", "This username is already taken.")
	errNotVerified        = apperr.Coded(apperr.Forbidden, "EMAIL_NOT_VERIFIED", "Please verify your email before logging in.")
	errInactive           = apperr.Coded(apperr.Forbidden, "ACCOUNT_INACTIVE", "This account has been deactivated.")
	errUserNotFound       = apperr.E(apperr.NotFound, "user not found")
)

// OTPManager is the subset of *otp.Manager used by the service.
type OTPManager interface {
	Issue(ctx context.Context, purpose otp.Purpose, email string) (*otp.Record, error)
	Verify(ctx context.Context, purpose otp.Purpose, email, code string) error
}

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*RegisterResult, error)
	VerifyEmail(ctx context.Context, req *domain.OTPVerifyRequest) (*domain.User, error)
	ResendVerification(ctx context.Context, req *domain.OTPRequest) (*otp.Record, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	AdminLogin(ctx context.Context, req *domain.AdminLoginRequest) (*domain.LoginResponse, error)
	Logout(ctx context.Context, sess *auth.Session) error
	Me(ctx context.Context, sess *auth.Session) (*domain.Principal, error)
	UpdateProfile(ctx context.Context, sess *auth.Session, req *domain.UpdateProfileRequest) (*domain.User, error)

	RequestPasswordResetOtp(ctx context.Context, req *domain.OTPRequest) (*otp.Record, error)
	VerifyPasswordResetOtp(ctx context.Context, req *domain.OTPVerifyRequest) (*domain.ResetTokenResponse, error)
	ApplyNewPassword(ctx context.Context, req *domain.NewPasswordRequest) error

	ListUsers(ctx context.Context, q domain.ListUsersQuery) ([]domain.User, int, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	UpdateUser(ctx context.Context, id int64, req *domain.UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, sess *auth.Session, id int64) error
}

// RegisterResult carries the issued verification code so dev mode can echo it.
// Verification is nil when the code could not be delivered.
type RegisterResult struct {
	User         *domain.User
	Verification *otp.Record
}

type authService struct {
	userRepo  repository.UserRepository
	adminRepo repository.AdminRepository
	otp       OTPManager
	revoker   auth.Revoker
	publisher events.Publisher
	config    *config.Config
}

func NewAuthService(
	userRepo repository.UserRepository,
	adminRepo repository.AdminRepository,
	otpManager OTPManager,
	revoker auth.Revoker,
	publisher events.Publisher,
	config *config.Config,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		adminRepo: adminRepo,
		otp:       otpManager,
		revoker:   revoker,
		publisher: publisher,
		config:    config,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*RegisterResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, errEmailExists
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req, passwordHash)
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return nil, errEmailExists
	case errors.Is(err, repository.ErrUsernameTaken):
		return nil, errUsernameTaken
	case err != nil:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		Username:     user.Username,
		RegisteredAt: user.CreatedAt,
	})

	result := &RegisterResult{User: user}
	rec, err := s.otp.Issue(ctx, otp.PurposeEmailVerification, user.Email)
	if err != nil {
		// the account exists; the user can ask for another code
		logger.WarnContext(ctx, "Verification code not sent after registration", "error", err, "user_id", user.ID)
		return result, nil
	}
	result.Verification = rec
	s.publishIssued(ctx, rec)

	logger.InfoContext(ctx, "User registered", "user_id", user.ID)
	return result, nil
}

func (s *authService) VerifyEmail(ctx context.Context, req *domain.OTPVerifyRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, errUserNotFound
	}
	if user.IsVerified {
		return user, nil
	}

	if err := s.otp.Verify(ctx, otp.PurposeEmailVerification, req.Email, req.Code); err != nil {
		return nil, err
	}

	if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}
	user.IsVerified = true

	s.publish(ctx, events.UserVerified, events.UserVerifiedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		VerifiedAt: time.Now(),
	})
	return user, nil
}

func (s *authService) ResendVerification(ctx context.Context, req *domain.OTPRequest) (*otp.Record, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, errUserNotFound
	}
	if user.IsVerified {
		return nil, apperr.Coded(apperr.Conflict, "ALREADY_VERIFIED", "This email is already verified.")
	}

	rec, err := s.otp.Issue(ctx, otp.PurposeEmailVerification, user.Email)
	if err != nil {
		return nil, err
	}
	s.publishIssued(ctx, rec)
	return rec, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, errInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, errInvalidCredentials
	}

	if !user.IsActive() {
		return nil, errInactive
	}
	if s.config.Auth.RequireEmailVerification && !user.IsVerified {
		return nil, errNotVerified
	}

	token, _, err := auth.NewSessionToken(
		user.ID,
		user.Email,
		user.Role,
		auth.KindUser,
		s.config.Auth.JWTSecret,
		s.config.Auth.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	logger.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return &domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.Auth.AccessTokenTTL.Seconds()),
		User:        user.ToUserInfo(),
	}, nil
}

func (s *authService) AdminLogin(ctx context.Context, req *domain.AdminLoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	admin, err := s.adminRepo.FindByID(ctx, req.AdminID)
	if err != nil {
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
	if admin == nil {
		return nil, apperr.E(apperr.Unauthorized, "invalid admin id or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.E(apperr.Unauthorized, "invalid admin id or password")
	}

	token, sess, err := auth.NewAdminSessionToken(admin.ID, admin.Email, s.config.Auth.JWTSecret, s.config.Auth.AdminSessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin session: %w", err)
	}

	s.publish(ctx, events.AdminLoggedIn, events.AdminLoginEvent{
		AdminID:   admin.ID,
		SessionID: sess.ID,
		LoginAt:   time.Now(),
	})
	logger.InfoContext(ctx, "Admin logged in", "admin_id", admin.ID)

	return &domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.Auth.AdminSessionTTL.Seconds()),
		Admin:       admin,
	}, nil
}

func (s *authService) Logout(ctx context.Context, sess *auth.Session) error {
	if sess == nil {
		return apperr.E(apperr.Unauthorized, "no active session")
	}
	if err := s.revoker.Revoke(ctx, sess); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.publishRevoked(ctx, sess)
	logger.InfoContext(ctx, "Session ended", "session_id", sess.ID, "kind", sess.Kind)
	return nil
}

func (s *authService) Me(ctx context.Context, sess *auth.Session) (*domain.Principal, error) {
	if sess.IsAdmin() {
		admin, err := s.adminRepo.FindByID(ctx, sess.AdminID)
		if err != nil {
			return nil, fmt.Errorf("failed to find admin: %w", err)
		}
		if admin == nil {
			return nil, apperr.E(apperr.Unauthorized, "admin no longer exists")
		}
		return domain.AdminPrincipal(admin)
	}

	user, err := s.userRepo.FindByID(ctx, sess.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, apperr.E(apperr.Unauthorized, "user no longer exists")
	}
	return domain.UserPrincipal(user)
}

func (s *authService) UpdateProfile(ctx context.Context, sess *auth.Session, req *domain.UpdateProfileRequest) (*domain.User, error) {
	if sess.IsAdmin() {
		return nil, apperr.E(apperr.Forbidden, "admin profiles are managed with attendctl")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdateProfile(ctx, sess.Subject, req.Name, req.Username)
	switch {
	case errors.Is(err, repository.ErrUsernameTaken):
		return nil, errUsernameTaken
	case err != nil:
		return nil, fmt.Errorf("failed to update profile: %w", err)
	case user == nil:
		return nil, errUserNotFound
	}
	return user, nil
}

func (s *authService) ListUsers(ctx context.Context, q domain.ListUsersQuery) ([]domain.User, int, error) {
	users, total, err := s.userRepo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (s *authService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, errUserNotFound
	}
	return user, nil
}

func (s *authService) UpdateUser(ctx context.Context, id int64, req *domain.UpdateUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	user, err := s.userRepo.UpdateByAdmin(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if user == nil {
		return nil, errUserNotFound
	}
	return user, nil
}

func (s *authService) DeleteUser(ctx context.Context, sess *auth.Session, id int64) error {
	err := s.userRepo.Delete(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return errUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.publish(ctx, events.UserDeleted, events.UserDeletedEvent{
		UserID:    id,
		DeletedBy: sess.AdminID,
		DeletedAt: time.Now(),
	})
	logger.InfoContext(ctx, "User deleted", "user_id", id, "admin_id", sess.AdminID)
	return nil
}

func (s *authService) publish(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

func (s *authService) publishRevoked(ctx context.Context, sess *auth.Session) {
	s.publish(ctx, events.SessionRevoked, events.SessionRevokedEvent{
		SessionID: sess.ID,
		Kind:      sess.Kind,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *authService) publishIssued(ctx context.Context, rec *otp.Record) {
	s.publish(ctx, events.OTPIssued, events.OTPIssuedEvent{
		Purpose:   string(rec.Purpose),
		Email:     rec.Email,
		ExpiresAt: rec.ExpiresAt,
	})
}
