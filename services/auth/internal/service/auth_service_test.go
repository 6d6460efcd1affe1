package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/services/auth/internal/domain"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

type fixture struct {
	svc       AuthService
	users     *memUserRepo
	sender    *captureSender
	revoker   *auth.MemoryRevoker
	publisher *recordingPublisher
	cfg       *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:                "service-test-secret",
			AccessTokenTTL:           time.Hour,
			AdminSessionTTL:          2 * time.Hour,
			PasswordResetTokenTTL:    10 * time.Minute,
			RequireEmailVerification: true,
		},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	admins := &memAdminRepo{admins: map[string]*domain.Admin{
		"admin": {ID: "admin", Name: "Administrator", Email: "admin@example.com", PasswordHash: string(hash)},
	}}

	f := &fixture{
		users:     newMemUserRepo(),
		sender:    newCaptureSender(),
		revoker:   auth.NewMemoryRevoker(),
		publisher: &recordingPublisher{},
		cfg:       cfg,
	}
	manager := otp.NewManager(otp.NewMemoryStore(), f.sender)
	f.svc = NewAuthService(f.users, admins, manager, f.revoker, f.publisher, cfg)
	return f
}

func (f *fixture) register(t *testing.T, email string) *RegisterResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), &domain.RegisterRequest{
		Name:     "Test Player",
		Email:    email,
		Username: "player_" + email[:3],
		Password: "secret1",
	})
	require.NoError(t, err)
	return res
}

func TestRegister_SendsVerificationCode(t *testing.T) {
	f := newFixture(t)

	res := f.register(t, "Opener@RRU.ac.in ")
	require.NotNil(t, res.Verification)
	assert.Equal(t, "opener@rru.ac.in", res.User.Email)
	assert.False(t, res.User.IsVerified)
	assert.Equal(t, res.Verification.Code, f.sender.code(otp.PurposeEmailVerification, "opener@rru.ac.in"))
	assert.Contains(t, f.publisher.published(), events.UserRegistered)
	assert.Contains(t, f.publisher.published(), events.OTPIssued)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "bowler@rru.ac.in")

	_, err := f.svc.Register(context.Background(), &domain.RegisterRequest{
		Name:     "Other",
		Email:    "BOWLER@rru.ac.in",
		Username: "someone_else",
		Password: "secret1",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, "EMAIL_EXISTS", apperr.CodeOf(err))
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), &domain.RegisterRequest{
		Name:     "Short",
		Email:    "short@rru.ac.in",
		Username: "short_pw",
		Password: "12345",
	})
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
}

func TestRegister_DeliveryFailureStillCreatesAccount(t *testing.T) {
	f := newFixture(t)
	f.sender.fail = true

	res := f.register(t, "keeper@rru.ac.in")
	assert.Nil(t, res.Verification)

	user, err := f.users.FindByEmail(context.Background(), "keeper@rru.ac.in")
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestLogin_RequiresVerification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "spinner@rru.ac.in")

	login := &domain.LoginRequest{Email: "spinner@rru.ac.in", Password: "secret1"}
	_, err := f.svc.Login(ctx, login)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", apperr.CodeOf(err))

	code := f.sender.code(otp.PurposeEmailVerification, "spinner@rru.ac.in")
	user, err := f.svc.VerifyEmail(ctx, &domain.OTPVerifyRequest{Email: "spinner@rru.ac.in", Code: code})
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	resp, err := f.svc.Login(ctx, &domain.LoginRequest{Email: "spinner@rru.ac.in", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := auth.ParseScoped(resp.AccessToken, f.cfg.Auth.JWTSecret, auth.ScopeSession)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Sub)
	assert.Equal(t, auth.KindUser, claims.Kind)
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "fielder@rru.ac.in")

	wrong := "000000"
	if res.Verification.Code == wrong {
		wrong = "111111"
	}
	_, err := f.svc.VerifyEmail(context.Background(), &domain.OTPVerifyRequest{Email: "fielder@rru.ac.in", Code: wrong})
	assert.ErrorIs(t, err, otp.ErrMismatch)
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Auth.RequireEmailVerification = false
	res := f.register(t, "umpire@rru.ac.in")

	_, err := f.svc.Login(ctx, &domain.LoginRequest{Email: "umpire@rru.ac.in", Password: "wrong-password"})
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))

	_, err = f.svc.Login(ctx, &domain.LoginRequest{Email: "nobody@rru.ac.in", Password: "secret1"})
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))

	inactive := domain.RoleInactive
	_, err = f.svc.UpdateUser(ctx, res.User.ID, &domain.UpdateUserRequest{Role: &inactive})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, &domain.LoginRequest{Email: "umpire@rru.ac.in", Password: "secret1"})
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AdminLogin(ctx, &domain.AdminLoginRequest{AdminID: "admin", Password: "nope"})
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))

	resp, err := f.svc.AdminLogin(ctx, &domain.AdminLoginRequest{AdminID: " admin ", Password: "admin123"})
	require.NoError(t, err)
	require.NotNil(t, resp.Admin)
	assert.Equal(t, int64(7200), resp.ExpiresIn)

	claims, err := auth.ParseScoped(resp.AccessToken, f.cfg.Auth.JWTSecret, auth.ScopeSession)
	require.NoError(t, err)
	sess := claims.Session()
	assert.True(t, sess.IsAdmin())

	principal, err := f.svc.Me(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, domain.PrincipalAdmin, principal.Kind)
	assert.Equal(t, "admin@example.com", principal.Email())
	assert.Contains(t, f.publisher.published(), events.AdminLoggedIn)
}

func TestLogout_RevokesSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, sess, err := auth.NewSessionToken(1, "a@rru.ac.in", domain.RoleUser, auth.KindUser, f.cfg.Auth.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, sess))

	revoked, err := f.revoker.IsRevoked(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.True(t, apperr.IsKind(f.svc.Logout(ctx, nil), apperr.Unauthorized))
}

func TestLogout_ReachesOtherInstances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, sess, err := auth.NewSessionToken(1, "a@rru.ac.in", domain.RoleUser, auth.KindUser, f.cfg.Auth.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, sess))

	payload, ok := f.publisher.last(events.SessionRevoked)
	require.True(t, ok)
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	// An attendance instance without Redis keeps its own revocations.
	elsewhere := auth.NewMemoryRevoker()
	revoked, err := elsewhere.IsRevoked(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, revoked)

	auth.RevocationHandler(elsewhere)(&events.Message{Subject: events.SessionRevoked, Data: data})

	revoked, err = elsewhere.IsRevoked(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestPasswordReset_FullFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Auth.RequireEmailVerification = false
	f.register(t, "captain@rru.ac.in")

	rec, err := f.svc.RequestPasswordResetOtp(ctx, &domain.OTPRequest{Email: "Captain@rru.ac.in"})
	require.NoError(t, err)
	require.NotNil(t, rec)

	reset, err := f.svc.VerifyPasswordResetOtp(ctx, &domain.OTPVerifyRequest{Email: "captain@rru.ac.in", Code: rec.Code})
	require.NoError(t, err)
	assert.Equal(t, int64(600), reset.ExpiresIn)

	// the code is single use
	_, err = f.svc.VerifyPasswordResetOtp(ctx, &domain.OTPVerifyRequest{Email: "captain@rru.ac.in", Code: rec.Code})
	assert.ErrorIs(t, err, otp.ErrNotFound)

	apply := func() error {
		return f.svc.ApplyNewPassword(ctx, &domain.NewPasswordRequest{
			ResetToken:  reset.ResetToken,
			Email:       "captain@rru.ac.in",
			NewPassword: "newsecret",
		})
	}
	require.NoError(t, apply())

	_, err = f.svc.Login(ctx, &domain.LoginRequest{Email: "captain@rru.ac.in", Password: "secret1"})
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
	_, err = f.svc.Login(ctx, &domain.LoginRequest{Email: "captain@rru.ac.in", Password: "newsecret"})
	assert.NoError(t, err)

	// the reset token cannot be replayed
	assert.True(t, apperr.IsKind(apply(), apperr.Unauthorized))
	assert.Contains(t, f.publisher.published(), events.PasswordReset)
	assert.Contains(t, f.publisher.published(), events.SessionRevoked)
}

func TestPasswordReset_UnknownEmailIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.RequestPasswordResetOtp(context.Background(), &domain.OTPRequest{Email: "ghost@rru.ac.in"})
	assert.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, f.sender.code(otp.PurposePasswordReset, "ghost@rru.ac.in"))
}

func TestApplyNewPassword_RejectsForeignToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.register(t, "batter@rru.ac.in")

	token, _, err := auth.NewResetToken(res.User.ID, "batter@rru.ac.in", f.cfg.Auth.JWTSecret, time.Minute)
	require.NoError(t, err)

	err = f.svc.ApplyNewPassword(ctx, &domain.NewPasswordRequest{
		ResetToken:  token,
		Email:       "someone@rru.ac.in",
		NewPassword: "newsecret",
	})
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))

	session, _, err := auth.NewSessionToken(res.User.ID, "batter@rru.ac.in", domain.RoleUser, auth.KindUser, f.cfg.Auth.JWTSecret, time.Minute)
	require.NoError(t, err)
	err = f.svc.ApplyNewPassword(ctx, &domain.NewPasswordRequest{
		ResetToken:  session,
		Email:       "batter@rru.ac.in",
		NewPassword: "newsecret",
	})
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "aaa@rru.ac.in")
	f.register(t, "bbb@rru.ac.in")

	sess := &auth.Session{Subject: a.User.ID, Kind: auth.KindUser}
	name := "  New Name "
	user, err := f.svc.UpdateProfile(ctx, sess, &domain.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.Name)

	taken := "player_bbb"
	_, err = f.svc.UpdateProfile(ctx, sess, &domain.UpdateProfileRequest{Username: &taken})
	assert.Equal(t, "USERNAME_TAKEN", apperr.CodeOf(err))

	_, err = f.svc.UpdateProfile(ctx, sess, &domain.UpdateProfileRequest{})
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.register(t, "leaver@rru.ac.in")
	admin := &auth.Session{AdminID: "admin", Kind: auth.KindAdmin}

	require.NoError(t, f.svc.DeleteUser(ctx, admin, res.User.ID))
	assert.True(t, apperr.IsKind(f.svc.DeleteUser(ctx, admin, res.User.ID), apperr.NotFound))

	_, err := f.svc.GetUser(ctx, res.User.ID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.Contains(t, f.publisher.published(), events.UserDeleted)
}
