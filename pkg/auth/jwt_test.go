package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSessionToken_RoundTrip(t *testing.T) {
	token, sess, err := NewSessionToken(42, "player@rru.ac.in", "user", KindUser, testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	claims, err := ParseScoped(token, testSecret, ScopeSession)
	require.NoError(t, err)

	got := claims.Session()
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, int64(42), got.Subject)
	assert.Equal(t, KindUser, got.Kind)
	assert.False(t, got.IsAdmin())
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt, 5*time.Second)
}

func TestResetToken_NotUsableAsSession(t *testing.T) {
	token, _, err := NewResetToken(7, "player@rru.ac.in", testSecret, 10*time.Minute)
	require.NoError(t, err)

	_, err = ParseScoped(token, testSecret, ScopeSession)
	assert.ErrorIs(t, err, ErrWrongScope)

	claims, err := ParseScoped(token, testSecret, ScopePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "player@rru.ac.in", claims.Email)
}

func TestParse_RejectsWrongSecretAndExpired(t *testing.T) {
	token, _, err := NewSessionToken(1, "a@b.c", "admin", KindAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = Parse(token, "other-secret")
	assert.Error(t, err)

	expired, _, err := NewSessionToken(1, "a@b.c", "admin", KindAdmin, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired, testSecret)
	assert.Error(t, err)
}

func TestAdminSessionToken(t *testing.T) {
	token, sess, err := NewAdminSessionToken("admin", "admin@example.com", testSecret, 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, sess.IsAdmin())

	claims, err := ParseScoped(token, testSecret, ScopeSession)
	require.NoError(t, err)
	got := claims.Session()
	assert.Equal(t, "admin", got.AdminID)
	assert.Zero(t, got.Subject)
	assert.True(t, got.IsAdmin())
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevoker()

	live := &Session{ID: "live", ExpiresAt: time.Now().Add(time.Hour)}
	expired := &Session{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)}

	require.NoError(t, r.Revoke(ctx, live))
	require.NoError(t, r.Revoke(ctx, expired))

	revoked, err := r.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = r.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}
