package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/logger"
)

// Revoker tracks sessions that were ended before their token expired.
type Revoker interface {
	Revoke(ctx context.Context, s *Session) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type RedisRevoker struct {
	client *redis.Client
	prefix string
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, prefix: "session:revoked:"}
}

func (r *RedisRevoker) Revoke(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+s.ID, s.Subject, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.client.Get(ctx, r.prefix+sessionID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return true, nil
}

// MemoryRevoker is used when Redis is not configured. Revocations are lost on
// restart. Instances share them by subscribing RevocationHandler to
// events.SessionRevoked.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	if s.ExpiresAt.After(now) {
		m.revoked[s.ID] = s.ExpiresAt
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.revoked[sessionID]
	return ok && m.now().Before(exp), nil
}

// RevocationHandler applies session revoked events to r.
func RevocationHandler(r Revoker) func(*events.Message) {
	return func(msg *events.Message) {
		var e events.SessionRevokedEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			logger.Error("Malformed session revoked event", "error", err)
			return
		}
		if e.SessionID == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := r.Revoke(ctx, &Session{ID: e.SessionID, Kind: e.Kind, ExpiresAt: e.ExpiresAt}); err != nil {
			logger.Error("Failed to apply session revocation", "session_id", e.SessionID, "error", err)
		}
	}
}
