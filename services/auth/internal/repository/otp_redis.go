package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

// Keys outlive the code so that a late attempt still reports expiry.
const redisOTPGrace = 24 * time.Hour

type RedisOTPStore struct {
	client *redis.Client
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func redisOTPKey(purpose otp.Purpose, email string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, email)
}

func (s *RedisOTPStore) Get(ctx context.Context, purpose otp.Purpose, email string) (*otp.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	raw, err := s.client.Get(ctx, redisOTPKey(purpose, email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec otp.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode otp record: %w", err)
	}
	return &rec, nil
}

func (s *RedisOTPStore) Set(ctx context.Context, rec *otp.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode otp record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ttl := time.Until(rec.ExpiresAt) + redisOTPGrace
	return s.client.Set(ctx, redisOTPKey(rec.Purpose, rec.Email), raw, ttl).Err()
}

func (s *RedisOTPStore) Delete(ctx context.Context, purpose otp.Purpose, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return s.client.Del(ctx, redisOTPKey(purpose, email)).Err()
}
