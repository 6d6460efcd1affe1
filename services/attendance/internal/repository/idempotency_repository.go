package repository

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const idempotencyTTL = 24 * time.Hour

type IdempotencyRepository interface {
	// CheckOrCreate returns the record already stored for (userID, key), or 0.
	// When recordID > 0 and nothing is stored yet, it is stored.
	CheckOrCreate(ctx context.Context, userID int64, key string, recordID int64) (existingRecordID int64, err error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

// keys are scoped per user so one player cannot replay another's check-in
func idempotencyKeyHash(userID int64, key string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", userID, key)))
	return fmt.Sprintf("%x", sum)
}

func (r *idempotencyRepository) CheckOrCreate(ctx context.Context, userID int64, key string, recordID int64) (int64, error) {
	keyHash := idempotencyKeyHash(userID, key)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var existing int64
	const checkQuery = `SELECT record_id FROM attendance_idempotency WHERE key_hash = $1 AND expires_at > now()`
	err := r.pool.QueryRow(ctx, checkQuery, keyHash).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	if recordID > 0 {
		const insertQuery = `
			INSERT INTO attendance_idempotency (key_hash, user_id, record_id, expires_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (key_hash) DO UPDATE
			SET record_id = EXCLUDED.record_id, expires_at = EXCLUDED.expires_at
			WHERE attendance_idempotency.expires_at <= now()`

		if _, err := r.pool.Exec(ctx, insertQuery, keyHash, userID, recordID, time.Now().Add(idempotencyTTL)); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

func (r *idempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM attendance_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
