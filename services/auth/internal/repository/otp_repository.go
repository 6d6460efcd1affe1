package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrucricket/attendance/services/auth/internal/otp"
)

type OTPRepository interface {
	otp.Store
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type otpRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

func (r *otpRepository) Get(ctx context.Context, purpose otp.Purpose, email string) (*otp.Record, error) {
	const q = `
		SELECT purpose, email, code, created_at, expires_at
		FROM otp_codes
		WHERE purpose = $1 AND email = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rec otp.Record
	err := r.pool.QueryRow(ctx, q, string(purpose), email).Scan(
		&rec.Purpose, &rec.Email, &rec.Code, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *otpRepository) Set(ctx context.Context, rec *otp.Record) error {
	const q = `
		INSERT INTO otp_codes (purpose, email, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (purpose, email) DO UPDATE SET
			code = EXCLUDED.code,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, string(rec.Purpose), rec.Email, rec.Code, rec.CreatedAt, rec.ExpiresAt)
	return err
}

func (r *otpRepository) Delete(ctx context.Context, purpose otp.Purpose, email string) error {
	const q = `DELETE FROM otp_codes WHERE purpose = $1 AND email = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, string(purpose), email)
	return err
}

// DeleteExpired removes records whose expiry is older than the given age.
func (r *otpRepository) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	const q = `DELETE FROM otp_codes WHERE expires_at < $1`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
