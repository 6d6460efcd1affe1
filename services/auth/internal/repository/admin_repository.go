package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrucricket/attendance/services/auth/internal/domain"
)

type AdminRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Admin, error)
	// Upsert creates the admin or replaces its name, email and password hash.
	Upsert(ctx context.Context, a *domain.Admin) error
}

type adminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

func (r *adminRepository) FindByID(ctx context.Context, id string) (*domain.Admin, error) {
	const q = `SELECT id, name, email, password_hash, created_at, updated_at FROM admins WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.Admin
	err := r.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *adminRepository) Upsert(ctx context.Context, a *domain.Admin) error {
	const q = `
		INSERT INTO admins (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			updated_at = now()
		RETURNING created_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q, a.ID, a.Name, a.Email, a.PasswordHash).Scan(&a.CreatedAt, &a.UpdatedAt)
}
