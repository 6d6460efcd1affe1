package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrucricket/attendance/services/attendance/internal/domain"
)

// MemberRepository reads users owned by the auth service.
type MemberRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Member, error)
}

type memberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepository{pool: pool}
}

func (r *memberRepository) FindByID(ctx context.Context, id int64) (*domain.Member, error) {
	const q = `SELECT id, name, email, role, is_verified FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var m domain.Member
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.Name, &m.Email, &m.Role, &m.IsVerified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
