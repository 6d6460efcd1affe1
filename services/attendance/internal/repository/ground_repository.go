package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrucricket/attendance/pkg/geo"
)

type GroundRepository interface {
	List(ctx context.Context) ([]geo.ReferenceLocation, error)
	// Create stores g. A stored ground with the same name is left untouched
	// and geo.ErrGroundExists is returned.
	Create(ctx context.Context, g geo.ReferenceLocation) (*geo.ReferenceLocation, error)
}

type groundRepository struct {
	pool *pgxpool.Pool
}

func NewGroundRepository(pool *pgxpool.Pool) GroundRepository {
	return &groundRepository{pool: pool}
}

func (r *groundRepository) List(ctx context.Context) ([]geo.ReferenceLocation, error) {
	const q = `SELECT id, name, latitude, longitude, radius_meters FROM grounds ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grounds []geo.ReferenceLocation
	for rows.Next() {
		var g geo.ReferenceLocation
		if err := rows.Scan(&g.ID, &g.Name, &g.Center.Latitude, &g.Center.Longitude, &g.RadiusMeters); err != nil {
			return nil, err
		}
		grounds = append(grounds, g)
	}
	return grounds, rows.Err()
}

func (r *groundRepository) Create(ctx context.Context, g geo.ReferenceLocation) (*geo.ReferenceLocation, error) {
	const q = `
		INSERT INTO grounds (name, latitude, longitude, radius_meters)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.pool.QueryRow(ctx, q, g.Name, g.Center.Latitude, g.Center.Longitude, g.RadiusMeters).Scan(&g.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, geo.ErrGroundExists
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
