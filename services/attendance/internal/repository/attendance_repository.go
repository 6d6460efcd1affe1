package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrucricket/attendance/services/attendance/internal/domain"
)

type AttendanceRepository interface {
	Create(ctx context.Context, rec *domain.Record) (*domain.Record, error)
	GetByID(ctx context.Context, id int64) (*domain.Record, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Record, error)
	StatsByUser(ctx context.Context, userID int64) (domain.Stats, error)
	List(ctx context.Context, f domain.RecordFilter) ([]domain.Record, int, error)
	Delete(ctx context.Context, ids []int64) (int64, error)
	Overview(ctx context.Context, since, today time.Time) (*domain.Overview, error)
	UserReport(ctx context.Context, since time.Time) ([]domain.UserReport, error)
	DayReport(ctx context.Context, since time.Time) ([]domain.DayReport, error)
}

type attendanceRepository struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepository(pool *pgxpool.Pool) AttendanceRepository {
	return &attendanceRepository{pool: pool}
}

const recordCols = `r.id, r.user_id, r.ground, r.latitude, r.longitude, r.accuracy_meters,
r.distance_meters, r.status, r.recorded_at`

func scanRecord(row pgx.Row, extra ...any) (*domain.Record, error) {
	var rec domain.Record
	dest := []any{
		&rec.ID, &rec.UserID, &rec.Ground, &rec.Latitude, &rec.Longitude, &rec.AccuracyMeters,
		&rec.DistanceMeters, &rec.Status, &rec.RecordedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepository) Create(ctx context.Context, rec *domain.Record) (*domain.Record, error) {
	const q = `
		INSERT INTO attendance_records AS r
			(user_id, ground, latitude, longitude, accuracy_meters, distance_meters, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + recordCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRecord(r.pool.QueryRow(ctx, q,
		rec.UserID, rec.Ground, rec.Latitude, rec.Longitude, rec.AccuracyMeters,
		rec.DistanceMeters, rec.Status, rec.RecordedAt,
	))
}

func (r *attendanceRepository) GetByID(ctx context.Context, id int64) (*domain.Record, error) {
	const q = `SELECT ` + recordCols + ` FROM attendance_records r WHERE r.id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *attendanceRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Record, error) {
	const q = `SELECT ` + recordCols + `
		FROM attendance_records r
		WHERE r.user_id = $1
		ORDER BY r.recorded_at DESC
		LIMIT $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *attendanceRepository) StatsByUser(ctx context.Context, userID int64) (domain.Stats, error) {
	const q = `
		SELECT count(*) FILTER (WHERE status = 'accepted'),
		       count(*) FILTER (WHERE status = 'rejected')
		FROM attendance_records
		WHERE user_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var accepted, rejected int
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&accepted, &rejected); err != nil {
		return domain.Stats{}, err
	}
	return domain.NewStats(accepted, rejected), nil
}

func (r *attendanceRepository) List(ctx context.Context, f domain.RecordFilter) ([]domain.Record, int, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != nil {
		where = append(where, "r.status = "+arg(*f.Status))
	}
	if f.UserID != nil {
		where = append(where, "r.user_id = "+arg(*f.UserID))
	}
	if f.From != nil {
		where = append(where, "r.recorded_at >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "r.recorded_at < "+arg(*f.To))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + s + "%")
		where = append(where, "(u.name ILIKE "+p+" OR u.email ILIKE "+p+")")
	}

	q := `SELECT ` + recordCols + `, u.name, u.email, count(*) OVER()
		FROM attendance_records r
		JOIN users u ON u.id = r.user_id`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY r.recorded_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		records []domain.Record
		total   int
	)
	for rows.Next() {
		var name, email string
		rec, err := scanRecord(rows, &name, &email, &total)
		if err != nil {
			return nil, 0, err
		}
		rec.UserName, rec.UserEmail = name, email
		records = append(records, *rec)
	}
	return records, total, rows.Err()
}

func (r *attendanceRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	const q = `DELETE FROM attendance_records WHERE id = ANY($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *attendanceRepository) Overview(ctx context.Context, since, today time.Time) (*domain.Overview, error) {
	const q = `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM users WHERE role <> 'inactive'),
			count(*),
			count(*) FILTER (WHERE recorded_at >= $2),
			count(*) FILTER (WHERE status = 'accepted'),
			count(*) FILTER (WHERE status = 'rejected')
		FROM attendance_records
		WHERE recorded_at >= $1`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o domain.Overview
	err := r.pool.QueryRow(ctx, q, since, today).Scan(
		&o.TotalUsers, &o.ActiveUsers, &o.TotalRecords, &o.TodayRecords, &o.Accepted, &o.Rejected,
	)
	if err != nil {
		return nil, err
	}
	o.SuccessRate = domain.Rate(o.Accepted, o.TotalRecords)
	return &o, nil
}

func (r *attendanceRepository) UserReport(ctx context.Context, since time.Time) ([]domain.UserReport, error) {
	const q = `
		SELECT u.id, u.name, u.email,
		       count(r.id) FILTER (WHERE r.status = 'accepted'),
		       count(r.id) FILTER (WHERE r.status = 'rejected')
		FROM users u
		JOIN attendance_records r ON r.user_id = u.id AND r.recorded_at >= $1
		GROUP BY u.id, u.name, u.email
		ORDER BY count(r.id) DESC, u.name`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserReport
	for rows.Next() {
		var u domain.UserReport
		if err := rows.Scan(&u.UserID, &u.Name, &u.Email, &u.Accepted, &u.Rejected); err != nil {
			return nil, err
		}
		u.Total = u.Accepted + u.Rejected
		u.AttendanceRate = domain.Rate(u.Accepted, u.Total)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *attendanceRepository) DayReport(ctx context.Context, since time.Time) ([]domain.DayReport, error) {
	const q = `
		SELECT to_char(date_trunc('day', recorded_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
		       count(*) FILTER (WHERE status = 'accepted'),
		       count(*) FILTER (WHERE status = 'rejected')
		FROM attendance_records
		WHERE recorded_at >= $1
		GROUP BY day
		ORDER BY day DESC`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DayReport
	for rows.Next() {
		var d domain.DayReport
		if err := rows.Scan(&d.Date, &d.Accepted, &d.Rejected); err != nil {
			return nil, err
		}
		d.Total = d.Accepted + d.Rejected
		d.SuccessRate = domain.Rate(d.Accepted, d.Total)
		out = append(out, d)
	}
	return out, rows.Err()
}
