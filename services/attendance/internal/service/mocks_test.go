package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rrucricket/attendance/pkg/geo"
	"github.com/rrucricket/attendance/services/attendance/internal/domain"
)

type memAttendanceRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]domain.Record
}

func newMemAttendanceRepo() *memAttendanceRepo {
	return &memAttendanceRepo{records: make(map[int64]domain.Record)}
}

func (r *memAttendanceRepo) Create(_ context.Context, rec *domain.Record) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *rec
	cp.ID = r.nextID
	r.records[cp.ID] = cp
	return &cp, nil
}

func (r *memAttendanceRepo) GetByID(_ context.Context, id int64) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memAttendanceRepo) sorted() []domain.Record {
	out := make([]domain.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out
}

func (r *memAttendanceRepo) ListByUser(_ context.Context, userID int64, limit int) ([]domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Record
	for _, rec := range r.sorted() {
		if rec.UserID == userID && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memAttendanceRepo) StatsByUser(_ context.Context, userID int64) (domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var accepted, rejected int
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if rec.Accepted() {
			accepted++
		} else {
			rejected++
		}
	}
	return domain.NewStats(accepted, rejected), nil
}

func (r *memAttendanceRepo) List(_ context.Context, f domain.RecordFilter) ([]domain.Record, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Record
	for _, rec := range r.sorted() {
		if f.Status != nil && rec.Status != *f.Status {
			continue
		}
		if f.UserID != nil && rec.UserID != *f.UserID {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (r *memAttendanceRepo) Delete(_ context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.records[id]; ok {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func (r *memAttendanceRepo) Overview(_ context.Context, since, today time.Time) (*domain.Overview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var o domain.Overview
	for _, rec := range r.records {
		if rec.RecordedAt.Before(since) {
			continue
		}
		o.TotalRecords++
		if !rec.RecordedAt.Before(today) {
			o.TodayRecords++
		}
		if rec.Accepted() {
			o.Accepted++
		} else {
			o.Rejected++
		}
	}
	o.SuccessRate = domain.Rate(o.Accepted, o.TotalRecords)
	return &o, nil
}

func (r *memAttendanceRepo) UserReport(context.Context, time.Time) ([]domain.UserReport, error) {
	return nil, nil
}

func (r *memAttendanceRepo) DayReport(context.Context, time.Time) ([]domain.DayReport, error) {
	return nil, nil
}

type memGroundRepo struct {
	nextID  int64
	grounds map[string]geo.ReferenceLocation
}

func (r *memGroundRepo) List(context.Context) ([]geo.ReferenceLocation, error) {
	out := make([]geo.ReferenceLocation, 0, len(r.grounds))
	for _, g := range r.grounds {
		out = append(out, g)
	}
	return out, nil
}

func (r *memGroundRepo) Create(_ context.Context, g geo.ReferenceLocation) (*geo.ReferenceLocation, error) {
	if _, ok := r.grounds[g.Name]; ok {
		return nil, geo.ErrGroundExists
	}
	r.nextID++
	g.ID = r.nextID
	r.grounds[g.Name] = g
	return &g, nil
}

type memMemberRepo struct {
	members map[int64]*domain.Member
}

func (r *memMemberRepo) FindByID(_ context.Context, id int64) (*domain.Member, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, nil
	}
	return m, nil
}

type memIdempotencyRepo struct {
	keys map[string]int64
}

func (r *memIdempotencyRepo) CheckOrCreate(_ context.Context, userID int64, key string, recordID int64) (int64, error) {
	k := fmt.Sprintf("%d:%s", userID, key)
	if existing, ok := r.keys[k]; ok {
		return existing, nil
	}
	if recordID > 0 {
		r.keys[k] = recordID
	}
	return 0, nil
}

func (r *memIdempotencyRepo) CleanupExpired(context.Context) (int64, error) { return 0, nil }

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
