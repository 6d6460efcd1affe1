package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/geo"
	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/services/attendance/internal/domain"
)

func (s *attendanceService) ListRecords(ctx context.Context, f domain.RecordFilter) ([]domain.Record, int, error) {
	if f.Limit > s.config.Attendance.ReportLimit {
		f.Limit = s.config.Attendance.ReportLimit
	}
	records, total, err := s.attendanceRepo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	return records, total, nil
}

func (s *attendanceService) DeleteRecords(ctx context.Context, adminID string, ids []int64) (int64, error) {
	req := domain.DeleteRecordsRequest{IDs: ids}
	if err := req.Validate(); err != nil {
		return 0, err
	}

	n, err := s.attendanceRepo.Delete(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}

	event := events.AttendanceDeletedEvent{
		RecordIDs: ids,
		DeletedBy: adminID,
		DeletedAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, events.AttendanceDeleted, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish attendance deleted event", "error", err)
	}

	logger.InfoContext(ctx, "Attendance records deleted", "requested", len(ids), "deleted", n, "admin_id", adminID)
	return n, nil
}

func (s *attendanceService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *attendanceService) Overview(ctx context.Context, r domain.DateRange) (*domain.Overview, error) {
	o, err := s.attendanceRepo.Overview(ctx, r.Since(s.now()), s.today())
	if err != nil {
		return nil, fmt.Errorf("failed to build overview: %w", err)
	}
	return o, nil
}

func (s *attendanceService) UserReport(ctx context.Context, r domain.DateRange) ([]domain.UserReport, error) {
	rows, err := s.attendanceRepo.UserReport(ctx, r.Since(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to build user report: %w", err)
	}
	return rows, nil
}

func (s *attendanceService) DayReport(ctx context.Context, r domain.DateRange) ([]domain.DayReport, error) {
	rows, err := s.attendanceRepo.DayReport(ctx, r.Since(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to build daily report: %w", err)
	}
	return rows, nil
}

func (s *attendanceService) ListGrounds(_ context.Context) []geo.ReferenceLocation {
	grounds := s.grounds.All()
	sort.Slice(grounds, func(i, j int) bool { return grounds[i].Name < grounds[j].Name })
	return grounds
}

// AddGround stores a new ground and makes it available to check-ins
// immediately. Other instances pick it up from the ground added event.
// Existing grounds, including the configured one, cannot be redefined.
func (s *attendanceService) AddGround(ctx context.Context, req *domain.GroundRequest) (*geo.ReferenceLocation, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	loc := req.Location()
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	if s.grounds.Has(loc.Name) {
		return nil, geo.ErrGroundExists
	}
	saved, err := s.groundRepo.Create(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to save ground: %w", err)
	}
	if err := s.grounds.Add(*saved); err != nil {
		return nil, err
	}

	event := events.GroundAddedEvent{
		Name:         saved.Name,
		Latitude:     saved.Center.Latitude,
		Longitude:    saved.Center.Longitude,
		RadiusMeters: saved.RadiusMeters,
	}
	if err := s.publisher.Publish(ctx, events.GroundAdded, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish ground added event", "error", err)
	}

	logger.InfoContext(ctx, "Ground saved", "ground", saved.Name, "radius_m", saved.RadiusMeters)
	return saved, nil
}
