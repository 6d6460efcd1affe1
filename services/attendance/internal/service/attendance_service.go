package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/geo"
	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/services/attendance/internal/domain"
	"github.com/rrucricket/attendance/services/attendance/internal/repository"
)

var errNoGrounds = errors.New("no grounds configured")

type AttendanceService interface {
	EvaluateAttendance(ctx context.Context, claim domain.Claim, idempotencyKey string) (*domain.CheckInResult, error)
	ListMyAttendance(ctx context.Context, userID int64, limit int) ([]domain.Record, error)
	MyStats(ctx context.Context, userID int64) (domain.Stats, error)

	ListRecords(ctx context.Context, f domain.RecordFilter) ([]domain.Record, int, error)
	DeleteRecords(ctx context.Context, adminID string, ids []int64) (int64, error)
	Overview(ctx context.Context, r domain.DateRange) (*domain.Overview, error)
	UserReport(ctx context.Context, r domain.DateRange) ([]domain.UserReport, error)
	DayReport(ctx context.Context, r domain.DateRange) ([]domain.DayReport, error)

	ListGrounds(ctx context.Context) []geo.ReferenceLocation
	AddGround(ctx context.Context, req *domain.GroundRequest) (*geo.ReferenceLocation, error)
}

type attendanceService struct {
	attendanceRepo  repository.AttendanceRepository
	groundRepo      repository.GroundRepository
	memberRepo      repository.MemberRepository
	idempotencyRepo repository.IdempotencyRepository
	grounds         *geo.GroundIndex
	publisher       events.Publisher
	config          *config.Config
	now             func() time.Time
}

type Option func(*attendanceService)

func WithClock(now func() time.Time) Option {
	return func(s *attendanceService) { s.now = now }
}

func NewAttendanceService(
	attendanceRepo repository.AttendanceRepository,
	groundRepo repository.GroundRepository,
	memberRepo repository.MemberRepository,
	idempotencyRepo repository.IdempotencyRepository,
	grounds *geo.GroundIndex,
	publisher events.Publisher,
	config *config.Config,
	opts ...Option,
) AttendanceService {
	s := &attendanceService{
		attendanceRepo:  attendanceRepo,
		groundRepo:      groundRepo,
		memberRepo:      memberRepo,
		idempotencyRepo: idempotencyRepo,
		grounds:         grounds,
		publisher:       publisher,
		config:          config,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateAttendance classifies the claim against the nearest ground and
// stores the outcome. Both accepted and rejected attempts are recorded.
func (s *attendanceService) EvaluateAttendance(ctx context.Context, claim domain.Claim, idempotencyKey string) (*domain.CheckInResult, error) {
	if err := claim.Position.Validate(); err != nil {
		return nil, err
	}
	if claim.AccuracyMeters != nil && (math.IsNaN(*claim.AccuracyMeters) || *claim.AccuracyMeters < 0) {
		return nil, apperr.E(apperr.InvalidArgument, "accuracy must be a non-negative number")
	}

	member, err := s.memberRepo.FindByID(ctx, claim.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if member == nil {
		return nil, apperr.E(apperr.Unauthorized, "user no longer exists")
	}
	if !member.IsActive() {
		return nil, apperr.E(apperr.Forbidden, "This account has been deactivated.")
	}

	// Check idempotency if key provided
	if idempotencyKey != "" {
		existingID, err := s.idempotencyRepo.CheckOrCreate(ctx, claim.UserID, idempotencyKey, 0)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if existingID > 0 {
			rec, err := s.attendanceRepo.GetByID(ctx, existingID)
			if err != nil {
				return nil, fmt.Errorf("failed to load previous check-in: %w", err)
			}
			if rec != nil {
				ground, _ := s.groundByName(rec.Ground)
				result := newCheckInResult(rec, ground)
				result.Replayed = true
				return result, nil
			}
		}
	}

	ground, ok := s.grounds.Nearest(claim.Position)
	if !ok {
		return nil, errNoGrounds
	}

	res, err := geo.Evaluate(claim.Position, ground)
	if err != nil {
		return nil, err
	}

	status := domain.StatusRejected
	if res.WithinRadius {
		status = domain.StatusAccepted
	}

	recordedAt := claim.Timestamp
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}

	rec, err := s.attendanceRepo.Create(ctx, &domain.Record{
		UserID:         claim.UserID,
		Ground:         ground.Name,
		Latitude:       claim.Position.Latitude,
		Longitude:      claim.Position.Longitude,
		AccuracyMeters: claim.AccuracyMeters,
		DistanceMeters: res.DistanceMeters,
		Status:         status,
		RecordedAt:     recordedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	// Store idempotency record if key was provided
	if idempotencyKey != "" {
		if _, err := s.idempotencyRepo.CheckOrCreate(ctx, claim.UserID, idempotencyKey, rec.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to store idempotency record", "error", err, "record_id", rec.ID)
		}
	}

	event := events.AttendanceRecordedEvent{
		RecordID:       rec.ID,
		UserID:         rec.UserID,
		Ground:         rec.Ground,
		Status:         string(rec.Status),
		DistanceMeters: rec.DistanceMeters,
		RecordedAt:     rec.RecordedAt,
	}
	if err := s.publisher.Publish(ctx, events.AttendanceRecorded, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish attendance recorded event", "error", err, "record_id", rec.ID)
	}

	logger.InfoContext(ctx, "Attendance evaluated",
		"record_id", rec.ID,
		"ground", ground.Name,
		"status", rec.Status,
		"distance_m", math.Round(res.DistanceMeters),
	)
	return newCheckInResult(rec, ground), nil
}

func newCheckInResult(rec *domain.Record, ground geo.ReferenceLocation) *domain.CheckInResult {
	distance := geo.FormatDistance(rec.DistanceMeters)
	msg := fmt.Sprintf("Attendance marked successfully! You are %s from the ground.", distance)
	if !rec.Accepted() {
		msg = fmt.Sprintf("You are not on the ground. You are %s away from %s.", distance, rec.Ground)
		if ground.RadiusMeters > 0 {
			msg += fmt.Sprintf(" Please come within %s of the ground to mark attendance.", geo.FormatDistance(ground.RadiusMeters))
		}
	}
	return &domain.CheckInResult{Record: rec, Distance: distance, Message: msg}
}

func (s *attendanceService) groundByName(name string) (geo.ReferenceLocation, bool) {
	for _, g := range s.grounds.All() {
		if g.Name == name {
			return g, true
		}
	}
	return geo.ReferenceLocation{}, false
}

// ListMyAttendance returns the newest records first.
func (s *attendanceService) ListMyAttendance(ctx context.Context, userID int64, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = s.config.Attendance.HistoryLimit
	}
	if limit > s.config.Attendance.ReportLimit {
		limit = s.config.Attendance.ReportLimit
	}

	records, err := s.attendanceRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return records, nil
}

func (s *attendanceService) MyStats(ctx context.Context, userID int64) (domain.Stats, error) {
	stats, err := s.attendanceRepo.StatsByUser(ctx, userID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}
