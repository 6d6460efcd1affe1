package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/geo"
	"github.com/rrucricket/attendance/services/attendance/internal/domain"
)

var rru = geo.ReferenceLocation{
	Name:         "RRU Cricket Ground",
	Center:       geo.Coordinate{Latitude: 23.153246, Longitude: 72.886686},
	RadiusMeters: 100,
}

type fixture struct {
	svc       AttendanceService
	records   *memAttendanceRepo
	grounds   *memGroundRepo
	members   *memMemberRepo
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	idx, err := geo.NewGroundIndex(rru)
	require.NoError(t, err)

	f := &fixture{
		records: newMemAttendanceRepo(),
		grounds: &memGroundRepo{grounds: map[string]geo.ReferenceLocation{}},
		members: &memMemberRepo{members: map[int64]*domain.Member{
			1: {ID: 1, Name: "Opener", Email: "opener@rru.ac.in", Role: "user", IsVerified: true},
			2: {ID: 2, Name: "Retired", Email: "retired@rru.ac.in", Role: "inactive", IsVerified: true},
		}},
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	cfg := &config.Config{Attendance: config.AttendanceConfig{HistoryLimit: 50, ReportLimit: 1000}}
	f.svc = NewAttendanceService(
		f.records, f.grounds, f.members, &memIdempotencyRepo{keys: map[string]int64{}},
		idx, f.publisher, cfg, WithClock(func() time.Time { return f.now }),
	)
	return f
}

func claimAt(lat, lng float64) domain.Claim {
	return domain.Claim{UserID: 1, Position: geo.Coordinate{Latitude: lat, Longitude: lng}}
}

func TestEvaluateAttendance_Accepted(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.EvaluateAttendance(context.Background(), claimAt(23.153246, 72.886686), "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, res.Record.Status)
	assert.Equal(t, "RRU Cricket Ground", res.Record.Ground)
	assert.InDelta(t, 0, res.Record.DistanceMeters, 1e-6)
	assert.Equal(t, "0m", res.Distance)
	assert.Equal(t, f.now, res.Record.RecordedAt)
	assert.Contains(t, res.Message, "successfully")
	assert.Equal(t, []string{events.AttendanceRecorded}, f.publisher.subjects)
}

func TestEvaluateAttendance_RejectedIsRecorded(t *testing.T) {
	f := newFixture(t)

	// 0.001 degrees of latitude is about 111 m
	res, err := f.svc.EvaluateAttendance(context.Background(), claimAt(23.154246, 72.886686), "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Record.Status)
	assert.InDelta(t, 111.2, res.Record.DistanceMeters, 1)
	assert.Equal(t, "111m", res.Distance)
	assert.Contains(t, res.Message, "within 100m")

	stats, err := f.svc.MyStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 1, Accepted: 0, Rejected: 1, SuccessRate: 0}, stats)
}

func TestEvaluateAttendance_InvalidClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.EvaluateAttendance(ctx, claimAt(91, 0), "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	_, err = f.svc.EvaluateAttendance(ctx, claimAt(0, -181), "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	negative := -5.0
	c := claimAt(23.153246, 72.886686)
	c.AccuracyMeters = &negative
	_, err = f.svc.EvaluateAttendance(ctx, c, "")
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	assert.Empty(t, f.records.records)
}

func TestEvaluateAttendance_UserChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := claimAt(23.153246, 72.886686)
	c.UserID = 2
	_, err := f.svc.EvaluateAttendance(ctx, c, "")
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	c.UserID = 99
	_, err = f.svc.EvaluateAttendance(ctx, c, "")
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
}

func TestEvaluateAttendance_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.EvaluateAttendance(ctx, claimAt(23.153246, 72.886686), "tap-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.svc.EvaluateAttendance(ctx, claimAt(23.153246, 72.886686), "tap-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Len(t, f.records.records, 1)
}

func TestEvaluateAttendance_UsesNearestGround(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nets, err := f.svc.AddGround(ctx, &domain.GroundRequest{
		Name:         " Motera Nets ",
		Latitude:     23.0918,
		Longitude:    72.5975,
		RadiusMeters: 150,
	})
	require.NoError(t, err)
	assert.Equal(t, "Motera Nets", nets.Name)
	assert.Contains(t, f.publisher.subjects, events.GroundAdded)

	res, err := f.svc.EvaluateAttendance(ctx, claimAt(23.0919, 72.5975), "")
	require.NoError(t, err)
	assert.Equal(t, "Motera Nets", res.Record.Ground)
	assert.Equal(t, domain.StatusAccepted, res.Record.Status)

	grounds := f.svc.ListGrounds(ctx)
	require.Len(t, grounds, 2)
	assert.Equal(t, "Motera Nets", grounds[0].Name)
}

func TestAddGround_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddGround(context.Background(), &domain.GroundRequest{Name: "Nowhere", Latitude: 10, Longitude: 10, RadiusMeters: 0})
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	_, err = f.svc.AddGround(context.Background(), &domain.GroundRequest{Name: "", Latitude: 10, Longitude: 10, RadiusMeters: 50})
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))
}

func TestAddGround_CannotRedefineExistingGround(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 0.007 degrees of latitude is about 778 m
	far := claimAt(23.160246, 72.886686)
	res, err := f.svc.EvaluateAttendance(ctx, far, "")
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, res.Record.Status)

	_, err = f.svc.AddGround(ctx, &domain.GroundRequest{
		Name:         "RRU Cricket Ground",
		Latitude:     23.153246,
		Longitude:    72.886686,
		RadiusMeters: 5000,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, "GROUND_EXISTS", apperr.CodeOf(err))
	assert.Empty(t, f.grounds.grounds)
	assert.NotContains(t, f.publisher.subjects, events.GroundAdded)

	grounds := f.svc.ListGrounds(ctx)
	require.Len(t, grounds, 1)
	assert.Equal(t, 100.0, grounds[0].RadiusMeters)

	res, err = f.svc.EvaluateAttendance(ctx, far, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, res.Record.Status)
}

func TestAddGround_DuplicateStoredGround(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := func() *domain.GroundRequest {
		return &domain.GroundRequest{Name: "Motera Nets", Latitude: 23.0918, Longitude: 72.5975, RadiusMeters: 150}
	}
	_, err := f.svc.AddGround(ctx, req())
	require.NoError(t, err)

	widened := req()
	widened.RadiusMeters = 2000
	_, err = f.svc.AddGround(ctx, widened)
	assert.ErrorIs(t, err, geo.ErrGroundExists)
	assert.Equal(t, 150.0, f.grounds.grounds["Motera Nets"].RadiusMeters)
}

func TestListMyAttendance_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.EvaluateAttendance(ctx, claimAt(23.153246, 72.886686), "")
		require.NoError(t, err)
		f.now = f.now.Add(time.Hour)
	}

	records, err := f.svc.ListMyAttendance(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].RecordedAt.After(records[1].RecordedAt))
}

func TestDeleteRecordsAndOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accepted, err := f.svc.EvaluateAttendance(ctx, claimAt(23.153246, 72.886686), "")
	require.NoError(t, err)
	_, err = f.svc.EvaluateAttendance(ctx, claimAt(23.2, 72.9), "")
	require.NoError(t, err)

	week, err := domain.ParseDateRange("")
	require.NoError(t, err)
	o, err := f.svc.Overview(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, 2, o.TotalRecords)
	assert.Equal(t, 2, o.TodayRecords)
	assert.Equal(t, 50.0, o.SuccessRate)

	_, err = f.svc.DeleteRecords(ctx, "admin", nil)
	assert.True(t, apperr.IsKind(err, apperr.InvalidArgument))

	n, err := f.svc.DeleteRecords(ctx, "admin", []int64{accepted.Record.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, f.publisher.subjects, events.AttendanceDeleted)

	o, err = f.svc.Overview(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, 1, o.TotalRecords)
	assert.Equal(t, 0.0, o.SuccessRate)
}
