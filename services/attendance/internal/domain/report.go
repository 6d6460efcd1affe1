package domain

import (
	"strings"
	"time"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/geo"
	"github.com/rrucricket/attendance/pkg/validation"
)

// DateRange is a report window ending now.
type DateRange struct {
	Label string
	Days  int
}

var dateRanges = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

// ParseDateRange accepts 7d, 30d, 90d or 1y. An empty value means 7d.
func ParseDateRange(s string) (DateRange, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		s = "7d"
	}
	days, ok := dateRanges[s]
	if !ok {
		return DateRange{}, apperr.E(apperr.InvalidArgument, "range must be one of 7d, 30d, 90d, 1y")
	}
	return DateRange{Label: s, Days: days}, nil
}

// Since returns the start of the window, aligned to midnight UTC.
func (d DateRange) Since(now time.Time) time.Time {
	start := now.UTC().AddDate(0, 0, -(d.Days - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordFilter narrows the admin record listing. Zero values match everything.
type RecordFilter struct {
	Status *Status
	UserID *int64
	From   *time.Time
	To     *time.Time
	// Search matches the user's name or email.
	Search string
	Limit  int
	Offset int
}

type Overview struct {
	TotalUsers   int     `json:"total_users"`
	ActiveUsers  int     `json:"active_users"`
	TotalRecords int     `json:"total_records"`
	TodayRecords int     `json:"today_records"`
	Accepted     int     `json:"accepted"`
	Rejected     int     `json:"rejected"`
	SuccessRate  float64 `json:"success_rate"`
}

type UserReport struct {
	UserID         int64   `json:"user_id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Total          int     `json:"total"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	AttendanceRate float64 `json:"attendance_rate"`
}

type DayReport struct {
	Date        string  `json:"date"`
	Total       int     `json:"total"`
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	SuccessRate float64 `json:"success_rate"`
}

// Member is the subset of a user the attendance service reads.
type Member struct {
	ID         int64
	Name       string
	Email      string
	Role       string
	IsVerified bool
}

func (m *Member) IsActive() bool {
	return m.Role != "inactive"
}

type DeleteRecordsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

func (r *DeleteRecordsRequest) Validate() error { return validation.Struct(r) }

type GroundRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Latitude     float64 `json:"latitude" validate:"latitude"`
	Longitude    float64 `json:"longitude" validate:"longitude"`
	RadiusMeters float64 `json:"radius_meters" validate:"gt=0,lte=5000"`
}

func (r *GroundRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *GroundRequest) Validate() error { return validation.Struct(r) }

func (r *GroundRequest) Location() geo.ReferenceLocation {
	return geo.ReferenceLocation{
		Name:         r.Name,
		Center:       geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
		RadiusMeters: r.RadiusMeters,
	}
}
