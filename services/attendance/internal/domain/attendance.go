package domain

import (
	"math"
	"time"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/geo"
	"github.com/rrucricket/attendance/pkg/validation"
)

type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusAccepted, StatusRejected:
		return Status(s), true
	default:
		return "", false
	}
}

// LocationError is a geolocation failure reported by the client instead of a position.
type LocationError string

const (
	LocationPermissionDenied LocationError = "permission_denied"
	LocationUnavailable      LocationError = "unavailable"
	LocationTimeout          LocationError = "timeout"
)

// Err maps the client failure to the error returned to the caller.
func (e LocationError) Err() error {
	switch e {
	case LocationPermissionDenied:
		return apperr.E(apperr.PermissionDenied, "Location permission denied. Please enable location services.")
	case LocationUnavailable:
		return apperr.E(apperr.Unavailable, "Location information is unavailable.")
	case LocationTimeout:
		return apperr.E(apperr.Timeout, "Location request timed out.")
	default:
		return apperr.E(apperr.InvalidArgument, "unknown location_error")
	}
}

// Claim is a single check-in attempt, consumed once by the evaluator.
type Claim struct {
	UserID         int64
	Position       geo.Coordinate
	AccuracyMeters *float64
	Timestamp      time.Time
}

// Record is an evaluated check-in. Records are append-only.
type Record struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Ground         string    `json:"ground"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracy_meters,omitempty"`
	DistanceMeters float64   `json:"distance_meters"`
	Status         Status    `json:"status"`
	RecordedAt     time.Time `json:"recorded_at"`

	// Set on admin listings only.
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

func (r *Record) Accepted() bool {
	return r.Status == StatusAccepted
}

type CheckInRequest struct {
	Latitude       *float64      `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64      `json:"longitude" validate:"omitempty,longitude"`
	AccuracyMeters *float64      `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
	LocationError  LocationError `json:"location_error,omitempty" validate:"omitempty,oneof=permission_denied unavailable timeout"`
}

func (r *CheckInRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.LocationError != "" {
		return r.LocationError.Err()
	}
	if r.Latitude == nil || r.Longitude == nil {
		return apperr.E(apperr.InvalidArgument, "latitude and longitude are required")
	}
	if math.IsNaN(*r.Latitude) || math.IsNaN(*r.Longitude) {
		return apperr.E(apperr.InvalidArgument, "latitude and longitude must be numbers")
	}
	return nil
}

// Claim converts a validated request into a claim for userID.
func (r *CheckInRequest) Claim(userID int64, now time.Time) Claim {
	return Claim{
		UserID:         userID,
		Position:       geo.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude},
		AccuracyMeters: r.AccuracyMeters,
		Timestamp:      now,
	}
}

// CheckInResult is returned to the player after a check-in.
type CheckInResult struct {
	Record   *Record `json:"record"`
	Distance string  `json:"distance"`
	Message  string  `json:"message"`
	// Replayed is true when an Idempotency-Key matched an earlier check-in.
	Replayed bool `json:"replayed,omitempty"`
}

type Stats struct {
	Total       int     `json:"total"`
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	SuccessRate float64 `json:"success_rate"`
}

// Rate returns part/total as a percentage rounded to one decimal, 0 when total is 0.
func Rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func NewStats(accepted, rejected int) Stats {
	total := accepted + rejected
	return Stats{
		Total:       total,
		Accepted:    accepted,
		Rejected:    rejected,
		SuccessRate: Rate(accepted, total),
	}
}
