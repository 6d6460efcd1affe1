// Package geo classifies a claimed position against a reference ground
// using great-circle (Haversine) distance.
package geo

import (
	"fmt"
	"math"

	"github.com/rrucricket/attendance/pkg/apperr"
)

// EarthRadiusMeters is the mean Earth radius used for all distances.
const EarthRadiusMeters = 6371000.0

type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return apperr.E(apperr.InvalidArgument, fmt.Sprintf("latitude %v out of range [-90, 90]", c.Latitude))
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return apperr.E(apperr.InvalidArgument, fmt.Sprintf("longitude %v out of range [-180, 180]", c.Longitude))
	}
	return nil
}

// ReferenceLocation is a named ground with an acceptance radius.
type ReferenceLocation struct {
	ID           int64      `json:"id,omitempty"`
	Name         string     `json:"name"`
	Center       Coordinate `json:"center"`
	RadiusMeters float64    `json:"radius_meters"`
}

func (r ReferenceLocation) Validate() error {
	if err := r.Center.Validate(); err != nil {
		return err
	}
	if math.IsNaN(r.RadiusMeters) || r.RadiusMeters <= 0 {
		return apperr.E(apperr.InvalidArgument, "radius must be greater than zero")
	}
	return nil
}

type Result struct {
	DistanceMeters float64 `json:"distance_meters"`
	WithinRadius   bool    `json:"within_radius"`
}

// Evaluate measures claimed against ref. The radius boundary is inclusive.
func Evaluate(claimed Coordinate, ref ReferenceLocation) (Result, error) {
	if err := claimed.Validate(); err != nil {
		return Result{}, err
	}
	if err := ref.Validate(); err != nil {
		return Result{}, err
	}

	d := Distance(claimed, ref.Center)
	return Result{DistanceMeters: d, WithinRadius: d <= ref.RadiusMeters}, nil
}

// Distance returns the Haversine distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(dLambda/2)*math.Sin(dLambda/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// FormatDistance renders whole meters below one kilometer and one decimal of
// kilometers above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int64(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
