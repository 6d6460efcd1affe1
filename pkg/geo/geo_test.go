package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrucricket/attendance/pkg/apperr"
)

var rruGround = ReferenceLocation{
	Name:         "RRU Cricket Ground",
	Center:       Coordinate{Latitude: 23.153246, Longitude: 72.886686},
	RadiusMeters: 100,
}

func TestEvaluate_AtReferencePoint(t *testing.T) {
	res, err := Evaluate(rruGround.Center, rruGround)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.DistanceMeters)
	assert.True(t, res.WithinRadius)
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Coordinate{
		{{0, 0}, {10, 10}},
		{{23.153246, 72.886686}, {23.154246, 72.887686}},
		{{-33.8688, 151.2093}, {51.5074, -0.1278}},
	}
	for _, p := range pairs {
		assert.Equal(t, Distance(p[0], p[1]), Distance(p[1], p[0]))
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	claims := []Coordinate{
		rruGround.Center,
		{Latitude: 23.1536, Longitude: 72.8870},
		{Latitude: 23.160000, Longitude: 72.890000},
		{Latitude: -33.8688, Longitude: 151.2093},
	}
	for _, c := range claims {
		first, err := Evaluate(c, rruGround)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Evaluate(c, rruGround)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}

func TestDistance_OneThousandthDegreeLatitude(t *testing.T) {
	north := Coordinate{Latitude: rruGround.Center.Latitude + 0.001, Longitude: rruGround.Center.Longitude}

	d := Distance(rruGround.Center, north)
	assert.InDelta(t, 111.0, d, 1.0)

	res, err := Evaluate(north, rruGround)
	require.NoError(t, err)
	assert.False(t, res.WithinRadius)
}

func TestEvaluate_BoundaryIsInclusive(t *testing.T) {
	claim := Coordinate{Latitude: 23.1536, Longitude: 72.8870}
	d := Distance(claim, rruGround.Center)

	ref := rruGround
	ref.RadiusMeters = d
	res, err := Evaluate(claim, ref)
	require.NoError(t, err)
	assert.True(t, res.WithinRadius)

	ref.RadiusMeters = math.Nextafter(d, 0)
	res, err = Evaluate(claim, ref)
	require.NoError(t, err)
	assert.False(t, res.WithinRadius)
}

func TestEvaluate_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		claim Coordinate
		ref   ReferenceLocation
	}{
		{"latitude too high", Coordinate{90.5, 0}, rruGround},
		{"longitude too low", Coordinate{0, -180.1}, rruGround},
		{"nan latitude", Coordinate{math.NaN(), 0}, rruGround},
		{"zero radius", rruGround.Center, ReferenceLocation{Center: rruGround.Center}},
		{"negative radius", rruGround.Center, ReferenceLocation{Center: rruGround.Center, RadiusMeters: -5}},
		{"bad reference", rruGround.Center, ReferenceLocation{Center: Coordinate{91, 0}, RadiusMeters: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.claim, tt.ref)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
		})
	}
}

func TestEvaluate_BoundaryCoordinatesAccepted(t *testing.T) {
	ref := ReferenceLocation{Name: "pole", Center: Coordinate{90, 180}, RadiusMeters: 1}
	res, err := Evaluate(Coordinate{-90, -180}, ref)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi*EarthRadiusMeters, res.DistanceMeters, 1)
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "0m", FormatDistance(0))
	assert.Equal(t, "112m", FormatDistance(111.6))
	assert.Equal(t, "1000m", FormatDistance(999.6))
	assert.Equal(t, "1.0km", FormatDistance(1000))
	assert.Equal(t, "12.3km", FormatDistance(12345))
}
