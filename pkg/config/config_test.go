package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "RRU Cricket Ground", cfg.Geofence.GroundName)
	assert.InDelta(t, 23.153246, cfg.Geofence.Latitude, 1e-9)
	assert.InDelta(t, 72.886686, cfg.Geofence.Longitude, 1e-9)
	assert.Equal(t, 100.0, cfg.Geofence.RadiusMeters)
	assert.Equal(t, 10*time.Second, cfg.OTP.DeliveryTimeout)
	assert.Equal(t, "postgres", cfg.OTP.Store)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GROUND_RADIUS_METERS", "250.5")
	t.Setenv("OTP_STORE", "redis")
	t.Setenv("OTP_DELIVERY_TIMEOUT", "3s")
	t.Setenv("REQUIRE_EMAIL_VERIFICATION", "false")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := Load()

	assert.Equal(t, 250.5, cfg.Geofence.RadiusMeters)
	assert.Equal(t, "redis", cfg.OTP.Store)
	assert.Equal(t, 3*time.Second, cfg.OTP.DeliveryTimeout)
	assert.False(t, cfg.Auth.RequireEmailVerification)
	assert.Equal(t, 10, cfg.Database.MaxConns)
}
