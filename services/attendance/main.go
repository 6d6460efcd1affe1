package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/database"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/geo"
	"github.com/rrucricket/attendance/pkg/logger"
	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/services/attendance/internal/handlers"
	"github.com/rrucricket/attendance/services/attendance/internal/repository"
	"github.com/rrucricket/attendance/services/attendance/internal/service"
)

const servicePort = "8082"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format))

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Without Redis, logouts reach this service as session revoked events
	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Redis.URL != "" {
		if rdb, err := database.ConnectRedis(ctx, cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, tracking logouts from events", "error", err)
		} else {
			defer rdb.Close()
			revoker = auth.NewRedisRevoker(rdb)
		}
	}

	// Initialize repositories
	attendanceRepo := repository.NewAttendanceRepository(pool)
	groundRepo := repository.NewGroundRepository(pool)
	memberRepo := repository.NewMemberRepository(pool)
	idempotencyRepo := repository.NewIdempotencyRepository(pool)

	grounds, err := loadGrounds(ctx, cfg.Geofence, groundRepo)
	if err != nil {
		logger.Error("Failed to load grounds", "error", err)
		os.Exit(1)
	}

	// Connect to event bus
	var publisher events.Publisher = events.NopPublisher{}
	if bus, err := events.NewNATSEventBus(cfg.NATS.URL, "attendance"); err != nil {
		logger.Warn("NATS unavailable, grounds added elsewhere need a restart", "error", err)
	} else {
		publisher = bus
		if err := bus.Subscribe(events.GroundAdded, syncGround(grounds)); err != nil {
			logger.Error("Failed to subscribe to ground updates", "error", err)
		}
		if err := bus.Subscribe(events.SessionRevoked, auth.RevocationHandler(revoker)); err != nil {
			logger.Error("Failed to subscribe to session revocations", "error", err)
		}
	}
	defer publisher.Close()

	// Initialize services
	attendanceService := service.NewAttendanceService(
		attendanceRepo, groundRepo, memberRepo, idempotencyRepo,
		grounds, publisher, cfg,
	)

	h := handlers.New(attendanceService, revoker, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("attendance"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Mount("/v1/attendance", h.Routes())

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go runJanitor(janitorCtx, idempotencyRepo)

	// Start server
	srv := &http.Server{
		Addr:         ":" + servicePort,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down attendance service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Attendance service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting attendance service", "port", servicePort, "grounds", grounds.Size())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Attendance service error", "error", err)
		os.Exit(1)
	}
}

// loadGrounds indexes the configured ground and every stored one.
// A stored ground with the configured name is skipped.
func loadGrounds(ctx context.Context, primary config.GeofenceConfig, repo repository.GroundRepository) (*geo.GroundIndex, error) {
	idx, err := geo.NewGroundIndex(geo.ReferenceLocation{
		Name:         primary.GroundName,
		Center:       geo.Coordinate{Latitude: primary.Latitude, Longitude: primary.Longitude},
		RadiusMeters: primary.RadiusMeters,
	})
	if err != nil {
		return nil, err
	}

	stored, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range stored {
		if err := idx.Add(g); err != nil {
			logger.Warn("Skipping stored ground", "ground", g.Name, "error", err)
		}
	}
	return idx, nil
}

func syncGround(idx *geo.GroundIndex) func(*events.Message) {
	return func(msg *events.Message) {
		var e events.GroundAddedEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			logger.Error("Malformed ground event", "error", err)
			return
		}
		ref := geo.ReferenceLocation{
			Name:         e.Name,
			Center:       geo.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude},
			RadiusMeters: e.RadiusMeters,
		}
		// The publishing instance has already indexed its own ground.
		if err := idx.Add(ref); err != nil && !errors.Is(err, geo.ErrGroundExists) {
			logger.Error("Rejected ground event", "ground", e.Name, "error", err)
		}
	}
}

// runJanitor prunes expired idempotency keys every hour.
func runJanitor(ctx context.Context, keys repository.IdempotencyRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := keys.CleanupExpired(ctx); err != nil {
				logger.Error("Failed to prune idempotency keys", "error", err)
			} else if n > 0 {
				logger.Info("Pruned idempotency keys", "count", n)
			}
		}
	}
}
