package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/database"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/logger"
	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/services/auth/internal/handlers"
	"github.com/rrucricket/attendance/services/auth/internal/mailer"
	"github.com/rrucricket/attendance/services/auth/internal/otp"
	"github.com/rrucricket/attendance/services/auth/internal/repository"
	"github.com/rrucricket/attendance/services/auth/internal/service"
)

const servicePort = "8081"

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

	// Redis is optional unless it backs the OTP store
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			if cfg.OTP.Store == "redis" {
				logger.Error("Failed to connect to Redis", "error", err)
				os.Exit(1)
			}
			logger.Warn("Redis unavailable, using in-process session revocation", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// Connect to event bus
	var (
		publisher events.Publisher = events.NopPublisher{}
		bus       *events.NATSEventBus
	)
	if bus, err = events.NewNATSEventBus(cfg.NATS.URL, "auth"); err != nil {
		logger.Warn("NATS unavailable, events will not be published", "error", err)
	} else {
		publisher = bus
	}
	defer publisher.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)
	otpRepo := repository.NewOTPRepository(pool)

	var otpStore otp.Store
	switch cfg.OTP.Store {
	case "redis":
		if rdb == nil {
			logger.Error("OTP_STORE=redis requires REDIS_URL")
			os.Exit(1)
		}
		otpStore = repository.NewRedisOTPStore(rdb)
	case "memory":
		otpStore = otp.NewMemoryStore()
	default:
		otpStore = otpRepo
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if rdb != nil {
		revoker = auth.NewRedisRevoker(rdb)
	}
	if bus != nil {
		if err := bus.Subscribe(events.SessionRevoked, auth.RevocationHandler(revoker)); err != nil {
			logger.Error("Failed to subscribe to session revocations", "error", err)
		}
	}

	// Initialize services
	otpManager := otp.NewManager(otpStore, mailer.New(cfg.Email), otp.WithDeliveryTimeout(cfg.OTP.DeliveryTimeout))
	authService := service.NewAuthService(userRepo, adminRepo, otpManager, revoker, publisher, cfg)

	h := handlers.New(authService, rateLimitRepo, revoker, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("auth"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Mount("/v1/auth", h.Routes())

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go runJanitor(janitorCtx, otpRepo, rateLimitRepo)

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

		logger.Info("Shutting down auth service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Auth service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", servicePort, "otp_store", cfg.OTP.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}

// runJanitor prunes long-expired OTP rows and rate limit windows every hour.
func runJanitor(ctx context.Context, otps repository.OTPRepository, limits repository.RateLimitRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := otps.DeleteExpired(ctx, 24*time.Hour); err != nil {
				logger.Error("Failed to prune expired codes", "error", err)
			} else if n > 0 {
				logger.Info("Pruned expired codes", "count", n)
			}
			if _, err := limits.CleanupExpired(ctx); err != nil {
				logger.Error("Failed to prune rate limit windows", "error", err)
			}
		}
	}
}
