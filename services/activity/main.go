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

	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/database"
	"github.com/rrucricket/attendance/pkg/events"
	"github.com/rrucricket/attendance/pkg/logger"
	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/services/activity/internal/feed"
	"github.com/rrucricket/attendance/services/activity/internal/handlers"
)

const (
	servicePort  = "8083"
	feedCapacity = 500
)

// Subjects are grouped by the service that publishes them.
var subjects = []string{"auth.>", "attendance.>"}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format))

	ctx := context.Background()

	bus, err := events.NewNATSEventBus(cfg.NATS.URL, "activity")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	f := feed.New(feedCapacity)
	for _, subject := range subjects {
		if err := bus.Subscribe(subject, record(f)); err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Redis.URL != "" {
		if rdb, err := database.ConnectRedis(ctx, cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, tracking logouts from events", "error", err)
		} else {
			defer rdb.Close()
			revoker = auth.NewRedisRevoker(rdb)
		}
	}
	if err := bus.Subscribe(events.SessionRevoked, auth.RevocationHandler(revoker)); err != nil {
		logger.Error("Failed to subscribe to session revocations", "error", err)
		os.Exit(1)
	}

	h := handlers.New(f, revoker, cfg.Auth.JWTSecret)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("activity"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Mount("/v1/activity", h.Routes())

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

		logger.Info("Shutting down activity service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Activity service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting activity service", "port", servicePort, "subjects", subjects)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Activity service error", "error", err)
		os.Exit(1)
	}
}

func record(f *feed.Feed) func(*events.Message) {
	return func(msg *events.Message) {
		f.Append(msg)
		logger.Debug("Event received", "subject", msg.Subject, "id", msg.ID)
	}
}
