package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rrucricket/attendance/pkg/apperr"
	"github.com/rrucricket/attendance/pkg/auth"
	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/logger"
	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/pkg/response"
	"github.com/rrucricket/attendance/services/auth/internal/service"
)

type Handlers struct {
	authService service.AuthService
	limiter     mw.Limiter
	revoker     auth.Revoker
	config      *config.Config
}

func New(
	authService service.AuthService,
	limiter mw.Limiter,
	revoker auth.Revoker,
	config *config.Config,
) *Handlers {
	return &Handlers{
		authService: authService,
		limiter:     limiter,
		revoker:     revoker,
		config:      config,
	}
}

// Routes mounts every auth endpoint on a new router.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	secret := h.config.Auth.JWTSecret
	otpLimit := mw.RateLimit(h.limiter, "otp", h.config.OTP.RequestsPerMin, time.Minute)
	loginLimit := mw.RateLimit(h.limiter, "login", 10, time.Minute)

	r.Post("/register", h.Register)
	r.Post("/verify-email", h.VerifyEmail)
	r.With(otpLimit).Post("/resend-verification", h.ResendVerification)
	r.With(loginLimit).Post("/login", h.Login)
	r.With(loginLimit).Post("/admin/login", h.AdminLogin)

	r.Route("/password", func(r chi.Router) {
		r.Use(otpLimit)
		r.Post("/otp", h.RequestPasswordResetOtp)
		r.Post("/otp/verify", h.VerifyPasswordResetOtp)
		r.Post("/reset", h.ApplyNewPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(secret, h.revoker))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Patch("/me", h.UpdateProfile)
	})

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(mw.RequireSession(secret, h.revoker, auth.KindAdmin))
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.Patch("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
	})

	return r
}

// Helper functions
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		logger.ErrorContext(r.Context(), "Request failed", "error", err)
	}
	response.FromError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "Invalid user ID")
		return 0, false
	}
	return id, true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
