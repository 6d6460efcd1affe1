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
	"github.com/rrucricket/attendance/services/attendance/internal/domain"
	"github.com/rrucricket/attendance/services/attendance/internal/service"
)

const dateLayout = "2006-01-02"

type Handlers struct {
	attendanceService service.AttendanceService
	revoker           auth.Revoker
	config            *config.Config
	now               func() time.Time
}

func New(attendanceService service.AttendanceService, revoker auth.Revoker, config *config.Config) *Handlers {
	return &Handlers{
		attendanceService: attendanceService,
		revoker:           revoker,
		config:            config,
		now:               time.Now,
	}
}

// Routes mounts every attendance endpoint on a new router.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	secret := h.config.Auth.JWTSecret

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(secret, h.revoker, auth.KindUser))
		r.Post("/check-in", h.CheckIn)
		r.Get("/me/records", h.ListMyAttendance)
		r.Get("/me/records.csv", h.ExportMyAttendanceCSV)
		r.Get("/me/stats", h.MyStats)
	})

	r.With(mw.RequireSession(secret, h.revoker)).Get("/grounds", h.ListGrounds)

	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.RequireSession(secret, h.revoker, auth.KindAdmin))
		r.Get("/records", h.ListRecords)
		r.Get("/records.csv", h.ExportRecordsCSV)
		r.Delete("/records", h.DeleteRecords)
		r.Get("/overview", h.Overview)
		r.Get("/reports/users", h.UserReport)
		r.Get("/reports/users.csv", h.ExportUserReportCSV)
		r.Get("/reports/days", h.DayReport)
		r.Get("/reports/days.csv", h.ExportDayReportCSV)
		r.Post("/grounds", h.AddGround)
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

func parsePagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
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

// parseFilter reads the admin record filters. to is inclusive of the whole day.
func parseFilter(r *http.Request, defaultLimit int) (domain.RecordFilter, error) {
	q := r.URL.Query()
	var f domain.RecordFilter
	f.Limit, f.Offset = parsePagination(r, defaultLimit)
	f.Search = q.Get("search")

	if v := q.Get("status"); v != "" {
		status, ok := domain.ParseStatus(v)
		if !ok {
			return f, apperr.E(apperr.InvalidArgument, "status must be accepted or rejected")
		}
		f.Status = &status
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, apperr.E(apperr.InvalidArgument, "invalid user_id")
		}
		f.UserID = &id
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, apperr.E(apperr.InvalidArgument, "from must be YYYY-MM-DD")
		}
		f.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, apperr.E(apperr.InvalidArgument, "to must be YYYY-MM-DD")
		}
		to = to.AddDate(0, 0, 1)
		f.To = &to
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, apperr.E(apperr.InvalidArgument, "from must not be after to")
	}
	return f, nil
}

func parseRange(w http.ResponseWriter, r *http.Request) (domain.DateRange, bool) {
	dr, err := domain.ParseDateRange(r.URL.Query().Get("range"))
	if err != nil {
		response.FromError(w, err)
		return dr, false
	}
	return dr, true
}
