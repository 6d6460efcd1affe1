package handlers

import (
	"net/http"
	"strings"

	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/pkg/response"
	"github.com/rrucricket/attendance/services/attendance/internal/domain"
)

// CheckIn evaluates the caller's position against the nearest ground.
func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	sess := mw.SessionFrom(r.Context())
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	result, err := h.attendanceService.EvaluateAttendance(r.Context(), req.Claim(sess.Subject, h.now()), idempotencyKey)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	response.WriteJSON(w, status, result)
}

func (h *Handlers) ListMyAttendance(w http.ResponseWriter, r *http.Request) {
	limit, _ := parsePagination(r, h.config.Attendance.HistoryLimit)

	records, err := h.attendanceService.ListMyAttendance(r.Context(), mw.SessionFrom(r.Context()).Subject, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (h *Handlers) MyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.attendanceService.MyStats(r.Context(), mw.SessionFrom(r.Context()).Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handlers) ListGrounds(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"grounds": h.attendanceService.ListGrounds(r.Context()),
	})
}

// Admin handlers

func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, 50)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	records, total, err := h.attendanceService.ListRecords(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

func (h *Handlers) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteRecordsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	deleted, err := h.attendanceService.DeleteRecords(r.Context(), mw.SessionFrom(r.Context()).AdminID, req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"deleted": deleted,
	})
}

func (h *Handlers) Overview(w http.ResponseWriter, r *http.Request) {
	dr, ok := parseRange(w, r)
	if !ok {
		return
	}

	overview, err := h.attendanceService.Overview(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"range":    dr.Label,
		"overview": overview,
	})
}

func (h *Handlers) UserReport(w http.ResponseWriter, r *http.Request) {
	dr, ok := parseRange(w, r)
	if !ok {
		return
	}

	rows, err := h.attendanceService.UserReport(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"range": dr.Label,
		"users": rows,
	})
}

func (h *Handlers) DayReport(w http.ResponseWriter, r *http.Request) {
	dr, ok := parseRange(w, r)
	if !ok {
		return
	}

	rows, err := h.attendanceService.DayReport(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"range": dr.Label,
		"days":  rows,
	})
}

func (h *Handlers) AddGround(w http.ResponseWriter, r *http.Request) {
	var req domain.GroundRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ground, err := h.attendanceService.AddGround(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, ground)
}
