package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rrucricket/attendance/pkg/logger"
	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/services/attendance/internal/domain"
)

const csvTimeLayout = "2006-01-02 15:04:05"

func formatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

func writeCSV(w http.ResponseWriter, r *http.Request, filename string, header []string, rows [][]string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		logger.ErrorContext(r.Context(), "Failed to write csv", "error", err)
		return
	}
	if err := cw.WriteAll(rows); err != nil {
		logger.ErrorContext(r.Context(), "Failed to write csv", "error", err)
	}
}

func (h *Handlers) datedName(prefix string) string {
	return fmt.Sprintf("%s-%s.csv", prefix, h.now().UTC().Format(dateLayout))
}

func (h *Handlers) ExportMyAttendanceCSV(w http.ResponseWriter, r *http.Request) {
	records, err := h.attendanceService.ListMyAttendance(r.Context(), mw.SessionFrom(r.Context()).Subject, h.config.Attendance.ReportLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.RecordedAt.UTC().Format(csvTimeLayout),
			string(rec.Status),
			formatFloat(rec.DistanceMeters, 2),
			formatFloat(rec.Latitude, 6),
			formatFloat(rec.Longitude, 6),
		})
	}
	writeCSV(w, r, h.datedName("attendance-report"),
		[]string{"Date & Time", "Status", "Distance (m)", "Latitude", "Longitude"}, rows)
}

func (h *Handlers) ExportRecordsCSV(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, h.config.Attendance.ReportLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	records, _, err := h.attendanceService.ListRecords(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.RecordedAt.UTC().Format(csvTimeLayout),
			rec.UserName,
			rec.UserEmail,
			rec.Ground,
			string(rec.Status),
			formatFloat(rec.DistanceMeters, 2),
			formatFloat(rec.Latitude, 6),
			formatFloat(rec.Longitude, 6),
		})
	}
	writeCSV(w, r, h.datedName("attendance-records"),
		[]string{"Date & Time", "Name", "Email", "Ground", "Status", "Distance (m)", "Latitude", "Longitude"}, rows)
}

func (h *Handlers) ExportUserReportCSV(w http.ResponseWriter, r *http.Request) {
	dr, ok := parseRange(w, r)
	if !ok {
		return
	}

	report, err := h.attendanceService.UserReport(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rows := make([][]string, 0, len(report))
	for _, u := range report {
		rows = append(rows, userReportRow(u))
	}
	writeCSV(w, r, h.datedName("user-report"),
		[]string{"Name", "Email", "Total", "Accepted", "Rejected", "Attendance Rate (%)"}, rows)
}

func userReportRow(u domain.UserReport) []string {
	return []string{
		u.Name,
		u.Email,
		strconv.Itoa(u.Total),
		strconv.Itoa(u.Accepted),
		strconv.Itoa(u.Rejected),
		formatFloat(u.AttendanceRate, 1),
	}
}

func (h *Handlers) ExportDayReportCSV(w http.ResponseWriter, r *http.Request) {
	dr, ok := parseRange(w, r)
	if !ok {
		return
	}

	report, err := h.attendanceService.DayReport(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rows := make([][]string, 0, len(report))
	for _, d := range report {
		rows = append(rows, []string{
			d.Date,
			strconv.Itoa(d.Total),
			strconv.Itoa(d.Accepted),
			strconv.Itoa(d.Rejected),
			formatFloat(d.SuccessRate, 1),
		})
	}
	writeCSV(w, r, h.datedName("daily-report"),
		[]string{"Date", "Total", "Accepted", "Rejected", "Success Rate (%)"}, rows)
}
