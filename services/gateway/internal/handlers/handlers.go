package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rrucricket/attendance/pkg/logger"
	"github.com/rrucricket/attendance/pkg/response"
	"github.com/rrucricket/attendance/services/gateway/internal/proxy"
)

type Handlers struct {
	authProxy       *proxy.ServiceProxy
	attendanceProxy *proxy.ServiceProxy
	activityProxy   *proxy.ServiceProxy
}

func New(authProxy, attendanceProxy, activityProxy *proxy.ServiceProxy) *Handlers {
	return &Handlers{
		authProxy:       authProxy,
		attendanceProxy: attendanceProxy,
		activityProxy:   activityProxy,
	}
}

// Routes mounts the public API. Paths are forwarded unchanged.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.HandleFunc("/v1/auth/*", h.Auth)
	r.HandleFunc("/v1/attendance/*", h.Attendance)
	r.HandleFunc("/v1/activity/*", h.Activity)
	return r
}

// Auth forwards /v1/auth/* unchanged.
func (h *Handlers) Auth(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.authProxy)
}

// Attendance forwards /v1/attendance/* unchanged.
func (h *Handlers) Attendance(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.attendanceProxy)
}

// Activity forwards /v1/activity/* unchanged.
func (h *Handlers) Activity(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, h.activityProxy)
}

func (h *Handlers) forward(w http.ResponseWriter, r *http.Request, p *proxy.ServiceProxy) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	resp, err := p.ProxyRequest(r.Context(), r.Method, r.URL.RequestURI(), r.Body, r.Header)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "error", err, "service", p.Name(), "path", r.URL.Path)
		response.WriteError(w, http.StatusBadGateway, "Service unavailable", "SERVICE_UNAVAILABLE")
		return
	}
	defer resp.Body.Close()

	if err := proxy.CopyResponse(w, resp); err != nil {
		logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
	}
}
