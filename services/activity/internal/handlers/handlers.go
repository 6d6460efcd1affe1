package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rrucricket/attendance/pkg/auth"
	mw "github.com/rrucricket/attendance/pkg/middleware"
	"github.com/rrucricket/attendance/pkg/response"
	"github.com/rrucricket/attendance/services/activity/internal/feed"
)

const defaultLimit = 50

type Handlers struct {
	feed    *feed.Feed
	revoker auth.Revoker
	secret  string
}

func New(f *feed.Feed, revoker auth.Revoker, secret string) *Handlers {
	return &Handlers{feed: f, revoker: revoker, secret: secret}
}

func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireSession(h.secret, h.revoker, auth.KindAdmin))
	r.Get("/recent", h.Recent)
	return r
}

// Recent lists the newest events. ?subject= filters by subject prefix.
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries := h.feed.Recent(limit, r.URL.Query().Get("subject"))
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}
