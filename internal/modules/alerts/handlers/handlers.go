// Package handlers provides HTTP handlers for the alerts API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/modules/alerts"
)

// Handlers contains HTTP handlers for the alerts API.
type Handlers struct {
	repo   *alerts.Repository
	stream *alerts.StreamHub
	log    zerolog.Logger
}

// New creates the handlers. stream may be nil to disable the live endpoint.
func New(repo *alerts.Repository, stream *alerts.StreamHub, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo:   repo,
		stream: stream,
		log:    log.With().Str("handlers", "alerts").Logger(),
	}
}

// RegisterRoutes mounts the alert routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/api/alerts/{userId}", h.HandleRecent)
	r.Get("/api/alerts/{userId}/count/today", h.HandleCountToday)
	if h.stream != nil {
		r.Get("/api/alerts/{userId}/stream", h.HandleStream)
	}
}

// HandleRecent handles GET /api/alerts/:userId?limit=.
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.repo.RecentByUser(chi.URLParam(r, "userId"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list alerts")
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if items == nil {
		items = []alerts.AlertLog{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleCountToday handles GET /api/alerts/:userId/count/today.
func (h *Handlers) HandleCountToday(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.CountToday(chi.URLParam(r, "userId"), time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count alerts")
		writeError(w, http.StatusInternalServerError, "failed to count alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// HandleStream handles GET /api/alerts/:userId/stream (websocket upgrade).
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	h.stream.ServeWS(w, r, chi.URLParam(r, "userId"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
