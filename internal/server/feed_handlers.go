package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/pipeline"
)

// FeedHandlers serves the personalized feed endpoints.
type FeedHandlers struct {
	feeds *pipeline.FeedService
	log   zerolog.Logger
}

// NewFeedHandlers creates the feed handlers.
func NewFeedHandlers(feeds *pipeline.FeedService, log zerolog.Logger) *FeedHandlers {
	return &FeedHandlers{
		feeds: feeds,
		log:   log.With().Str("handlers", "feed").Logger(),
	}
}

// HandleGetFeed handles GET /api/feed/:userId. Serves the cached feed when
// fresh, otherwise runs the pipeline.
func (h *FeedHandlers) HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	cached, err := h.feeds.Cached(userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read feed cache")
		writeError(w, http.StatusInternalServerError, "failed to read feed")
		return
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	h.refresh(w, r, userID)
}

// HandleRefresh handles POST /api/feed/:userId/refresh, always running the
// pipeline.
func (h *FeedHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.refresh(w, r, chi.URLParam(r, "userId"))
}

func (h *FeedHandlers) refresh(w http.ResponseWriter, r *http.Request, userID string) {
	result, err := h.feeds.Refresh(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Feed refresh failed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"themes":      result.Themes,
		"diagnostics": result.Diagnostics,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
