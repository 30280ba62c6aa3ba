// Package handlers provides HTTP handlers for user and holdings management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/peterbitar/wealthyrabbit/internal/domain"
	"github.com/peterbitar/wealthyrabbit/internal/modules/users"
)

// Handlers contains HTTP handlers for the user and holdings API.
type Handlers struct {
	users          *users.Repository
	holdings       *users.HoldingRepository
	maxDailyPushes int
	log            zerolog.Logger
}

// New creates the handlers.
func New(userRepo *users.Repository, holdingRepo *users.HoldingRepository, maxDailyPushes int, log zerolog.Logger) *Handlers {
	return &Handlers{
		users:          userRepo,
		holdings:       holdingRepo,
		maxDailyPushes: maxDailyPushes,
		log:            log.With().Str("handlers", "users").Logger(),
	}
}

// RegisterRoutes mounts the user and holdings routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/api/users/register", h.HandleRegister)
	r.Put("/api/users/{userId}/push-token", h.HandlePushToken)
	r.Post("/api/users/settings", h.HandleSettings)
	r.Put("/api/users/{userId}/settings", h.HandleSettingsByPath)
	r.Get("/api/users/{userId}", h.HandleGetUser)

	r.Get("/api/holdings/symbols/all", h.HandleAllSymbols)
	r.Get("/api/holdings/{userId}", h.HandleListHoldings)
	r.Post("/api/holdings", h.HandleUpsertHolding)
	r.Delete("/api/holdings/{userId}/{symbol}", h.HandleDeleteHolding)
}

// HandleRegister handles POST /api/users/register.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		Name      string `json:"name"`
		PushToken string `json:"pushToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	user, err := h.users.Register(req.UserID, req.Name, req.PushToken, h.maxDailyPushes)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to register user")
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandlePushToken handles PUT /api/users/:userId/push-token.
func (h *Handlers) HandlePushToken(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req struct {
		PushToken string `json:"pushToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PushToken == "" {
		writeError(w, http.StatusBadRequest, "pushToken is required")
		return
	}

	if err := h.users.UpdatePushToken(userID, req.PushToken); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

type settingsRequest struct {
	UserID        string  `json:"userId"`
	Frequency     *string `json:"notificationFrequency"`
	Sensitivity   *string `json:"notificationSensitivity"`
	WeeklySummary *bool   `json:"weeklySummary"`
	Mode          *string `json:"mode"`
}

// HandleSettings handles POST /api/users/settings.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	h.applySettings(w, req.UserID, req)
}

// HandleSettingsByPath handles PUT /api/users/:userId/settings.
func (h *Handlers) HandleSettingsByPath(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.applySettings(w, chi.URLParam(r, "userId"), req)
}

func (h *Handlers) applySettings(w http.ResponseWriter, userID string, req settingsRequest) {
	update := users.SettingsUpdate{WeeklySummary: req.WeeklySummary}

	if req.Frequency != nil {
		f := domain.Frequency(*req.Frequency)
		if !f.Valid() {
			writeError(w, http.StatusBadRequest, "invalid notificationFrequency")
			return
		}
		update.Frequency = &f
	}
	if req.Sensitivity != nil {
		s := domain.Sensitivity(*req.Sensitivity)
		if !s.Valid() {
			writeError(w, http.StatusBadRequest, "invalid notificationSensitivity")
			return
		}
		update.Sensitivity = &s
	}
	if req.Mode != nil {
		m := domain.Mode(*req.Mode)
		if !m.Valid() {
			writeError(w, http.StatusBadRequest, "invalid mode")
			return
		}
		update.Mode = &m
	}

	user, err := h.users.UpdateSettings(userID, update)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleGetUser handles GET /api/users/:userId.
func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(chi.URLParam(r, "userId"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get user")
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleListHoldings handles GET /api/holdings/:userId.
func (h *Handlers) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.holdings.ListByUser(chi.URLParam(r, "userId"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}
	if holdings == nil {
		holdings = []domain.Holding{}
	}
	writeJSON(w, http.StatusOK, holdings)
}

// HandleUpsertHolding handles POST /api/holdings.
func (h *Handlers) HandleUpsertHolding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string   `json:"userId"`
		Symbol     string   `json:"symbol"`
		Name       string   `json:"name"`
		Allocation *float64 `json:"allocation"`
		Note       *string  `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	holding, err := h.holdings.Upsert(domain.Holding{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Name:       req.Name,
		Allocation: req.Allocation,
		Note:       req.Note,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upsert holding")
		writeError(w, http.StatusInternalServerError, "failed to save holding")
		return
	}

	writeJSON(w, http.StatusOK, holding)
}

// HandleDeleteHolding handles DELETE /api/holdings/:userId/:symbol.
func (h *Handlers) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.holdings.Delete(chi.URLParam(r, "userId"), chi.URLParam(r, "symbol"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to delete holding")
		writeError(w, http.StatusInternalServerError, "failed to delete holding")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "holding not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleAllSymbols handles GET /api/holdings/symbols/all.
func (h *Handlers) HandleAllSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.holdings.AllSymbols()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list symbols")
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, symbols)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
