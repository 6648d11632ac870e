package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"umbrella/internal/core"
	"umbrella/internal/types"
)

// SettingsStore reads and writes the user settings.
type SettingsStore interface {
	Get(ctx context.Context) (types.UserSettings, error)
	Save(ctx context.Context, settings types.UserSettings) error
}

// CheckTrigger runs a decision pass.
type CheckTrigger interface {
	Run(ctx context.Context, forceRefresh bool) (types.WeatherDecision, error)
}

// SettingsHandler serves settings management and the preset city list.
type SettingsHandler struct {
	settings SettingsStore
	trigger  CheckTrigger
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. A nil logger defaults to
// slog.Default().
func NewSettingsHandler(settings SettingsStore, trigger CheckTrigger, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{settings: settings, trigger: trigger, logger: logger}
}

// RegisterRoutes mounts the settings endpoints.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.HandleGetSettings)
	r.Put("/settings", h.HandleUpdateSettings)
	r.Get("/cities", h.HandleListCities)
}

// HandleGetSettings handles GET /v1/settings. A fresh installation reports
// the defaults.
func (h *SettingsHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: settings})
}

// HandleUpdateSettings handles PUT /v1/settings. The body is the full
// settings document. A successful save kicks off an immediate decision pass
// in the background so the schedule reflects the new settings without
// waiting for the next re-check.
func (h *SettingsHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings types.UserSettings
	if err := core.DecodeJSON(w, r, &settings); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := settings.Validate(); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.settings.Save(r.Context(), settings); err != nil {
		core.Error(w, r, err)
		return
	}

	// Detach from the request so the pass survives the response.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.trigger.Run(ctx, false); err != nil {
			h.logger.WarnContext(ctx, "post-settings decision pass failed", "error", err)
		}
	}()

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: settings})
}

// HandleListCities handles GET /v1/cities: the preset list for manual
// location selection.
func (h *SettingsHandler) HandleListCities(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: types.PresetCities})
}
