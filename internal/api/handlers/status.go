// Package handlers contains the HTTP handler implementations for the
// umbrella daemon's local API: status and schedule inspection, settings
// management, and manual check triggering. Handlers depend on locally
// defined interfaces so tests can inject fakes without touching the real
// repositories or pipeline.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"umbrella/internal/core"
	"umbrella/internal/types"
)

// StatusReader serves the persisted status snapshot.
type StatusReader interface {
	Get(ctx context.Context) (types.StatusInfo, error)
}

// ScheduleReader serves the persisted schedule record.
type ScheduleReader interface {
	Get(ctx context.Context) (types.ScheduleInfo, error)
}

// StatusHandler serves the read-only inspection endpoints. The timezone is
// used to render schedule diagnostics in local wall-clock terms.
type StatusHandler struct {
	status   StatusReader
	schedule ScheduleReader
	tz       *time.Location
	logger   *slog.Logger
}

// NewStatusHandler creates a StatusHandler. A nil logger defaults to
// slog.Default().
func NewStatusHandler(status StatusReader, schedule ScheduleReader, tz *time.Location, logger *slog.Logger) *StatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusHandler{status: status, schedule: schedule, tz: tz, logger: logger}
}

// RegisterRoutes mounts the inspection endpoints.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.HandleGetStatus)
	r.Get("/schedule", h.HandleGetSchedule)
}

// statusResponse is the status snapshot plus the forecast age rendered at
// read time.
type statusResponse struct {
	types.StatusInfo
	ForecastAge string `json:"forecast_age,omitempty"`
}

// HandleGetStatus handles GET /v1/status.
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	info, err := h.status.Get(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	resp := statusResponse{StatusInfo: info}
	if info.ForecastFetchedAt != nil {
		resp.ForecastAge = types.ForecastAge(*info.ForecastFetchedAt, time.Now())
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// scheduleResponse is the schedule record plus its readable diagnostic
// summary.
type scheduleResponse struct {
	types.ScheduleInfo
	Diagnostic string `json:"diagnostic"`
}

// HandleGetSchedule handles GET /v1/schedule. Responds 404 when no
// notification is scheduled.
func (h *StatusHandler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	info, err := h.schedule.Get(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: scheduleResponse{
		ScheduleInfo: info,
		Diagnostic:   info.DiagnosticString(h.tz),
	}})
}
