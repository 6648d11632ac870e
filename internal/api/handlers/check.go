package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"umbrella/internal/core"
	"umbrella/internal/types"
)

// CheckHandler triggers an on-demand decision pass.
type CheckHandler struct {
	trigger CheckTrigger
	status  StatusReader
	logger  *slog.Logger
}

// NewCheckHandler creates a CheckHandler. A nil logger defaults to
// slog.Default().
func NewCheckHandler(trigger CheckTrigger, status StatusReader, logger *slog.Logger) *CheckHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckHandler{trigger: trigger, status: status, logger: logger}
}

// RegisterRoutes mounts the check endpoint.
func (h *CheckHandler) RegisterRoutes(r chi.Router) {
	r.Post("/check", h.HandleCheck)
}

// checkResponse summarizes the verdict of a manual pass alongside the
// resulting status snapshot.
type checkResponse struct {
	Verdict string           `json:"verdict"`
	Status  types.StatusInfo `json:"status"`
}

// HandleCheck handles POST /v1/check: a synchronous forced-refresh decision
// pass. Decision failures are reflected in the returned status rather than
// an error response; only infrastructure failures surface as errors.
func (h *CheckHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	decision, err := h.trigger.Run(r.Context(), true)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	status, err := h.status.Get(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := checkResponse{Verdict: verdictName(decision), Status: status}

	var meta *core.ResponseMeta
	switch d := decision.(type) {
	case types.RainExpected:
		if d.Stale {
			meta = &core.ResponseMeta{Warning: "verdict computed from cached forecast data"}
		}
	case types.NoRain:
		if d.Stale {
			meta = &core.ResponseMeta{Warning: "verdict computed from cached forecast data"}
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp, Meta: meta})
}

func verdictName(decision types.WeatherDecision) string {
	switch decision.(type) {
	case types.RainExpected:
		return "rain_expected"
	case types.NoRain:
		return "no_rain"
	case types.DecisionError:
		return "error"
	default:
		return "disabled"
	}
}
