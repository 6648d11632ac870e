package core

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the database probe on the health endpoint.
const healthCheckTimeout = 2 * time.Second

// Pinger is the single health probe of the daemon: database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleHealth reports 200 when the database responds within the probe
// timeout, 503 otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Version: s.Config.Build.Version}

	if s.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.Pinger.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Error = "database unreachable"
			JSON(w, r, http.StatusServiceUnavailable, resp)
			return
		}
	}

	JSON(w, r, http.StatusOK, resp)
}
