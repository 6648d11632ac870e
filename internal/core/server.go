// Package core provides the HTTP chassis for the umbrella daemon's local
// API: a chi router with the cross-cutting middleware chain (panic recovery,
// request IDs, logging, security headers), response envelopes, and the
// health endpoint. Domain handlers mount on top of it.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"umbrella/internal/config"
)

// Server bundles the router with its cross-cutting dependencies.
type Server struct {
	Config *config.Config
	Logger *slog.Logger
	Pinger Pinger

	router *chi.Mux
}

// NewServer creates the chassis with the global middleware chain applied.
// Routes are mounted afterwards via MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger, pinger Pinger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Config: cfg,
		Logger: logger,
		Pinger: pinger,
		router: chi.NewRouter(),
	}

	// Order matters: the recoverer is outermost so a panic anywhere in the
	// chain still produces a JSON 500.
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(logger))

	return s, nil
}

// MountRoutes registers the health endpoint and hands the /v1 group to the
// caller for domain routes.
func (s *Server) MountRoutes(mountV1 func(r chi.Router)) {
	s.router.Get("/healthz", s.HandleHealth)
	s.router.Route("/v1", mountV1)
}

// Handler returns the assembled http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address from configuration.
func (s *Server) Addr() string {
	return ":" + s.Config.Server.Port
}
