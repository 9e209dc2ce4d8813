// Package core is the API chassis: a chi router wrapped in the cross-cutting
// middleware (recovery, timeouts, request IDs, logging, CORS, compression,
// metrics, authentication) that every handler runs behind.
package core

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meteoalert/internal/config"
)

// MetricsCollector records API request telemetry. endpoint is the matched
// route pattern, not the raw path.
type MetricsCollector interface {
	RecordRequest(method, endpoint string, status int, duration time.Duration)
}

// Server holds the chassis dependencies. Fields are exported so the entry
// point and tests can inject collaborators before MountRoutes.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// HealthProbes are run by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are populated
	// by main so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer creates a Server with an empty router.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the routed handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi mux for tests and route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}
