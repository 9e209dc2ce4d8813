// Package main is the entry point for the MeteoAlert API server.
//
// It loads the configuration, wires the database, weather provider, push
// transport and auth service, mounts the handlers on the core chassis and
// serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"meteoalert/internal/api/handlers"
	"meteoalert/internal/app"
	"meteoalert/internal/auth"
	"meteoalert/internal/config"
	"meteoalert/internal/core"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// SSM is only consulted outside local runs, for *_SSM_PARAM pointers.
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stdout)
	logger.Info("meteoalert API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}
	defer comps.Close()

	authService := auth.NewService(
		comps.Users,
		auth.BcryptHasher{Cost: cfg.Auth.BcryptCost},
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, comps.Clock),
		logger,
	)

	srv, err := buildServer(cfg, logger, serverDeps{
		Auth:           authService,
		Users:          comps.Users,
		Weather:        comps.Weather,
		Keys:           comps.Notifier,
		Metrics:        comps.Metrics,
		MetricsHandler: comps.MetricsHandler,
		Probes:         comps.HealthProbes(),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return runHTTPServer(ctx, srv, cfg, logger)
}

type authService interface {
	handlers.AuthService
	core.Authenticator
}

type userStore interface {
	handlers.ProfileRepo
	handlers.SubscriptionRepo
}

type weatherService interface {
	handlers.WeatherService
	handlers.PreferencesService
}

// serverDeps are the collaborators the HTTP surface needs.
type serverDeps struct {
	Auth           authService
	Users          userStore
	Weather        weatherService
	Keys           handlers.KeyProvider
	Metrics        core.MetricsCollector
	MetricsHandler http.Handler
	Probes         []core.HealthProbe
}

// buildServer mounts every handler on a new chassis.
func buildServer(cfg *config.Config, logger *slog.Logger, deps serverDeps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.Authenticator = deps.Auth
	srv.Metrics = deps.Metrics
	srv.MetricsHandler = deps.MetricsHandler
	srv.HealthProbes = deps.Probes

	authHandler := handlers.NewAuthHandler(deps.Auth, logger)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Weather, srv.Validator, logger)
	weatherHandler := handlers.NewWeatherHandler(deps.Weather)
	pushHandler := handlers.NewPushHandler(deps.Users, deps.Keys, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/auth", authHandler.RegisterRoutes)
		r.Route("/users", userHandler.RegisterRoutes)
		r.Route("/weather", weatherHandler.RegisterRoutes)
		r.Route("/push", pushHandler.RegisterRoutes)
	})

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until ctx is cancelled, then drains in-flight requests.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
