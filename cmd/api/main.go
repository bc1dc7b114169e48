// Package main is the entry point for the farm advisory API server.
//
// It loads the configuration, wires the weather source, advisory engine,
// farm registry and telemetry sinks, mounts the HTTP routes on the core
// chassis and serves until SIGINT or SIGTERM. With REFRESH_IN_PROCESS set it
// also runs the advisory refresher against the in-memory farm registry.
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

	"farmadvisory/internal/api/handlers"
	"farmadvisory/internal/app"
	"farmadvisory/internal/config"
	"farmadvisory/internal/core"
	"farmadvisory/internal/telemetry"
)

// metricsFlushInterval is how often buffered CloudWatch datums are sent.
const metricsFlushInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	secrets, err := config.NewSecretProviderFromEnv()
	if err != nil {
		return fmt.Errorf("selecting secret provider: %w", err)
	}
	cfg, err := config.LoadConfig(secrets)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel, os.Stdout)
	logger.Info("farm advisory API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}

	srv, err := buildServer(deps)
	if err != nil {
		return err
	}

	if cw, ok := deps.Metrics.(*telemetry.CloudWatchMetrics); ok {
		go cw.Run(ctx, metricsFlushInterval)
	}
	if cfg.Refresh.InProcess {
		refresher := deps.Refresher()
		go func() {
			if err := refresher.Run(ctx, cfg.Refresh.Interval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("refresher stopped", "error", err)
			}
		}()
		logger.Info("in-process refresher started", "interval", cfg.Refresh.Interval.String())
	}

	return runHTTPServer(ctx, srv, cfg, logger)
}

// buildServer creates the core server and mounts every handler.
func buildServer(deps *app.Deps) (*core.Server, error) {
	srv, err := core.NewServer(deps.Config, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = deps.Metrics
	srv.HealthProbes = deps.Probes

	advisoryHandler := handlers.NewAdvisoryHandler(
		deps.Engine,
		deps.Weather,
		deps.Region,
		deps.Metrics,
		deps.Clock,
		deps.Logger,
	)
	forecastHandler := handlers.NewForecastHandler(deps.Weather, deps.Logger)
	seasonHandler := handlers.NewSeasonHandler(deps.Clock)
	farmHandler := handlers.NewFarmHandler(deps.Registry, advisoryHandler, deps.Logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/advisories", advisoryHandler.RegisterRoutes)
		r.Route("/forecasts", forecastHandler.RegisterRoutes)
		r.Route("/seasons", seasonHandler.RegisterRoutes)
		r.Route("/farms", farmHandler.RegisterRoutes)
	})

	if err := srv.MountRoutes(); err != nil {
		return nil, fmt.Errorf("mounting routes: %w", err)
	}
	return srv, nil
}

// runHTTPServer serves until ctx is cancelled, then shuts down gracefully.
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
