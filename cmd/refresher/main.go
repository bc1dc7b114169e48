// Package main is the entrypoint for the advisory refresher.
//
// Under Lambda it is invoked by an EventBridge schedule (every 5 minutes by
// default) and refreshes the region reference point, since the Lambda has no
// farm registry of its own. Outside Lambda it runs as a ticker loop at
// REFRESH_INTERVAL until SIGINT or SIGTERM.
//
// This file handles dependency wiring and delegates the work to
// scheduler.Refresher.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"farmadvisory/internal/app"
	"farmadvisory/internal/config"
	"farmadvisory/internal/scheduler"
)

// Refresher is implemented by *scheduler.Refresher.
type Refresher interface {
	Refresh(ctx context.Context, input scheduler.RefreshInput) (*scheduler.RefreshResult, error)
}

func main() {
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	logger.Info("refresher initializing (cold start)")

	secrets, err := config.NewSecretProviderFromEnv()
	if err != nil {
		logger.Error("invalid secret provider", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfig(secrets)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to wire dependencies", "error", err)
		os.Exit(1)
	}
	refresher := deps.Refresher()

	logger.Info("refresher initialized",
		"weather_source", deps.Weather.SourceName(),
		"region", deps.Region.Name,
		"queue_enabled", cfg.AWS.AdvisoryQueueURL != "",
	)

	if isLambdaEnvironment() {
		lambda.Start(newHandler(refresher, logger))
		return
	}

	logger.Info("running refresher loop", "interval", cfg.Refresh.Interval.String())
	if err := refresher.Run(ctx, cfg.Refresh.Interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("refresher stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("refresher stopped cleanly")
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// newHandler creates the Lambda handler. EventBridge delivers an empty
// object, which refreshes everything; a manual invocation may restrict the
// pass with a RefreshInput payload.
func newHandler(r Refresher, logger *slog.Logger) func(ctx context.Context, input scheduler.RefreshInput) (*scheduler.RefreshResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, input scheduler.RefreshInput) (*scheduler.RefreshResult, error) {
		logger.InfoContext(ctx, "refresher handler invoked",
			"farm_ids", len(input.FarmIDs),
			"include_region", input.IncludeRegion,
			"limit", input.Limit,
		)
		if input.Limit < 0 {
			return nil, fmt.Errorf("limit must not be negative, got %d", input.Limit)
		}

		result, err := r.Refresh(ctx, input)
		if err != nil {
			logger.ErrorContext(ctx, "refresh failed", "error", err)
			return result, fmt.Errorf("refresher failed: %w", err)
		}
		return result, nil
	}
}
