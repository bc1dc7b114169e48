// Package app assembles the service dependency graph from configuration.
// The API server, the refresher and the CLI tools share it so that every
// entry point talks to the same weather source, engine and sinks.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/config"
	"farmadvisory/internal/core"
	"farmadvisory/internal/external"
	"farmadvisory/internal/farms"
	"farmadvisory/internal/forecasts"
	"farmadvisory/internal/queue"
	"farmadvisory/internal/scheduler"
	"farmadvisory/internal/telemetry"
	"farmadvisory/internal/types"
)

// Deps is the wired service graph.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Clock     types.Clock
	Weather   *forecasts.Service
	Engine    *advisory.Engine
	Region    *farms.Region
	Registry  *farms.Registry
	Metrics   telemetry.Recorder
	Publisher queue.Publisher

	// Probes are the dependency checks exposed on /health.
	Probes []core.HealthProbe
}

// Options overrides parts of the graph. Tests and tools use it to inject
// fakes; production callers pass the zero value.
type Options struct {
	Clock         types.Clock
	Source        forecasts.Source
	CloudWatch    telemetry.CloudWatchClient
	SQS           queue.SQSClient
	LoadAWSConfig func(ctx context.Context, cfg config.AWSConfig) (aws.Config, error)
}

// Build wires every component described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	if opts.LoadAWSConfig == nil {
		opts.LoadAWSConfig = LoadAWSConfig
	}

	d := &Deps{Config: cfg, Logger: logger, Clock: clock}

	source := opts.Source
	if source == nil {
		source = NewWeatherSource(cfg.Weather, clock)
	}
	d.Weather = forecasts.NewService(source, cfg.Weather.HistoryDays, clock, logger)
	d.Probes = append(d.Probes, d.Weather)

	d.Engine = advisory.NewEngine(advisory.Config{
		RecentDays:   cfg.Advisory.RecentDays,
		UpcomingDays: cfg.Advisory.UpcomingDays,
	})

	region, err := farms.NewRegion(farms.RegionOptions{
		Name:            cfg.Region.Name,
		Lat:             cfg.Region.Lat,
		Lon:             cfg.Region.Lon,
		TerrainFactor:   cfg.Region.TerrainFactor,
		BoundaryGeoJSON: cfg.Region.BoundaryGeoJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("loading region: %w", err)
	}
	d.Region = region
	d.Registry = farms.NewRegistry(region, core.NewValidator(logger), clock, logger)

	needAWS := (cfg.Observability.EnableMetrics && opts.CloudWatch == nil) ||
		(cfg.AWS.AdvisoryQueueURL != "" && opts.SQS == nil)
	var awsCfg aws.Config
	if needAWS {
		awsCfg, err = opts.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
	}

	if cfg.Observability.EnableMetrics {
		cw := opts.CloudWatch
		if cw == nil {
			cw = cloudwatch.NewFromConfig(awsCfg)
		}
		d.Metrics = telemetry.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, logger, clock)
	} else {
		d.Metrics = telemetry.NewLogMetrics(logger)
	}

	if cfg.AWS.AdvisoryQueueURL != "" {
		client := opts.SQS
		if client == nil {
			client = sqs.NewFromConfig(awsCfg)
		}
		pub := queue.NewAdvisoryPublisher(client, cfg.AWS, logger)
		d.Publisher = pub
		d.Probes = append(d.Probes, pub)
	} else {
		d.Publisher = queue.NewLogPublisher(logger)
	}

	logger.Info("dependencies wired",
		"weather_source", source.Name(),
		"history_days", cfg.Weather.HistoryDays,
		"region", region.Name,
		"metrics_enabled", cfg.Observability.EnableMetrics,
		"queue_enabled", cfg.AWS.AdvisoryQueueURL != "",
	)
	return d, nil
}

// Refresher returns a Refresher over the wired graph.
func (d *Deps) Refresher() *scheduler.Refresher {
	return scheduler.NewRefresher(scheduler.RefresherConfig{
		Weather:     d.Weather,
		Engine:      d.Engine,
		Farms:       d.Registry,
		Publisher:   d.Publisher,
		Metrics:     d.Metrics,
		Clock:       d.Clock,
		Logger:      d.Logger,
		Concurrency: d.Config.Refresh.Concurrency,
	})
}

// NewWeatherSource selects the weather provider named in cfg.
func NewWeatherSource(cfg config.WeatherConfig, clock types.Clock) forecasts.Source {
	if cfg.Provider == config.ProviderSimulated {
		return forecasts.NewSimulated(clock)
	}

	client := external.NewClient(
		&http.Client{Timeout: cfg.Timeout},
		external.DefaultBreakerSettings("openweather"),
		external.DefaultRetryPolicy(),
		cfg.UserAgent,
	)
	return forecasts.NewOpenWeather(client, cfg.BaseURL, cfg.APIKey, clock)
}

// LoadAWSConfig loads the default AWS credential chain for the configured
// region. A non-empty EndpointURL points every client at LocalStack.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// NewLogger creates a JSON slog.Logger for the given level name. Unknown
// levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
