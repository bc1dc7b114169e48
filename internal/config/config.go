// Package config defines the process configuration for the farm advisory
// service. Configuration is loaded once at startup and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret references (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"farmadvisory/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Weather provider identifiers accepted by WEATHER_PROVIDER.
const (
	ProviderOpenWeather = "openweather"
	ProviderSimulated   = "simulated"
)

// Config is the top-level configuration struct.
// Sub-components receive only the specific subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"farm-advisory"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Weather       WeatherConfig
	Region        RegionConfig
	Advisory      AdvisoryConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
	Refresh       RefreshConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080" validate:"numeric"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`
	EnableGzip         bool          `envconfig:"ENABLE_GZIP" default:"true"`
	// RateLimitPerMinute caps requests per client IP. 0 disables the limiter.
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120" validate:"min=0"`
	// TrustProxyHeaders takes the client IP from X-Real-IP / X-Forwarded-For.
	// Enable only behind a load balancer that overwrites those headers.
	TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS" default:"false"`
}

// WeatherConfig selects and configures the weather data source.
type WeatherConfig struct {
	Provider  string        `envconfig:"WEATHER_PROVIDER" default:"openweather" validate:"oneof=openweather simulated"`
	APIKey    SecretString  `envconfig:"OWM_API_KEY" validate:"required_if=Provider openweather"`
	BaseURL   string        `envconfig:"OWM_BASE_URL" default:"https://api.openweathermap.org" validate:"url"`
	Timeout   time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s" validate:"gt=0"`
	UserAgent string        `envconfig:"WEATHER_USER_AGENT" default:"FarmAdvisory/1.0"`
	// HistoryDays is how many past days are fetched as the history window.
	HistoryDays int `envconfig:"HISTORY_DAYS" default:"14" validate:"min=1,max=16"`
}

// RegionConfig describes the default advisory region (Kericho County).
type RegionConfig struct {
	Name          string  `envconfig:"REGION_NAME" default:"Kericho"`
	Lat           float64 `envconfig:"REGION_LAT" default:"-0.3670" validate:"latitude"`
	Lon           float64 `envconfig:"REGION_LON" default:"35.2831" validate:"longitude"`
	TerrainFactor float64 `envconfig:"TERRAIN_FACTOR" default:"1.0" validate:"gt=0,lte=5"`
	// BoundaryGeoJSON is an optional path to a GeoJSON Polygon/MultiPolygon
	// (or Feature/FeatureCollection) used for the geofence. Empty uses the
	// built-in approximate boundary.
	BoundaryGeoJSON string `envconfig:"REGION_BOUNDARY_GEOJSON"`
}

// AdvisoryConfig sizes the rainfall windows fed to the flood scorer.
type AdvisoryConfig struct {
	RecentDays   int `envconfig:"RECENT_DAYS" default:"5" validate:"min=1,max=16"`
	UpcomingDays int `envconfig:"UPCOMING_DAYS" default:"3" validate:"min=1,max=16"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// AdvisoryQueueURL receives refresher output. Empty disables publishing.
	AdvisoryQueueURL string `envconfig:"SQS_ADVISORY_QUEUE" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"FarmAdvisory"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// RefreshConfig controls the local refresher loop. Under Lambda the schedule
// is owned by EventBridge and Interval is ignored.
type RefreshConfig struct {
	Interval time.Duration `envconfig:"REFRESH_INTERVAL" default:"5m" validate:"gte=1m"`
	// InProcess runs the refresher inside the API process so that farms held
	// in its in-memory registry are refreshed too.
	InProcess bool `envconfig:"REFRESH_IN_PROCESS" default:"false"`
	// Concurrency caps parallel weather fetches per pass.
	Concurrency int `envconfig:"REFRESH_CONCURRENCY" default:"4" validate:"min=1,max=32"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a failure when resolving a secret reference.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
