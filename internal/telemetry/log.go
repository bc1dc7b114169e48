package telemetry

import (
	"context"
	"log/slog"
	"time"

	"farmadvisory/internal/types"
)

// LogMetrics is the Recorder used when ENABLE_METRICS is off. It writes
// each measurement as a debug log line.
type LogMetrics struct {
	logger *slog.Logger
}

// NewLogMetrics creates a LogMetrics.
func NewLogMetrics(logger *slog.Logger) *LogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetrics{logger: logger}
}

func (l *LogMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	l.logger.Debug("metric",
		"name", types.MetricAPILatency,
		"endpoint", method+" "+endpoint,
		"status_class", StatusClass(status),
		"duration_ms", duration.Milliseconds(),
	)
}

func (l *LogMetrics) RecordAdvisory(source string, result *types.AdvisoryResult) {
	if result == nil {
		return
	}
	l.logger.Debug("metric",
		"name", types.MetricFloodRiskScore,
		"source", source,
		"value", result.FloodRisk.Value,
		"bucket", string(result.FloodRisk.Bucket),
		"season", string(result.Season),
	)
}

func (l *LogMetrics) RecordUpstreamFailure(provider string) {
	l.logger.Debug("metric", "name", types.MetricExternalAPIFailure, "provider", provider)
}

func (l *LogMetrics) RecordRefresh(duration time.Duration) {
	l.logger.Debug("metric", "name", types.MetricRefreshDuration, "duration_ms", duration.Milliseconds())
}

// Flush is a no-op.
func (l *LogMetrics) Flush(context.Context) error { return nil }
