// Package telemetry publishes service metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"farmadvisory/internal/types"
)

// CloudWatch accepts at most 1000 datums per PutMetricData call.
const maxDatumsPerCall = 1000

// DefaultFlushThreshold triggers an early flush once this many datums are
// buffered.
const DefaultFlushThreshold = 200

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder is the metrics surface used by handlers and the refresher.
type Recorder interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordAdvisory(source string, result *types.AdvisoryResult)
	RecordUpstreamFailure(provider string)
	RecordRefresh(duration time.Duration)
	Flush(ctx context.Context) error
}

var (
	_ Recorder = (*CloudWatchMetrics)(nil)
	_ Recorder = (*LogMetrics)(nil)
)

// CloudWatchMetrics buffers datums in memory and publishes them in batches.
// Call Flush before the process (or Lambda invocation) ends, or run Run in
// the background.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	clock     types.Clock
	threshold int

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
}

// NewCloudWatchMetrics creates a recorder publishing to namespace. An empty
// namespace selects types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger, clock types.Clock) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		clock:     clock,
		threshold: DefaultFlushThreshold,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// RecordRequest implements core.MetricsCollector. The raw status is reduced
// to its class ("2xx", "4xx") to bound cardinality.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimEndpoint, method+" "+endpoint),
		dim(types.DimStatus, StatusClass(status)),
	}
	m.add(
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequest),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}

// RecordAdvisory emits the flood risk score and a computed-advisory count
// broken down by risk bucket and season.
func (m *CloudWatchMetrics) RecordAdvisory(source string, result *types.AdvisoryResult) {
	if result == nil {
		return
	}
	m.add(
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricFloodRiskScore),
			Value:      aws.Float64(float64(result.FloodRisk.Value)),
			Unit:       cwtypes.StandardUnitNone,
			Dimensions: []cwtypes.Dimension{dim(types.DimSource, source)},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAdvisoryComputed),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				dim(types.DimRiskBucket, string(result.FloodRisk.Bucket)),
				dim(types.DimSeason, string(result.Season)),
			},
		},
	)
}

// RecordUpstreamFailure counts a failed weather provider call.
func (m *CloudWatchMetrics) RecordUpstreamFailure(provider string) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricExternalAPIFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimProvider, provider)},
	})
}

// RecordRefresh records how long a refresh pass took.
func (m *CloudWatchMetrics) RecordRefresh(duration time.Duration) {
	m.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRefreshDuration),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (m *CloudWatchMetrics) add(datums ...cwtypes.MetricDatum) {
	now := m.clock.Now()
	for i := range datums {
		datums[i].Timestamp = aws.Time(now)
	}

	m.mu.Lock()
	m.pending = append(m.pending, datums...)
	full := len(m.pending) >= m.threshold
	m.mu.Unlock()

	if full {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Flush(ctx)
		}()
	}
}

// Pending returns the number of buffered datums.
func (m *CloudWatchMetrics) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush publishes all buffered datums. Datums from a failed call are
// dropped and the error is logged and returned.
func (m *CloudWatchMetrics) Flush(ctx context.Context) error {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	var firstErr error
	for start := 0; start < len(batch); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(batch))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: batch[start:end],
		})
		if err != nil {
			m.logger.Error("failed to publish metrics",
				"error", err.Error(),
				"datums", end-start,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (m *CloudWatchMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = m.Flush(final)
			cancel()
			return
		case <-ticker.C:
			_ = m.Flush(ctx)
		}
	}
}

// StatusClass maps "404" to "4xx". Anything unparseable maps to "unknown".
func StatusClass(status string) string {
	if len(status) != 3 || status[0] < '1' || status[0] > '5' {
		return "unknown"
	}
	return status[:1] + "xx"
}
