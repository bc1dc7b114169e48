// Package scheduler implements the periodic advisory refresh.
//
// The Refresher recomputes advisories for every registered farm (or the
// region reference point when none are registered), publishes them to the
// advisory queue and records metrics. It runs either inside the refresher
// Lambda on an EventBridge schedule or as a ticker loop in local mode.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/farms"
	"farmadvisory/internal/forecasts"
	"farmadvisory/internal/queue"
	"farmadvisory/internal/telemetry"
	"farmadvisory/internal/types"
)

// DefaultFetchConcurrency caps parallel weather fetches per refresh.
const DefaultFetchConcurrency = 4

// RefreshInput is the optional payload of a manual invocation. The zero
// value refreshes every registered farm.
type RefreshInput struct {
	// FarmIDs restricts the refresh to these farms.
	FarmIDs []string `json:"farm_ids,omitempty"`
	// IncludeRegion adds the region reference point even when farms exist.
	IncludeRegion bool `json:"include_region"`
	// Limit caps the number of advisories computed. 0 means unlimited.
	Limit int `json:"limit"`
	// ReferenceTime overrides "now" when choosing the season.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// RefreshResult summarizes one pass.
type RefreshResult struct {
	Targets   int           `json:"targets"`
	Fetches   int           `json:"fetches"`
	Published int           `json:"published"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// SnapshotFetcher is implemented by *forecasts.Service.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, loc types.Location) (*forecasts.Snapshot, error)
	SourceName() string
}

// AdvisoryBuilder is implemented by *advisory.Engine.
type AdvisoryBuilder interface {
	BuildAdvisoryForSite(site advisory.Site, current types.WeatherSample, history, forecast types.ForecastWindow, month int) (*types.AdvisoryResult, error)
}

// FarmSource is implemented by *farms.Registry.
type FarmSource interface {
	List(ctx context.Context) []types.Farm
	Region() *farms.Region
}

// Refresher recomputes and publishes advisories.
type Refresher struct {
	weather     SnapshotFetcher
	engine      AdvisoryBuilder
	farms       FarmSource
	publisher   queue.Publisher
	metrics     telemetry.Recorder
	clock       types.Clock
	logger      *slog.Logger
	concurrency int
}

// RefresherConfig holds the dependencies for NewRefresher.
type RefresherConfig struct {
	Weather     SnapshotFetcher
	Engine      AdvisoryBuilder
	Farms       FarmSource
	Publisher   queue.Publisher
	Metrics     telemetry.Recorder
	Clock       types.Clock
	Logger      *slog.Logger
	Concurrency int
}

// NewRefresher creates a Refresher.
func NewRefresher(cfg RefresherConfig) *Refresher {
	r := &Refresher{
		weather:     cfg.Weather,
		engine:      cfg.Engine,
		farms:       cfg.Farms,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = types.RealClock{}
	}
	if r.metrics == nil {
		r.metrics = telemetry.NewLogMetrics(r.logger)
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultFetchConcurrency
	}
	return r
}

type target struct {
	farm *types.Farm
	loc  types.Location
	site advisory.Site
}

// Refresh runs one pass. Per-target failures are logged and counted; the
// pass fails only when nothing could be computed or publishing fails.
func (r *Refresher) Refresh(ctx context.Context, input RefreshInput) (*RefreshResult, error) {
	start := time.Now()
	now := r.clock.Now()
	if input.ReferenceTime != nil {
		now = *input.ReferenceTime
	}

	targets := r.targets(ctx, input)
	result := &RefreshResult{Targets: len(targets)}
	if len(targets) == 0 {
		r.logger.InfoContext(ctx, "refresh skipped: no targets")
		return result, nil
	}

	snaps, fetchErrs := r.fetchAll(ctx, targets)
	result.Fetches = len(snaps) + len(fetchErrs)

	msgs := make([]*types.AdvisoryMessage, 0, len(targets))
	for _, t := range targets {
		key := locationKey(t.loc)
		if err, ok := fetchErrs[key]; ok {
			result.Failed++
			r.logger.WarnContext(ctx, "refresh target skipped: weather unavailable",
				"farm_id", farmID(t.farm),
				"error", err,
			)
			continue
		}
		snap := snaps[key]

		adv, err := r.engine.BuildAdvisoryForSite(t.site, snap.Current, snap.History, snap.Forecast, int(now.Month()))
		if err != nil {
			result.Failed++
			r.logger.WarnContext(ctx, "refresh target skipped: advisory rejected input",
				"farm_id", farmID(t.farm),
				"error", err,
			)
			continue
		}

		r.metrics.RecordAdvisory(snap.Source, adv)
		msgs = append(msgs, &types.AdvisoryMessage{
			FarmID:     farmID(t.farm),
			Location:   t.loc,
			Source:     snap.Source,
			ComputedAt: now,
			Advisory:   *adv,
		})
	}

	if len(msgs) > 0 {
		if err := r.publisher.PublishBatch(ctx, msgs, "scheduled_refresh"); err != nil {
			var batchErr *queue.BatchError
			if errors.As(err, &batchErr) {
				result.Published = batchErr.Sent
				result.Failed += len(msgs) - batchErr.Sent
			}
			r.finish(ctx, result, start)
			return result, fmt.Errorf("publishing advisories: %w", err)
		}
	}
	result.Published = len(msgs)
	r.finish(ctx, result, start)

	if result.Published == 0 {
		return result, fmt.Errorf("refresh produced no advisories (%d targets failed)", result.Failed)
	}
	return result, nil
}

func (r *Refresher) finish(ctx context.Context, result *RefreshResult, start time.Time) {
	result.Duration = time.Since(start)
	r.metrics.RecordRefresh(result.Duration)
	if err := r.metrics.Flush(ctx); err != nil {
		r.logger.WarnContext(ctx, "metrics flush failed", "error", err)
	}
	r.logger.InfoContext(ctx, "refresh complete",
		"targets", result.Targets,
		"fetches", result.Fetches,
		"published", result.Published,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
	)
}

func (r *Refresher) targets(ctx context.Context, input RefreshInput) []target {
	var region *farms.Region
	var list []types.Farm
	if r.farms != nil {
		region = r.farms.Region()
		list = r.farms.List(ctx)
	}

	wanted := make(map[string]bool, len(input.FarmIDs))
	for _, id := range input.FarmIDs {
		wanted[id] = true
	}

	var out []target
	for i := range list {
		f := &list[i]
		if len(wanted) > 0 && !wanted[f.ID] {
			continue
		}
		out = append(out, target{farm: f, loc: f.Location, site: region.SiteFor(f)})
	}

	if region != nil && (input.IncludeRegion || (len(list) == 0 && len(wanted) == 0)) {
		c := region.Center
		out = append(out, target{loc: c, site: region.SiteAt(c.Lat, c.Lon)})
	}

	if input.Limit > 0 && len(out) > input.Limit {
		out = out[:input.Limit]
	}
	return out
}

// fetchAll fetches one snapshot per distinct location (rounded to about
// 1 km) so neighbouring farms share an upstream call.
func (r *Refresher) fetchAll(ctx context.Context, targets []target) (map[string]*forecasts.Snapshot, map[string]error) {
	unique := make(map[string]types.Location)
	for _, t := range targets {
		key := locationKey(t.loc)
		if _, ok := unique[key]; !ok {
			unique[key] = t.loc
		}
	}

	var (
		mu    sync.Mutex
		snaps = make(map[string]*forecasts.Snapshot, len(unique))
		errs  = make(map[string]error)
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for key, loc := range unique {
		g.Go(func() error {
			snap, err := r.weather.Snapshot(gCtx, loc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[key] = err
				var appErr *types.AppError
				if errors.As(err, &appErr) && appErr.HTTPStatus() >= 500 {
					r.metrics.RecordUpstreamFailure(r.weather.SourceName())
				}
				return nil
			}
			snaps[key] = snap
			return nil
		})
	}
	_ = g.Wait()
	return snaps, errs
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Refresh(ctx, RefreshInput{}); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func locationKey(loc types.Location) string {
	return fmt.Sprintf("%.2f,%.2f", math.Round(loc.Lat*100)/100, math.Round(loc.Lon*100)/100)
}

func farmID(f *types.Farm) string {
	if f == nil {
		return ""
	}
	return f.ID
}
