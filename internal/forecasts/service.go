// Package forecasts retrieves weather data for a location and normalizes it
// into the sample and window types consumed by the advisory engine.
//
// A Service wraps one Source (OpenWeatherMap or the simulated stand-in) and
// assembles a Snapshot: the current sample, the trailing history window and
// the upcoming forecast window, fetched concurrently.
package forecasts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"farmadvisory/internal/types"
)

// MaxHistoryDays bounds the trailing window a Snapshot may request.
const MaxHistoryDays = types.MaxWindowEntries

// Source is a weather data provider.
type Source interface {
	// Name identifies the provider in responses, logs and metrics.
	Name() string
	Current(ctx context.Context, loc types.Location) (types.WeatherSample, error)
	// Forecast returns upcoming daily summaries in ascending date order,
	// starting with the current local day.
	Forecast(ctx context.Context, loc types.Location) (types.ForecastWindow, error)
	// History returns the `days` days before today, oldest first.
	History(ctx context.Context, loc types.Location, days int) (types.ForecastWindow, error)
}

// Checker is implemented by sources that can report their own health
// without spending upstream quota.
type Checker interface {
	Check(ctx context.Context) error
}

// Snapshot is everything the advisory engine needs for one location.
type Snapshot struct {
	Location  types.Location       `json:"location"`
	Current   types.WeatherSample  `json:"current"`
	History   types.ForecastWindow `json:"history"`
	Forecast  types.ForecastWindow `json:"forecast"`
	FetchedAt time.Time            `json:"fetched_at"`
	Source    string               `json:"source"`
	// Warnings lists non-fatal degradations, such as missing history.
	Warnings []string `json:"warnings,omitempty"`
}

// Service assembles Snapshots from a Source.
type Service struct {
	source      Source
	historyDays int
	clock       types.Clock
	logger      *slog.Logger
}

// NewService creates a Service. historyDays is clamped to [0, MaxHistoryDays].
func NewService(source Source, historyDays int, clock types.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	historyDays = max(0, min(historyDays, MaxHistoryDays))
	return &Service{
		source:      source,
		historyDays: historyDays,
		clock:       clock,
		logger:      logger,
	}
}

// SourceName returns the name of the wrapped provider.
func (s *Service) SourceName() string {
	return s.source.Name()
}

// Snapshot fetches current conditions, forecast and history concurrently.
// Current and forecast are required; a history failure degrades to an
// empty window and a warning so advisories remain available.
func (s *Service) Snapshot(ctx context.Context, loc types.Location) (*Snapshot, error) {
	if err := types.ValidateCoordinates(loc.Lat, loc.Lon); err != nil {
		return nil, err
	}

	var (
		current  types.WeatherSample
		forecast types.ForecastWindow
		history  types.ForecastWindow
		histErr  error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.source.Current(gCtx, loc)
		if err != nil {
			return fmt.Errorf("current conditions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		forecast, err = s.source.Forecast(gCtx, loc)
		if err != nil {
			return fmt.Errorf("forecast: %w", err)
		}
		return nil
	})
	if s.historyDays > 0 {
		g.Go(func() error {
			// Not returned to the group: history is optional.
			history, histErr = s.source.History(gCtx, loc, s.historyDays)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "weather snapshot failed",
			"source", s.source.Name(),
			"lat", loc.Lat,
			"lon", loc.Lon,
			"error", err,
		)
		return nil, asUpstreamError(err)
	}

	current.ConditionIcon = current.Icon()
	snap := &Snapshot{
		Location:  loc,
		Current:   current,
		Forecast:  withIcons(forecast),
		History:   withIcons(history),
		FetchedAt: s.clock.Now(),
		Source:    s.source.Name(),
	}
	if histErr != nil {
		s.logger.WarnContext(ctx, "weather history unavailable; continuing without it",
			"source", s.source.Name(),
			"error", histErr,
		)
		snap.History = nil
		snap.Warnings = append(snap.Warnings, "history_unavailable")
	}
	if snap.History == nil {
		snap.History = types.ForecastWindow{}
	}
	if snap.Forecast == nil {
		snap.Forecast = types.ForecastWindow{}
	}
	return snap, nil
}

// withIcons returns a copy of w with missing or unknown condition icons set
// to IconClear.
func withIcons(w types.ForecastWindow) types.ForecastWindow {
	out := w.Clone()
	for i := range out {
		out[i].Summary.ConditionIcon = out[i].Summary.Icon()
	}
	return out
}

// Name implements core.HealthProbe.
func (s *Service) Name() string {
	return "weather_" + s.source.Name()
}

// Check implements core.HealthProbe. Sources without a Checker are always
// considered healthy.
func (s *Service) Check(ctx context.Context) error {
	if c, ok := s.source.(Checker); ok {
		return c.Check(ctx)
	}
	return nil
}

// asUpstreamError keeps AppErrors produced by the HTTP client and wraps
// anything else as an upstream weather failure.
func asUpstreamError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return types.NewAppError(types.ErrCodeUpstreamWeather, "weather data unavailable", err)
}
