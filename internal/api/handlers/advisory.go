package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/core"
	"farmadvisory/internal/forecasts"
	"farmadvisory/internal/types"
)

// AdvisoryEngine is implemented by *advisory.Engine.
type AdvisoryEngine interface {
	BuildAdvisoryForSite(site advisory.Site, current types.WeatherSample, history, forecast types.ForecastWindow, month int) (*types.AdvisoryResult, error)
}

// SnapshotService is implemented by *forecasts.Service.
type SnapshotService interface {
	Snapshot(ctx context.Context, loc types.Location) (*forecasts.Snapshot, error)
}

// SiteLocator resolves terrain and soil for a bare coordinate.
// *farms.Region satisfies it.
type SiteLocator interface {
	SiteAt(lat, lon float64) advisory.Site
}

// AdvisoryRecorder receives every computed advisory. telemetry.Recorder
// satisfies it.
type AdvisoryRecorder interface {
	RecordAdvisory(source string, result *types.AdvisoryResult)
}

// AdvisoryRequest is the body of POST /v1/advisories. Month 0 selects the
// current month; a zero terrain factor selects flat terrain.
type AdvisoryRequest struct {
	Current       types.WeatherSample  `json:"current"`
	History       types.ForecastWindow `json:"history"`
	Forecast      types.ForecastWindow `json:"forecast"`
	Month         int                  `json:"month"`
	TerrainFactor float64              `json:"terrain_factor"`
	Soil          *types.SoilProfile   `json:"soil,omitempty"`
}

// SiteAdvisory is an advisory computed from live weather for one location.
type SiteAdvisory struct {
	Location  types.Location        `json:"location"`
	Advisory  *types.AdvisoryResult `json:"advisory"`
	Current   types.WeatherSample   `json:"current"`
	FetchedAt time.Time             `json:"fetched_at"`
	Source    string                `json:"-"`
	Warnings  []string              `json:"-"`
}

// AdvisoryHandler serves advisory computations.
type AdvisoryHandler struct {
	engine  AdvisoryEngine
	weather SnapshotService
	sites   SiteLocator
	metrics AdvisoryRecorder
	clock   types.Clock
	logger  *slog.Logger
}

// NewAdvisoryHandler creates an AdvisoryHandler. sites and metrics may be nil.
func NewAdvisoryHandler(
	engine AdvisoryEngine,
	weather SnapshotService,
	sites SiteLocator,
	metrics AdvisoryRecorder,
	clock types.Clock,
	logger *slog.Logger,
) *AdvisoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AdvisoryHandler{
		engine:  engine,
		weather: weather,
		sites:   sites,
		metrics: metrics,
		clock:   clock,
		logger:  logger,
	}
}

// RegisterRoutes mounts the advisory routes. Call inside r.Route("/advisories", ...).
func (h *AdvisoryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleCompute)
	r.Get("/point", h.HandleGetPoint)
}

// HandleCompute handles POST /v1/advisories. The caller supplies all weather
// inputs; no upstream call is made.
func (h *AdvisoryHandler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	var req AdvisoryRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	site := advisory.DefaultSite()
	if req.TerrainFactor != 0 {
		if err := checkTerrainFactor(req.TerrainFactor); err != nil {
			core.Error(w, r, err)
			return
		}
		site.TerrainFactor = req.TerrainFactor
	}
	site.Soil = req.Soil

	month := req.Month
	if month == 0 {
		month = int(h.clock.Now().Month())
	}

	result, err := h.engine.BuildAdvisoryForSite(site, req.Current, req.History, req.Forecast, month)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.record("request", result)

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: result,
		Meta: &core.ResponseMeta{Source: "request"},
	})
}

// HandleGetPoint handles GET /v1/advisories/point?lat=&lon=&terrain_factor=.
func (h *AdvisoryHandler) HandleGetPoint(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLatLon(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	tf, hasTF, err := parseTerrainFactor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	site := advisory.DefaultSite()
	if h.sites != nil {
		site = h.sites.SiteAt(loc.Lat, loc.Lon)
	}
	if hasTF {
		site.TerrainFactor = tf
	}

	result, err := h.AdviseSite(r.Context(), loc, site)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: result,
		Meta: &core.ResponseMeta{Source: result.Source, Warnings: result.Warnings},
	})
}

// AdviseSite fetches a weather snapshot for loc and builds the advisory for
// the current month.
func (h *AdvisoryHandler) AdviseSite(ctx context.Context, loc types.Location, site advisory.Site) (*SiteAdvisory, error) {
	snap, err := h.weather.Snapshot(ctx, loc)
	if err != nil {
		return nil, err
	}

	month := int(h.clock.Now().Month())
	result, err := h.engine.BuildAdvisoryForSite(site, snap.Current, snap.History, snap.Forecast, month)
	if err != nil {
		h.logger.ErrorContext(ctx, "advisory rejected upstream weather",
			"source", snap.Source,
			"lat", loc.Lat,
			"lon", loc.Lon,
			"error", err,
		)
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "weather provider returned unusable data", err)
	}
	h.record(snap.Source, result)

	return &SiteAdvisory{
		Location:  loc,
		Advisory:  result,
		Current:   snap.Current,
		FetchedAt: snap.FetchedAt,
		Source:    snap.Source,
		Warnings:  snap.Warnings,
	}, nil
}

func (h *AdvisoryHandler) record(source string, result *types.AdvisoryResult) {
	if h.metrics != nil {
		h.metrics.RecordAdvisory(source, result)
	}
}
