package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/core"
	"farmadvisory/internal/forecasts"
)

// DailyForecastResponse is the normalized snapshot plus the per-day rainfall
// series the dashboards chart.
type DailyForecastResponse struct {
	*forecasts.Snapshot
	ForecastRainfall advisory.Aggregation `json:"forecast_rainfall"`
	HistoryRainfall  advisory.Aggregation `json:"history_rainfall"`
}

// ForecastHandler serves normalized weather windows.
type ForecastHandler struct {
	weather SnapshotService
	logger  *slog.Logger
}

// NewForecastHandler creates a ForecastHandler.
func NewForecastHandler(weather SnapshotService, logger *slog.Logger) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastHandler{weather: weather, logger: logger}
}

// RegisterRoutes mounts the forecast routes. Call inside r.Route("/forecasts", ...).
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.HandleGetDaily)
}

// HandleGetDaily handles GET /v1/forecasts/daily?lat=&lon=.
func (h *ForecastHandler) HandleGetDaily(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLatLon(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snap, err := h.weather.Snapshot(r.Context(), loc)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := DailyForecastResponse{
		Snapshot:         snap,
		ForecastRainfall: advisory.Aggregate(snap.Forecast, len(snap.Forecast)),
		HistoryRainfall:  advisory.Aggregate(snap.History, len(snap.History)),
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	if !snap.FetchedAt.IsZero() {
		w.Header().Set("Last-Modified", snap.FetchedAt.UTC().Format(http.TimeFormat))
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: resp,
		Meta: &core.ResponseMeta{Source: snap.Source, Warnings: snap.Warnings},
	})
}
