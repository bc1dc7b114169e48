package advisory

import (
	"fmt"

	"farmadvisory/internal/types"
)

// Default window sizes.
const (
	DefaultRecentDays   = 5
	DefaultUpcomingDays = 3
)

// Config controls how many history and forecast days feed the flood score.
type Config struct {
	RecentDays   int
	UpcomingDays int
}

// Site describes the location-specific inputs that are not weather: terrain
// slope and, when known, the soil profile.
type Site struct {
	TerrainFactor float64
	Soil          *types.SoilProfile
}

// DefaultSite is flat terrain with no soil profile.
func DefaultSite() Site {
	return Site{TerrainFactor: DefaultTerrainFactor}
}

// Engine builds advisories. It holds only immutable configuration, so a
// single Engine may be shared across goroutines.
type Engine struct {
	recentDays   int
	upcomingDays int
}

// NewEngine creates an Engine. Non-positive window sizes fall back to the
// defaults.
func NewEngine(cfg Config) *Engine {
	e := &Engine{recentDays: cfg.RecentDays, upcomingDays: cfg.UpcomingDays}
	if e.recentDays <= 0 {
		e.recentDays = DefaultRecentDays
	}
	if e.upcomingDays <= 0 {
		e.upcomingDays = DefaultUpcomingDays
	}
	return e
}

// BuildAdvisory computes the advisory for flat terrain with no soil profile.
func (e *Engine) BuildAdvisory(current types.WeatherSample, history, forecast types.ForecastWindow, month int) (*types.AdvisoryResult, error) {
	return e.BuildAdvisoryForSite(DefaultSite(), current, history, forecast, month)
}

// BuildAdvisoryForSite computes the advisory for the given site.
//
// It returns an InvalidInputError (errors.Is(err, types.ErrInvalidInput))
// when month is outside 1..12, a window is out of order, duplicated or longer
// than types.MaxWindowEntries, or a sample carries humidity outside [0,100]
// or negative precipitation or wind. Missing precipitation and icons are not
// errors.
func (e *Engine) BuildAdvisoryForSite(site Site, current types.WeatherSample, history, forecast types.ForecastWindow, month int) (*types.AdvisoryResult, error) {
	if err := validateInputs(current, history, forecast, month); err != nil {
		return nil, err
	}

	season := ClassifySeason(month)
	recent := Aggregate(history, e.recentDays).RollingSum
	upcoming := Leading(forecast, e.upcomingDays)
	risk := ScoreFloodRisk(recent, upcoming, site.TerrainFactor)

	currentMm := current.Precipitation()
	humidity := current.HumidityPct
	actx := ActionContext{HumidityPct: &humidity, RainfallMm: &currentMm}

	var soilType types.SoilType
	if site.Soil != nil {
		oc := site.Soil.OrganicCarbon
		actx.OrganicCarbon = &oc
		soilType = ClassifySoil(site.Soil.ClayPct, site.Soil.SandPct)
	}

	var nextMm float64
	if len(forecast) > 0 {
		nextMm = forecast[0].Summary.Precipitation()
	}

	return &types.AdvisoryResult{
		Season:             season,
		FloodRisk:          risk,
		SoilMoisturePct:    SoilMoisturePct(recent),
		Crops:              RecommendCrops(season, current.TemperatureC, risk.Bucket),
		Actions:            RecommendActions(risk.Value, actx),
		RecentRainfallMm:   recent,
		UpcomingRainfallMm: upcoming,
		DailyRainfallMm:    Aggregate(forecast, 0).PerDay,
		RainfallIntensity:  ClassifyIntensity(currentMm),
		RainfallTrend:      ClassifyTrend(currentMm, nextMm),
		SoilType:           soilType,
	}, nil
}

func validateInputs(current types.WeatherSample, history, forecast types.ForecastWindow, month int) error {
	if month < 1 || month > 12 {
		return types.NewInvalidInputError(
			fmt.Sprintf("month must be between 1 and 12, got %d", month),
			map[string]any{"month": month})
	}
	if err := validateSample("current", current); err != nil {
		return err
	}
	for _, w := range []struct {
		name   string
		window types.ForecastWindow
	}{{"history", history}, {"forecast", forecast}} {
		if err := w.window.Validate(w.name); err != nil {
			return err
		}
		for i, entry := range w.window {
			if err := validateSample(fmt.Sprintf("%s[%d]", w.name, i), entry.Summary); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSample(field string, s types.WeatherSample) error {
	switch {
	case s.HumidityPct < 0 || s.HumidityPct > 100:
		return types.NewInvalidInputError(
			fmt.Sprintf("%s humidity must be between 0 and 100, got %d", field, s.HumidityPct),
			map[string]any{"field": field, "humidity_pct": s.HumidityPct})
	case s.PrecipitationMm < 0:
		return types.NewInvalidInputError(
			fmt.Sprintf("%s precipitation must not be negative", field),
			map[string]any{"field": field, "precipitation_mm": s.PrecipitationMm})
	case s.WindSpeedMs < 0:
		return types.NewInvalidInputError(
			fmt.Sprintf("%s wind speed must not be negative", field),
			map[string]any{"field": field, "wind_speed_ms": s.WindSpeedMs})
	}
	return nil
}
