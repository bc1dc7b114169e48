package types

import (
	"fmt"
	"math"
	"time"
)

// MaxWindowEntries is the upper bound on ForecastWindow length. It matches the
// longest daily horizon offered by typical weather APIs (16 days).
const MaxWindowEntries = 16

// ConditionIcon is the normalized weather condition code carried by a sample.
type ConditionIcon string

const (
	IconClear        ConditionIcon = "clear"
	IconClouds       ConditionIcon = "clouds"
	IconRain         ConditionIcon = "rain"
	IconHeavyRain    ConditionIcon = "heavy-rain"
	IconThunderstorm ConditionIcon = "thunderstorm"
	IconSnow         ConditionIcon = "snow"
	IconFog          ConditionIcon = "fog"
)

// Valid reports whether the icon belongs to the fixed enumeration.
func (c ConditionIcon) Valid() bool {
	switch c {
	case IconClear, IconClouds, IconRain, IconHeavyRain, IconThunderstorm, IconSnow, IconFog:
		return true
	}
	return false
}

// WeatherSample is one point-in-time weather observation.
//
// PrecipitationMm and ConditionIcon are optional: NaN precipitation reads as
// 0 mm and an empty or unknown icon reads as IconClear. See Precipitation and
// Icon.
type WeatherSample struct {
	Timestamp       time.Time     `json:"timestamp"`
	TemperatureC    float64       `json:"temperature_c"`
	FeelsLikeC      float64       `json:"feels_like_c"`
	HumidityPct     int           `json:"humidity_pct"`
	WindSpeedMs     float64       `json:"wind_speed_ms"`
	PrecipitationMm float64       `json:"precipitation_mm"`
	ConditionIcon   ConditionIcon `json:"condition_icon,omitempty"`
}

// Precipitation returns the sample precipitation with missing values
// defaulted to zero.
func (s WeatherSample) Precipitation() float64 {
	if math.IsNaN(s.PrecipitationMm) {
		return 0
	}
	return s.PrecipitationMm
}

// Icon returns the condition icon with missing or unknown codes defaulted
// to IconClear.
func (s WeatherSample) Icon() ConditionIcon {
	if s.ConditionIcon.Valid() {
		return s.ConditionIcon
	}
	return IconClear
}

// ForecastEntry is one daily summary inside a ForecastWindow.
type ForecastEntry struct {
	Date     time.Time     `json:"date"`
	Summary  WeatherSample `json:"summary"`
	TempMinC float64       `json:"temp_min_c"`
	TempMaxC float64       `json:"temp_max_c"`
}

// ForecastWindow is an ordered sequence of daily summaries. The same type
// carries both history (trailing days) and forecast (upcoming days).
type ForecastWindow []ForecastEntry

// Validate checks the window invariants: at most MaxWindowEntries entries and
// strictly increasing dates. The name identifies the window in the error.
func (w ForecastWindow) Validate(name string) error {
	if len(w) > MaxWindowEntries {
		return NewInvalidInputError(
			fmt.Sprintf("%s window has %d entries; maximum is %d", name, len(w), MaxWindowEntries),
			map[string]any{"window": name, "entries": len(w)},
		)
	}
	for i := 1; i < len(w); i++ {
		if !w[i].Date.After(w[i-1].Date) {
			return NewInvalidInputError(
				fmt.Sprintf("%s window dates must be strictly increasing", name),
				map[string]any{
					"window":   name,
					"index":    i,
					"date":     w[i].Date.Format(time.DateOnly),
					"previous": w[i-1].Date.Format(time.DateOnly),
				},
			)
		}
	}
	return nil
}

// Clone returns a copy of the window that shares no backing storage.
func (w ForecastWindow) Clone() ForecastWindow {
	if w == nil {
		return nil
	}
	out := make(ForecastWindow, len(w))
	copy(out, w)
	return out
}
