package advisory

import (
	"time"

	"farmadvisory/internal/types"
)

var baseDate = time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)

// window builds a daily window starting at start with the given precipitation
// amounts.
func window(start time.Time, mm ...float64) types.ForecastWindow {
	w := make(types.ForecastWindow, len(mm))
	for i, v := range mm {
		w[i] = types.ForecastEntry{
			Date: start.AddDate(0, 0, i),
			Summary: types.WeatherSample{
				Timestamp:       start.AddDate(0, 0, i),
				TemperatureC:    20,
				HumidityPct:     70,
				PrecipitationMm: v,
			},
			TempMinC: 14,
			TempMaxC: 24,
		}
	}
	return w
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }
