package advisory

import "farmadvisory/internal/types"

// Aggregation is the per-day precipitation series of a window together with
// the trailing rolling sum.
type Aggregation struct {
	PerDay     []float64 `json:"per_day"`
	RollingSum float64   `json:"rolling_sum"`
}

// Aggregate returns the precipitation of every entry in the window and the
// sum of the last days entries. A window shorter than days sums what is
// present; days <= 0 sums nothing. Missing precipitation counts as 0.
func Aggregate(window types.ForecastWindow, days int) Aggregation {
	perDay := make([]float64, len(window))
	for i, e := range window {
		perDay[i] = e.Summary.Precipitation()
	}

	start := len(perDay) - days
	if start < 0 {
		start = 0
	}
	var sum float64
	if days > 0 {
		for _, mm := range perDay[start:] {
			sum += mm
		}
	}

	return Aggregation{PerDay: perDay, RollingSum: sum}
}

// Leading sums the precipitation of the first days entries of a forward
// window. Used for upcoming rainfall.
func Leading(window types.ForecastWindow, days int) float64 {
	if days <= 0 {
		return 0
	}
	if days > len(window) {
		days = len(window)
	}
	var sum float64
	for _, e := range window[:days] {
		sum += e.Summary.Precipitation()
	}
	return sum
}

// ClassifyIntensity labels a precipitation amount: above 15 mm is heavy,
// above 5 mm moderate, anything else low.
func ClassifyIntensity(mm float64) types.RainfallIntensity {
	switch {
	case mm > 15:
		return types.IntensityHeavy
	case mm > 5:
		return types.IntensityModerate
	default:
		return types.IntensityLow
	}
}

// ClassifyTrend compares the next forecast day against current
// precipitation. A dry current reading is treated as 1 mm for the
// decreasing test.
func ClassifyTrend(currentMm, nextMm float64) types.RainfallTrend {
	if nextMm > currentMm*1.5 {
		return types.TrendIncreasing
	}
	base := currentMm
	if base == 0 {
		base = 1
	}
	if nextMm < base*0.5 {
		return types.TrendDecreasing
	}
	return types.TrendStable
}
