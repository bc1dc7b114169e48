package forecasts

import (
	"context"
	"math"
	"time"

	"farmadvisory/internal/types"
)

// SimulatedForecastDays matches the horizon of the OpenWeatherMap
// 5-day forecast.
const SimulatedForecastDays = 5

const simulatedHumidityPct = 78

// simulatedRainMm is a repeating weekly light-rain pattern.
var simulatedRainMm = [7]float64{0.5, 1.2, 3.0, 0, 2.4, 5.5, 1.0}

// Simulated is a deterministic Source for local development and demos. Values
// depend only on the calendar day, so repeated calls for the same day agree
// and history and forecast never contradict each other. Location is ignored.
type Simulated struct {
	clock types.Clock
}

// NewSimulated creates a simulated source.
func NewSimulated(clock types.Clock) *Simulated {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Simulated{clock: clock}
}

// Name implements Source.
func (s *Simulated) Name() string { return "simulated" }

// Current implements Source.
func (s *Simulated) Current(ctx context.Context, _ types.Location) (types.WeatherSample, error) {
	if err := ctx.Err(); err != nil {
		return types.WeatherSample{}, err
	}
	now := s.clock.Now().UTC()
	sample := simulatedDay(dayOf(now))
	sample.Timestamp = now
	return sample, nil
}

// Forecast implements Source.
func (s *Simulated) Forecast(ctx context.Context, _ types.Location) (types.ForecastWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	today := dayOf(s.clock.Now().UTC())
	window := make(types.ForecastWindow, 0, SimulatedForecastDays)
	for i := 0; i < SimulatedForecastDays; i++ {
		window = append(window, simulatedEntry(today.AddDate(0, 0, i)))
	}
	return window, nil
}

// History implements Source.
func (s *Simulated) History(ctx context.Context, _ types.Location, days int) (types.ForecastWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	days = max(0, min(days, types.MaxWindowEntries))
	today := dayOf(s.clock.Now().UTC())
	window := make(types.ForecastWindow, 0, days)
	for i := days; i > 0; i-- {
		window = append(window, simulatedEntry(today.AddDate(0, 0, -i)))
	}
	return window, nil
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func simulatedEntry(day time.Time) types.ForecastEntry {
	sample := simulatedDay(day)
	return types.ForecastEntry{
		Date:     day,
		Summary:  sample,
		TempMinC: round1(sample.TemperatureC - 4),
		TempMaxC: round1(sample.TemperatureC + 4),
	}
}

// simulatedDay derives a sample from the day number since the Unix epoch:
// temperature 19 + 3·sin(i/2), humidity 78% and the weekly rain pattern.
func simulatedDay(day time.Time) types.WeatherSample {
	i := day.Unix() / 86400
	temp := round1(19 + 3*math.Sin(float64(i)/2))
	rain := simulatedRainMm[((i%7)+7)%7]

	icon := types.IconClouds
	switch {
	case rain >= 2:
		icon = types.IconRain
	case rain == 0:
		icon = types.IconClear
	}

	return types.WeatherSample{
		Timestamp:       day,
		TemperatureC:    temp,
		FeelsLikeC:      temp,
		HumidityPct:     simulatedHumidityPct,
		WindSpeedMs:     2.5 + float64(i%3)*0.5,
		PrecipitationMm: rain,
		ConditionIcon:   icon,
	}
}
