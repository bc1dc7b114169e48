package forecasts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"farmadvisory/internal/types"
)

// DefaultOpenWeatherBaseURL is the public OpenWeatherMap API root.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org"

// historyConcurrency caps parallel day_summary calls.
const historyConcurrency = 4

// JSONGetter is the slice of external.Client used by OpenWeather.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string, dst any) error
}

// OpenWeather is a Source backed by the OpenWeatherMap REST API.
type OpenWeather struct {
	client  JSONGetter
	baseURL string
	apiKey  types.SecretString
	clock   types.Clock
}

// NewOpenWeather creates an OpenWeatherMap source. An empty baseURL selects
// DefaultOpenWeatherBaseURL.
func NewOpenWeather(client JSONGetter, baseURL string, apiKey types.SecretString, clock types.Clock) *OpenWeather {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherBaseURL
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &OpenWeather{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		clock:   clock,
	}
}

// Name implements Source.
func (o *OpenWeather) Name() string { return "openweather" }

// Check reports an error while the upstream circuit is open. It does not
// call the API.
func (o *OpenWeather) Check(context.Context) error {
	sc, ok := o.client.(interface {
		BreakerState() gobreaker.State
	})
	if !ok {
		return nil
	}
	if st := sc.BreakerState(); st == gobreaker.StateOpen {
		return errors.New("circuit breaker open")
	}
	return nil
}

func (o *OpenWeather) endpoint(path string, loc types.Location, extra url.Values) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	q.Set("units", "metric")
	q.Set("appid", o.apiKey.Unmask())
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return o.baseURL + path + "?" + q.Encode()
}

type owmCondition struct {
	ID   int    `json:"id"`
	Main string `json:"main"`
	Icon string `json:"icon"`
}

type owmMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Humidity  int     `json:"humidity"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
}

// owmCurrent is the /data/2.5/weather payload.
type owmCurrent struct {
	Dt      int64              `json:"dt"`
	Main    owmMain            `json:"main"`
	Wind    owmWind            `json:"wind"`
	Weather []owmCondition     `json:"weather"`
	Rain    map[string]float64 `json:"rain"`
	Snow    map[string]float64 `json:"snow"`
}

// owmForecast is the /data/2.5/forecast payload (3-hourly steps).
type owmForecast struct {
	List []struct {
		Dt      int64              `json:"dt"`
		Main    owmMain            `json:"main"`
		Wind    owmWind            `json:"wind"`
		Weather []owmCondition     `json:"weather"`
		Rain    map[string]float64 `json:"rain"`
		Snow    map[string]float64 `json:"snow"`
	} `json:"list"`
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
}

// owmDaySummary is the /data/3.0/onecall/day_summary payload.
type owmDaySummary struct {
	Date        string `json:"date"`
	Temperature struct {
		Min       float64 `json:"min"`
		Max       float64 `json:"max"`
		Afternoon float64 `json:"afternoon"`
	} `json:"temperature"`
	Humidity struct {
		Afternoon float64 `json:"afternoon"`
	} `json:"humidity"`
	Precipitation struct {
		Total float64 `json:"total"`
	} `json:"precipitation"`
	CloudCover struct {
		Afternoon float64 `json:"afternoon"`
	} `json:"cloud_cover"`
	Wind struct {
		Max struct {
			Speed float64 `json:"speed"`
		} `json:"max"`
	} `json:"wind"`
}

// Current implements Source.
func (o *OpenWeather) Current(ctx context.Context, loc types.Location) (types.WeatherSample, error) {
	var payload owmCurrent
	if err := o.client.GetJSON(ctx, o.endpoint("/data/2.5/weather", loc, nil), &payload); err != nil {
		return types.WeatherSample{}, err
	}

	ts := o.clock.Now()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}
	cond := firstCondition(payload.Weather)
	return types.WeatherSample{
		Timestamp:       ts,
		TemperatureC:    payload.Main.Temp,
		FeelsLikeC:      payload.Main.FeelsLike,
		HumidityPct:     clampHumidity(payload.Main.Humidity),
		WindSpeedMs:     math.Max(0, payload.Wind.Speed),
		PrecipitationMm: payload.Rain["1h"] + payload.Snow["1h"],
		ConditionIcon:   MapConditionIcon(cond.ID, cond.Icon),
	}, nil
}

// Forecast implements Source. The 3-hourly steps are grouped by the
// location's local calendar day.
func (o *OpenWeather) Forecast(ctx context.Context, loc types.Location) (types.ForecastWindow, error) {
	var payload owmForecast
	if err := o.client.GetJSON(ctx, o.endpoint("/data/2.5/forecast", loc, nil), &payload); err != nil {
		return nil, err
	}

	zone := time.FixedZone("local", payload.City.Timezone)

	type dayAcc struct {
		entry    types.ForecastEntry
		tempSum  float64
		humSum   int
		windSum  float64
		steps    int
		haveIcon bool
	}
	var days []*dayAcc
	byKey := map[string]*dayAcc{}

	for _, step := range payload.List {
		local := time.Unix(step.Dt, 0).In(zone)
		key := local.Format(time.DateOnly)
		acc, ok := byKey[key]
		if !ok {
			if len(days) == types.MaxWindowEntries {
				break
			}
			midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
			acc = &dayAcc{entry: types.ForecastEntry{
				Date:     midnight,
				TempMinC: math.Inf(1),
				TempMaxC: math.Inf(-1),
			}}
			acc.entry.Summary.Timestamp = midnight
			byKey[key] = acc
			days = append(days, acc)
		}

		acc.steps++
		acc.tempSum += step.Main.Temp
		acc.humSum += clampHumidity(step.Main.Humidity)
		acc.windSum += math.Max(0, step.Wind.Speed)
		acc.entry.Summary.PrecipitationMm += step.Rain["3h"] + step.Snow["3h"]
		acc.entry.TempMinC = math.Min(acc.entry.TempMinC, firstNonZero(step.Main.TempMin, step.Main.Temp))
		acc.entry.TempMaxC = math.Max(acc.entry.TempMaxC, firstNonZero(step.Main.TempMax, step.Main.Temp))
		if !acc.haveIcon {
			cond := firstCondition(step.Weather)
			acc.entry.Summary.ConditionIcon = MapConditionIcon(cond.ID, cond.Icon)
			acc.entry.Summary.FeelsLikeC = step.Main.FeelsLike
			acc.haveIcon = true
		}
	}

	window := make(types.ForecastWindow, 0, len(days))
	for _, d := range days {
		n := float64(d.steps)
		d.entry.Summary.TemperatureC = round1(d.tempSum / n)
		d.entry.Summary.HumidityPct = int(math.Round(float64(d.humSum) / n))
		d.entry.Summary.WindSpeedMs = round1(d.windSum / n)
		d.entry.Summary.PrecipitationMm = round1(d.entry.Summary.PrecipitationMm)
		window = append(window, d.entry)
	}
	return window, nil
}

// History implements Source using one day_summary call per day.
func (o *OpenWeather) History(ctx context.Context, loc types.Location, days int) (types.ForecastWindow, error) {
	if days <= 0 {
		return types.ForecastWindow{}, nil
	}
	days = min(days, types.MaxWindowEntries)

	now := o.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	window := make(types.ForecastWindow, days)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(historyConcurrency)

	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i-days)
		g.Go(func() error {
			var payload owmDaySummary
			extra := url.Values{"date": []string{date.Format(time.DateOnly)}}
			if err := o.client.GetJSON(gCtx, o.endpoint("/data/3.0/onecall/day_summary", loc, extra), &payload); err != nil {
				return fmt.Errorf("day summary %s: %w", date.Format(time.DateOnly), err)
			}
			window[i] = daySummaryEntry(date, payload)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return window, nil
}

func daySummaryEntry(date time.Time, p owmDaySummary) types.ForecastEntry {
	precip := math.Max(0, p.Precipitation.Total)
	var icon types.ConditionIcon
	switch {
	case precip > 15:
		icon = types.IconHeavyRain
	case precip > 0.5:
		icon = types.IconRain
	case p.CloudCover.Afternoon > 60:
		icon = types.IconClouds
	default:
		icon = types.IconClear
	}
	return types.ForecastEntry{
		Date: date,
		Summary: types.WeatherSample{
			Timestamp:       date,
			TemperatureC:    p.Temperature.Afternoon,
			FeelsLikeC:      p.Temperature.Afternoon,
			HumidityPct:     clampHumidity(int(math.Round(p.Humidity.Afternoon))),
			WindSpeedMs:     math.Max(0, p.Wind.Max.Speed),
			PrecipitationMm: round1(precip),
			ConditionIcon:   icon,
		},
		TempMinC: p.Temperature.Min,
		TempMaxC: p.Temperature.Max,
	}
}

// MapConditionIcon converts an OpenWeatherMap condition id and icon code
// into the normalized ConditionIcon. Unknown input maps to IconClear.
func MapConditionIcon(id int, icon string) types.ConditionIcon {
	switch id {
	case 502, 503, 504, 522, 531:
		return types.IconHeavyRain
	}

	if len(icon) >= 2 {
		switch icon[:2] {
		case "01":
			return types.IconClear
		case "02", "03", "04":
			return types.IconClouds
		case "09", "10":
			return types.IconRain
		case "11":
			return types.IconThunderstorm
		case "13":
			return types.IconSnow
		case "50":
			return types.IconFog
		}
	}

	switch {
	case id >= 200 && id < 300:
		return types.IconThunderstorm
	case id >= 300 && id < 600:
		return types.IconRain
	case id >= 600 && id < 700:
		return types.IconSnow
	case id >= 700 && id < 800:
		return types.IconFog
	case id == 800:
		return types.IconClear
	case id > 800 && id < 900:
		return types.IconClouds
	}
	return types.IconClear
}

func firstCondition(cs []owmCondition) owmCondition {
	if len(cs) == 0 {
		return owmCondition{}
	}
	return cs[0]
}

func clampHumidity(h int) int {
	return max(0, min(h, 100))
}

func firstNonZero(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
