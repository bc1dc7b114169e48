package forecasts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmadvisory/internal/external"
	"farmadvisory/internal/types"
)

var kericho = types.Location{Lat: -0.3670, Lon: 35.2831, DisplayName: "Kericho"}

func newOWMClient(t *testing.T, breaker external.BreakerSettings) *external.Client {
	t.Helper()
	return external.NewClient(
		&http.Client{Timeout: 2 * time.Second},
		breaker,
		external.RetryPolicy{MaxRetries: 0},
		"FarmAdvisory-Test/1.0",
		external.WithSleepFunc(func(context.Context, time.Duration) error { return nil }),
	)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestOpenWeather_Current(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/2.5/weather", r.URL.Path)
		gotQuery = map[string]string{
			"lat":   r.URL.Query().Get("lat"),
			"lon":   r.URL.Query().Get("lon"),
			"units": r.URL.Query().Get("units"),
			"appid": r.URL.Query().Get("appid"),
		}
		writeJSON(t, w, map[string]any{
			"dt":      1760868000,
			"main":    map[string]any{"temp": 18.4, "feels_like": 18.1, "humidity": 81},
			"wind":    map[string]any{"speed": 3.6},
			"weather": []map[string]any{{"id": 502, "main": "Rain", "icon": "10d"}},
			"rain":    map[string]any{"1h": 2.5},
		})
	}))
	defer srv.Close()

	src := NewOpenWeather(newOWMClient(t, external.DefaultBreakerSettings("owm")), srv.URL, types.SecretString("k-123"), nil)
	got, err := src.Current(context.Background(), kericho)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"lat": "-0.3670", "lon": "35.2831", "units": "metric", "appid": "k-123"}, gotQuery)
	assert.Equal(t, time.Unix(1760868000, 0).UTC(), got.Timestamp)
	assert.Equal(t, 18.4, got.TemperatureC)
	assert.Equal(t, 18.1, got.FeelsLikeC)
	assert.Equal(t, 81, got.HumidityPct)
	assert.Equal(t, 3.6, got.WindSpeedMs)
	assert.Equal(t, 2.5, got.PrecipitationMm)
	assert.Equal(t, types.IconHeavyRain, got.ConditionIcon)
}

func TestOpenWeather_CurrentMissingFieldsDegrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"main": map[string]any{"temp": 21.0, "humidity": 140}})
	}))
	defer srv.Close()

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	src := NewOpenWeather(newOWMClient(t, external.DefaultBreakerSettings("owm")), srv.URL, "k", types.FixedClock{T: now})
	got, err := src.Current(context.Background(), kericho)
	require.NoError(t, err)

	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, 100, got.HumidityPct)
	assert.Zero(t, got.PrecipitationMm)
	assert.Equal(t, types.IconClear, got.Icon())
}

func TestOpenWeather_ForecastGroupsByLocalDay(t *testing.T) {
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) // 12:00 in UTC+3
	step := func(h int, temp float64, rain float64, id int, icon string) map[string]any {
		s := map[string]any{
			"dt":      base.Add(time.Duration(h) * time.Hour).Unix(),
			"main":    map[string]any{"temp": temp, "feels_like": temp - 1, "humidity": 80},
			"wind":    map[string]any{"speed": 2.0},
			"weather": []map[string]any{{"id": id, "icon": icon}},
		}
		if rain > 0 {
			s["rain"] = map[string]any{"3h": rain}
		}
		return s
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/2.5/forecast", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"city": map[string]any{"timezone": 3 * 3600},
			"list": []map[string]any{
				step(0, 20, 1.0, 500, "10d"),
				step(3, 22, 2.0, 500, "10d"),
				step(6, 18, 0, 803, "04n"),
				step(9, 16, 0.5, 500, "10n"),
				step(12, 15, 4.0, 804, "04n"),
				step(15, 17, 0, 800, "01n"),
			},
		})
	}))
	defer srv.Close()

	src := NewOpenWeather(newOWMClient(t, external.DefaultBreakerSettings("owm")), srv.URL, "k", nil)
	window, err := src.Forecast(context.Background(), kericho)
	require.NoError(t, err)
	require.Len(t, window, 2)
	require.NoError(t, window.Validate("forecast"))

	day1, day2 := window[0], window[1]
	assert.Equal(t, "2026-10-19", day1.Date.Format(time.DateOnly))
	assert.Equal(t, "2026-10-20", day2.Date.Format(time.DateOnly))

	assert.Equal(t, 3.5, day1.Summary.PrecipitationMm)
	assert.Equal(t, 19.0, day1.Summary.TemperatureC)
	assert.Equal(t, 16.0, day1.TempMinC)
	assert.Equal(t, 22.0, day1.TempMaxC)
	assert.Equal(t, types.IconRain, day1.Summary.ConditionIcon)
	assert.Equal(t, 80, day1.Summary.HumidityPct)

	assert.Equal(t, 4.0, day2.Summary.PrecipitationMm)
	assert.Equal(t, 16.0, day2.Summary.TemperatureC)
	assert.Equal(t, types.IconClouds, day2.Summary.ConditionIcon)
}

func TestOpenWeather_ForecastCapsAtMaxEntries(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var list []map[string]any
	for d := 0; d < types.MaxWindowEntries+4; d++ {
		list = append(list, map[string]any{
			"dt":   base.AddDate(0, 0, d).Unix(),
			"main": map[string]any{"temp": 20.0, "humidity": 70},
		})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"list": list})
	}))
	defer srv.Close()

	src := NewOpenWeather(newOWMClient(t, external.DefaultBreakerSettings("owm")), srv.URL, "k", nil)
	window, err := src.Forecast(context.Background(), kericho)
	require.NoError(t, err)
	assert.Len(t, window, types.MaxWindowEntries)
}

func TestOpenWeather_History(t *testing.T) {
	var (
		mu    sync.Mutex
		dates []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/3.0/onecall/day_summary", r.URL.Path)
		date := r.URL.Query().Get("date")
		mu.Lock()
		dates = append(dates, date)
		mu.Unlock()

		precip := map[string]float64{"2026-10-16": 0.2, "2026-10-17": 6.0, "2026-10-18": 22.0}[date]
		writeJSON(t, w, map[string]any{
			"date":          date,
			"temperature":   map[string]any{"min": 12.0, "max": 24.0, "afternoon": 22.5},
			"humidity":      map[string]any{"afternoon": 64.4},
			"precipitation": map[string]any{"total": precip},
			"cloud_cover":   map[string]any{"afternoon": 75.0},
			"wind":          map[string]any{"max": map[string]any{"speed": 6.1}},
		})
	}))
	defer srv.Close()

	clock := types.FixedClock{T: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)}
	src := NewOpenWeather(newOWMClient(t, external.DefaultBreakerSettings("owm")), srv.URL, "k", clock)
	window, err := src.History(context.Background(), kericho, 3)
	require.NoError(t, err)
	require.Len(t, window, 3)
	require.NoError(t, window.Validate("history"))
	assert.ElementsMatch(t, []string{"2026-10-16", "2026-10-17", "2026-10-18"}, dates)

	assert.Equal(t, "2026-10-16", window[0].Date.Format(time.DateOnly))
	assert.Equal(t, types.IconClouds, window[0].Summary.ConditionIcon)
	assert.Equal(t, types.IconRain, window[1].Summary.ConditionIcon)
	assert.Equal(t, types.IconHeavyRain, window[2].Summary.ConditionIcon)
	assert.Equal(t, 22.0, window[2].Summary.PrecipitationMm)
	assert.Equal(t, 64, window[2].Summary.HumidityPct)
	assert.Equal(t, 22.5, window[2].Summary.TemperatureC)
	assert.Equal(t, 12.0, window[2].TempMinC)
	assert.Equal(t, 24.0, window[2].TempMaxC)
}

func TestOpenWeather_HistoryFailsWhenAnyDayFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "2026-10-17" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(t, w, map[string]any{})
	}))
	defer srv.Close()

	clock := types.FixedClock{T: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)}
	src := NewOpenWeather(newOWMClient(t, external.DefaultBreakerSettings("owm")), srv.URL, "k", clock)
	_, err := src.History(context.Background(), kericho, 3)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
}

func TestOpenWeather_HistoryZeroDays(t *testing.T) {
	src := NewOpenWeather(nil, "", "k", nil)
	window, err := src.History(context.Background(), kericho, 0)
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestOpenWeather_CheckReflectsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newOWMClient(t, external.BreakerSettings{Name: "owm", ConsecutiveFailures: 0, OpenTimeout: time.Minute})
	src := NewOpenWeather(client, srv.URL, "k", nil)
	require.NoError(t, src.Check(context.Background()))

	_, err := src.Current(context.Background(), kericho)
	require.Error(t, err)
	assert.Error(t, src.Check(context.Background()))
}

func TestMapConditionIcon(t *testing.T) {
	tests := []struct {
		id   int
		icon string
		want types.ConditionIcon
	}{
		{800, "01d", types.IconClear},
		{801, "02d", types.IconClouds},
		{804, "04n", types.IconClouds},
		{300, "09d", types.IconRain},
		{500, "10d", types.IconRain},
		{502, "10d", types.IconHeavyRain},
		{522, "09d", types.IconHeavyRain},
		{531, "09d", types.IconHeavyRain},
		{211, "11d", types.IconThunderstorm},
		{601, "13d", types.IconSnow},
		{741, "50d", types.IconFog},
		{201, "", types.IconThunderstorm},
		{612, "", types.IconSnow},
		{0, "", types.IconClear},
		{999, "xx", types.IconClear},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.id)+"_"+tt.icon, func(t *testing.T) {
			assert.Equal(t, tt.want, MapConditionIcon(tt.id, tt.icon))
		})
	}
}
