package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/forecasts"
	"farmadvisory/internal/types"
)

// refTime falls in the LongRains season.
var refTime = time.Date(2026, 4, 15, 6, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wetWindows returns five 10 mm history days and three 12 mm forecast days:
// recent 50 mm, upcoming 36 mm.
func wetWindows() (history, forecast types.ForecastWindow) {
	day := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	for i := 5; i > 0; i-- {
		history = append(history, types.ForecastEntry{
			Date:    day.AddDate(0, 0, -i),
			Summary: types.WeatherSample{PrecipitationMm: 10, HumidityPct: 80},
		})
	}
	for i := 0; i < 3; i++ {
		forecast = append(forecast, types.ForecastEntry{
			Date:    day.AddDate(0, 0, i),
			Summary: types.WeatherSample{PrecipitationMm: 12, HumidityPct: 85},
		})
	}
	return history, forecast
}

// mockSnapshots is a hand-written SnapshotService.
type mockSnapshots struct {
	mu    sync.Mutex
	calls []types.Location
	snap  *forecasts.Snapshot
	err   error
}

func (m *mockSnapshots) Snapshot(_ context.Context, loc types.Location) (*forecasts.Snapshot, error) {
	m.mu.Lock()
	m.calls = append(m.calls, loc)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	snap := *m.snap
	snap.Location = loc
	return &snap, nil
}

func newWetSnapshots() *mockSnapshots {
	history, forecast := wetWindows()
	return &mockSnapshots{snap: &forecasts.Snapshot{
		Current:   types.WeatherSample{Timestamp: refTime, TemperatureC: 19, HumidityPct: 78, PrecipitationMm: 3, ConditionIcon: types.IconRain},
		History:   history,
		Forecast:  forecast,
		FetchedAt: refTime,
		Source:    "simulated",
	}}
}

// mockRecorder counts advisories by source.
type mockRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (m *mockRecorder) RecordAdvisory(source string, _ *types.AdvisoryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, source)
}

// mockSites returns a fixed site for every coordinate.
type mockSites struct {
	site advisory.Site
}

func (m mockSites) SiteAt(float64, float64) advisory.Site { return m.site }

// envelope mirrors core.APIResponse with a raw data payload.
type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *struct {
		Source   string   `json:"source"`
		Count    *int     `json:"count"`
		Warnings []string `json:"warnings"`
	} `json:"meta"`
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func serve(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) *envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return &env
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func mount(prefix string, register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Route(prefix, register)
	return r
}
