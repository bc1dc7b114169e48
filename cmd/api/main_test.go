package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmadvisory/internal/app"
	"farmadvisory/internal/config"
	"farmadvisory/internal/core"
	"farmadvisory/internal/types"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) // ShortRains

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("WEATHER_PROVIDER", "simulated")
	t.Setenv("OWM_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PORT", "8080")
	t.Setenv("SQS_ADVISORY_QUEUE", "")
	t.Setenv("AWS_ENDPOINT_URL", "")
	t.Setenv("ENABLE_METRICS", "false")
}

// buildTestServer wires the full server against the simulated weather source.
func buildTestServer(t *testing.T) *core.Server {
	t.Helper()
	setTestEnv(t)

	cfg, err := config.LoadConfig(nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := app.Build(context.Background(), cfg, logger, app.Options{
		Clock: types.FixedClock{T: fixedNow},
	})
	require.NoError(t, err)

	srv, err := buildServer(deps)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *core.Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestHealthEndpoint(t *testing.T) {
	srv := buildTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp["status"])

	components, ok := resp["components"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, components, "weather_simulated")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSeasonEndpoint(t *testing.T) {
	srv := buildTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/v1/seasons/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, "ShortRains", data["season"])
	assert.EqualValues(t, 10, data["month"])
}

func TestPointAdvisoryEndpoint(t *testing.T) {
	srv := buildTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/v1/advisories/point?lat=-0.367&lon=35.2831", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := resp["data"].(map[string]any)
	adv := data["advisory"].(map[string]any)
	assert.Equal(t, "ShortRains", adv["season"])
	assert.Equal(t, "clay", adv["soil_type"])
	assert.Len(t, adv["daily_rainfall_mm"], 5)

	meta := resp["meta"].(map[string]any)
	assert.Equal(t, "simulated", meta["source"])
}

func TestDailyForecastEndpoint(t *testing.T) {
	srv := buildTestServer(t)

	rec, resp := do(t, srv, http.MethodGet, "/v1/forecasts/daily?lat=-0.367&lon=35.2831", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp["data"].(map[string]any)
	assert.Len(t, data["forecast"], 5)
	assert.Len(t, data["history"], 14)
}

func TestFarmLifecycle(t *testing.T) {
	srv := buildTestServer(t)

	body := `{
		"owner_name": "Kiprono Langat",
		"email": "kiprono@example.com",
		"farm_location": "Kapsoit, Kericho",
		"lat": -0.3833,
		"lon": 35.3167,
		"size_acres": 3,
		"primary_crops": ["Tea"],
		"terrain_factor": 1.5
	}`
	rec, resp := do(t, srv, http.MethodPost, "/v1/farms", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	farm := resp["data"].(map[string]any)
	id := farm["id"].(string)
	assert.Equal(t, true, farm["inside_region"])
	assert.Equal(t, "rain_fed", farm["irrigation_system"])

	rec, resp = do(t, srv, http.MethodGet, "/v1/farms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp["meta"].(map[string]any)["count"])

	rec, resp = do(t, srv, http.MethodGet, "/v1/farms/nearest?lat=-0.37&lon=35.3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, resp["data"].(map[string]any)["farm"].(map[string]any)["id"])

	rec, resp = do(t, srv, http.MethodGet, "/v1/farms/"+id+"/advisory", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := resp["data"].(map[string]any)
	assert.Equal(t, id, data["farm"].(map[string]any)["id"])
	assert.NotNil(t, data["advisory"])

	rec, resp = do(t, srv, http.MethodGet, "/v1/farms/farm_unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_farm", resp["error"].(map[string]any)["code"])
}

func TestComputeEndpoint_RejectsBadInput(t *testing.T) {
	srv := buildTestServer(t)

	rec, resp := do(t, srv, http.MethodPost, "/v1/advisories", `{"month": 14}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := resp["error"].(map[string]any)
	assert.Equal(t, "validation_invalid_input", errBody["code"])
	assert.NotEmpty(t, errBody["request_id"])
}
