package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
}

func (p *fakeSecretProvider) GetSecrets(_ context.Context, refs []string) (map[string]string, error) {
	p.calledWith = append(p.calledWith, refs...)
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]string)
	for _, r := range refs {
		if v, ok := p.values[r]; ok {
			out[r] = v
		}
	}
	return out, nil
}

// fakeEnv backs loaderDeps with a map so resolution tests never touch the
// process environment.
type fakeEnv map[string]string

func (e fakeEnv) deps() loaderDeps {
	return loaderDeps{
		lookupEnv: func(k string) (string, bool) {
			v, ok := e[k]
			return v, ok
		},
		setEnv: func(k, v string) error {
			e[k] = v
			return nil
		},
		environ: func() []string {
			out := make([]string, 0, len(e))
			for k, v := range e {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
}

func setLocalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("WEATHER_PROVIDER", "simulated")
	t.Setenv("OWM_API_KEY", "")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("PORT", "8080")
	t.Setenv("SQS_ADVISORY_QUEUE", "")
	t.Setenv("AWS_ENDPOINT_URL", "")
}

func TestLoadConfig_LocalDefaults(t *testing.T) {
	setLocalEnv(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, ProviderSimulated, cfg.Weather.Provider)
	assert.Equal(t, "Kericho", cfg.Region.Name)
	assert.InDelta(t, -0.3670, cfg.Region.Lat, 1e-9)
	assert.InDelta(t, 35.2831, cfg.Region.Lon, 1e-9)
	assert.InDelta(t, 1.0, cfg.Region.TerrainFactor, 1e-9)
	assert.Equal(t, 5, cfg.Advisory.RecentDays)
	assert.Equal(t, 3, cfg.Advisory.UpcomingDays)
	assert.Equal(t, 14, cfg.Weather.HistoryDays)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval)
	assert.False(t, cfg.Refresh.InProcess)
	assert.Equal(t, 4, cfg.Refresh.Concurrency)
	assert.Equal(t, []string{"*"}, cfg.Server.CorsAllowedOrigins)
	assert.Equal(t, "dev", cfg.Build.Version)
	assert.Equal(t, time.UTC, time.Local)
}

func TestLoadConfig_OpenWeatherRequiresAPIKey(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("WEATHER_PROVIDER", "openweather")

	_, err := LoadConfig(nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrValidation, cfgErr.Type)
	assert.Contains(t, err.Error(), "APIKey")

	t.Setenv("OWM_API_KEY", "k-123")
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "k-123", cfg.Weather.APIKey.Unmask())
	assert.NotContains(t, cfg.Weather.APIKey.String(), "k-123")
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad environment", "APP_ENV", "qa"},
		{"latitude out of range", "REGION_LAT", "95"},
		{"history too long", "HISTORY_DAYS", "30"},
		{"refresh too fast", "REFRESH_INTERVAL", "10s"},
		{"queue not a url", "SQS_ADVISORY_QUEUE", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setLocalEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig(nil)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, ErrValidation, cfgErr.Type)
		})
	}
}

func TestLoadConfig_ParsingFailure(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("TERRAIN_FACTOR", "steep")

	_, err := LoadConfig(nil)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrParsing, cfgErr.Type)
}

func TestResolveSecretRefs_InjectsValues(t *testing.T) {
	env := fakeEnv{
		"APP_ENV":                "prod",
		"OWM_API_KEY_SECRET_REF": "farmadvisory/owm",
	}
	provider := &fakeSecretProvider{values: map[string]string{"farmadvisory/owm": "resolved-key"}}

	require.NoError(t, resolveSecretRefs(provider, env.deps()))
	assert.Equal(t, "resolved-key", env["OWM_API_KEY"])
	assert.Equal(t, []string{"farmadvisory/owm"}, provider.calledWith)
}

func TestResolveSecretRefs_ExistingValueWins(t *testing.T) {
	env := fakeEnv{
		"OWM_API_KEY":            "from-env",
		"OWM_API_KEY_SECRET_REF": "farmadvisory/owm",
	}
	provider := &fakeSecretProvider{}

	require.NoError(t, resolveSecretRefs(provider, env.deps()))
	assert.Equal(t, "from-env", env["OWM_API_KEY"])
	assert.Empty(t, provider.calledWith)
}

func TestResolveSecretRefs_Failures(t *testing.T) {
	env := fakeEnv{"OWM_API_KEY_SECRET_REF": "farmadvisory/owm"}

	err := resolveSecretRefs(nil, env.deps())
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrSecretResolution, cfgErr.Type)
	assert.Contains(t, cfgErr.Message, "OWM_API_KEY")

	err = resolveSecretRefs(&fakeSecretProvider{err: errors.New("denied")}, env.deps())
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, strings.Contains(err.Error(), "denied"))

	err = resolveSecretRefs(&fakeSecretProvider{values: map[string]string{}}, env.deps())
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Message, "not found for: OWM_API_KEY")
}

func TestResolveSecretRefs_NoRefsIsNoop(t *testing.T) {
	env := fakeEnv{"APP_ENV": "prod", "PORT": "8080"}
	assert.NoError(t, resolveSecretRefs(nil, env.deps()))
}
