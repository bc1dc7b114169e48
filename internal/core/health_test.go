package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHealthProbe struct {
	name  string
	err   error
	delay time.Duration
	panic bool
}

func (m *mockHealthProbe) Name() string { return m.name }

func (m *mockHealthProbe) Check(ctx context.Context) error {
	if m.panic {
		panic("probe exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			// Simulate a probe that ignores cancellation briefly.
			time.Sleep(10 * time.Millisecond)
			return ctx.Err()
		}
	}
	return m.err
}

func runHealth(t *testing.T, probes ...HealthProbe) (int, healthResponse) {
	t.Helper()
	srv, err := NewServer(testConfig(), discardLogger())
	require.NoError(t, err)
	srv.HealthProbes = probes

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	code, resp := runHealth(t, &mockHealthProbe{name: "weather"}, &mockHealthProbe{name: "sqs"})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["weather"].Status)
	assert.Equal(t, "healthy", resp.Components["sqs"].Status)
}

func TestHandleHealth_ProbeFailure(t *testing.T) {
	code, resp := runHealth(t,
		&mockHealthProbe{name: "weather"},
		&mockHealthProbe{name: "sqs", err: errors.New("queue does not exist")},
	)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "queue does not exist", resp.Components["sqs"].Message)
	assert.Equal(t, "healthy", resp.Components["weather"].Status)
}

func TestHandleHealth_ProbePanicIsContained(t *testing.T) {
	code, resp := runHealth(t, &mockHealthProbe{name: "weather", panic: true})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, resp.Components["weather"].Message, "probe panicked")
}

func TestHandleHealth_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the health deadline")
	}
	code, resp := runHealth(t, &mockHealthProbe{name: "slow", delay: 10 * time.Second})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Components["slow"].Status)
}
