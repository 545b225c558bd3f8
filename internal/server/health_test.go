package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/crmgate/internal/logging"
	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/telemetry"
)

func newTestContext(t *testing.T, crmURL, token string) *ServerContext {
	t.Helper()
	var client *piperun.Client
	if crmURL != "" {
		var err error
		client, err = piperun.NewClient(piperun.Config{BaseURL: crmURL, Token: token})
		require.NoError(t, err)
	}
	rec := telemetry.NewRecorder(telemetry.WithLogger(logging.Discard()))
	sc, err := NewServerContext(context.Background(), client, rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func serve(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	h.SetReady(false)

	code, body := serve(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthStatusOK, body["status"])
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("ready with token", func(t *testing.T) {
		h := NewHealthChecker(newTestContext(t, "https://crm.example.test", "tok"))
		code, body := serve(t, h.ReadinessHandler())
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, healthStatusOK, body["status"])
	})

	t.Run("missing token", func(t *testing.T) {
		h := NewHealthChecker(newTestContext(t, "https://crm.example.test", ""))
		code, body := serve(t, h.ReadinessHandler())
		assert.Equal(t, http.StatusServiceUnavailable, code)
		checks := body["checks"].(map[string]any)
		assert.Equal(t, healthStatusMissing, checks["crm_token"])
	})

	t.Run("not ready", func(t *testing.T) {
		h := NewHealthChecker(nil)
		h.SetReady(false)
		assert.False(t, h.IsReady())
		code, _ := serve(t, h.ReadinessHandler())
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("shutting down", func(t *testing.T) {
		sc := newTestContext(t, "https://crm.example.test", "tok")
		h := NewHealthChecker(sc)
		require.NoError(t, sc.Shutdown())
		code, body := serve(t, h.ReadinessHandler())
		assert.Equal(t, http.StatusServiceUnavailable, code)
		checks := body["checks"].(map[string]any)
		assert.Equal(t, healthStatusShuttingDown, checks["shutdown"])
	})
}

func TestHealthChecker_DetailedIncludesTelemetry(t *testing.T) {
	sc := newTestContext(t, "https://crm.example.test", "tok")
	id := sc.Recorder().StartOperation("list-deals", nil)
	sc.Recorder().EndOperation(id, nil)
	sc.Recorder().StartOperation("get-deal", nil)

	code, body := serve(t, NewHealthChecker(sc).DetailedHealthHandler())

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["activeOperations"])
	tel := body["telemetry"].(map[string]any)
	assert.EqualValues(t, 1, tel["totalOperations"])
	checks := body["checks"].(map[string]any)
	assert.NotContains(t, checks, "crm", "detailed handler must not probe the CRM")
}

func TestHealthChecker_ReportProbesCRM(t *testing.T) {
	var probed bool
	crm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed = true
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("show"))
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer crm.Close()

	report := NewHealthChecker(newTestContext(t, crm.URL, "tok")).Report(context.Background(), true)

	assert.True(t, probed)
	assert.Equal(t, healthStatusOK, report.Status)
	assert.Equal(t, healthStatusOK, report.Checks["crm"])
}

func TestHealthChecker_ReportProbeFailure(t *testing.T) {
	crm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"invalid token"}`)
	}))
	defer crm.Close()

	report := NewHealthChecker(newTestContext(t, crm.URL, "bad")).Report(context.Background(), true)

	assert.Equal(t, healthStatusNotReady, report.Status)
	assert.Contains(t, report.Checks["crm"], "invalid token")
}

func TestHealthChecker_RegisterHealthEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthChecker(nil).RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
