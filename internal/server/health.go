package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/teemow/crmgate/internal/telemetry"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusMissing      = "missing"
	healthStatusUnconfigured = "not configured"
)

// DefaultProbeTimeout bounds the CRM connectivity probe.
const DefaultProbeTimeout = 5 * time.Second

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// serverContext provides access to dependencies for health checks
	serverContext *ServerContext
	// startTime tracks when the server started
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// isServerShuttingDown returns false if serverContext is nil.
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthReport is the full health picture, served on /healthz/detailed and
// returned by the check-health operation.
type HealthReport struct {
	Status           string            `json:"status"`
	Uptime           string            `json:"uptime"`
	Checks           map[string]string `json:"checks"`
	ActiveOperations int               `json:"activeOperations"`
	Telemetry        *telemetry.Stats  `json:"telemetry,omitempty"`
}

// checks evaluates the readiness conditions that need no network access.
func (h *HealthChecker) checks() (map[string]string, bool) {
	checks := make(map[string]string)
	allOk := true

	if h.ready.Load() {
		checks["ready"] = healthStatusOK
	} else {
		checks["ready"] = healthStatusNotReady
		allOk = false
	}

	if h.isServerShuttingDown() {
		checks["shutdown"] = healthStatusShuttingDown
		allOk = false
	} else {
		checks["shutdown"] = healthStatusOK
	}

	if h.serverContext != nil {
		switch client := h.serverContext.CRMClient(); {
		case client == nil:
			checks["crm_token"] = healthStatusUnconfigured
			allOk = false
		case !client.HasToken():
			checks["crm_token"] = healthStatusMissing
			allOk = false
		default:
			checks["crm_token"] = healthStatusOK
		}
	}

	return checks, allOk
}

// Report builds a HealthReport. With probe set, the CRM API is contacted
// and its result recorded under the "crm" check.
func (h *HealthChecker) Report(ctx context.Context, probe bool) HealthReport {
	checks, allOk := h.checks()

	report := HealthReport{
		Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		Checks: checks,
	}

	if h.serverContext != nil {
		rec := h.serverContext.Recorder()
		stats := rec.Stats()
		report.Telemetry = &stats
		report.ActiveOperations = stats.ActiveOperations

		if client := h.serverContext.CRMClient(); probe && client != nil {
			probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
			if err := client.Ping(probeCtx); err != nil {
				checks["crm"] = err.Error()
				allOk = false
			} else {
				checks["crm"] = healthStatusOK
			}
			cancel()
		}
	}

	switch {
	case h.isServerShuttingDown():
		report.Status = healthStatusShuttingDown
	case !allOk:
		report.Status = healthStatusNotReady
	default:
		report.Status = healthStatusOK
	}
	return report
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// Liveness only says the process is running.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, allOk := h.checks()

		if allOk {
			writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed
// endpoint. It never contacts the CRM; use the check-health operation for that.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := h.Report(r.Context(), false)

		status := http.StatusOK
		if report.Status != healthStatusOK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
