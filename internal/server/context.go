package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teemow/crmgate/internal/instrumentation"
	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/telemetry"
)

// ServerContext holds the process-wide dependencies shared by operations
// and transports.
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	client      *piperun.Client
	recorder    *telemetry.Recorder
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	startTime   time.Time
	mu          sync.RWMutex
	shutdown    bool
}

// NewServerContext creates a new server context. client may be nil for
// commands that never reach the CRM (e.g. generate-docs).
func NewServerContext(ctx context.Context, client *piperun.Client, recorder *telemetry.Recorder) (*ServerContext, error) {
	if recorder == nil {
		return nil, fmt.Errorf("telemetry recorder is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:       shutdownCtx,
		cancel:    cancel,
		client:    client,
		recorder:  recorder,
		startTime: time.Now(),
	}, nil
}

// Context returns the server context. It is cancelled by Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// CRMClient returns the Piperun client, or nil when none is configured.
func (sc *ServerContext) CRMClient() *piperun.Client {
	return sc.client
}

// Recorder returns the telemetry recorder.
func (sc *ServerContext) Recorder() *telemetry.Recorder {
	return sc.recorder
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics recorder.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetAuditLogger sets the audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// StartTime returns when the context was created.
func (sc *ServerContext) StartTime() time.Time {
	return sc.startTime
}

// Uptime returns the time since the context was created.
func (sc *ServerContext) Uptime() time.Duration {
	return time.Since(sc.startTime)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown marks the context as shut down and cancels it. Safe to call
// more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
