package instrumentation

import (
	"context"

	"github.com/teemow/crmgate/internal/telemetry"
)

// TelemetryObserver forwards recorder lifecycle events to OpenTelemetry
// metrics and the audit log.
type TelemetryObserver struct {
	metrics *Metrics
	audit   *AuditLogger
}

var _ telemetry.Observer = (*TelemetryObserver)(nil)

// NewTelemetryObserver creates an observer. Either argument may be nil.
func NewTelemetryObserver(metrics *Metrics, audit *AuditLogger) *TelemetryObserver {
	return &TelemetryObserver{metrics: metrics, audit: audit}
}

// OperationStarted implements telemetry.Observer.
func (o *TelemetryObserver) OperationStarted(m telemetry.Metric) {
	o.metrics.IncrementActiveOperations(context.Background(), m.Operation)
}

// OperationFinished implements telemetry.Observer.
func (o *TelemetryObserver) OperationFinished(m telemetry.Metric) {
	ctx := context.Background()
	o.metrics.DecrementActiveOperations(ctx, m.Operation)

	status := StatusSuccess
	if !m.Success {
		status = StatusError
	}
	o.metrics.RecordOperation(ctx, m.Operation, status, m.Duration)

	o.audit.LogInvocation(InvocationFromMetric(m))
}
