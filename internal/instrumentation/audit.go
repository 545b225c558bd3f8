package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/crmgate/internal/telemetry"
)

// Invocation captures one finished gateway operation for audit logging.
//
// # Privacy Considerations
//
// Params holds caller input, which for a CRM frequently includes customer
// names and contact details. It is only logged when the audit logger is
// configured with IncludeParams.
type Invocation struct {
	// Operation name, e.g. "get-deal"
	Operation string

	// CorrelationID is the telemetry id assigned at start.
	CorrelationID string

	// Params are the validated request params.
	Params any

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// NewInvocation creates an Invocation with timing started.
// Call Complete() when the operation finishes.
func NewInvocation(operation string) *Invocation {
	return &Invocation{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// InvocationFromMetric builds an Invocation from a finished telemetry
// record. The "params" metadata entry, if present, becomes Params.
func InvocationFromMetric(m telemetry.Metric) *Invocation {
	inv := &Invocation{
		Operation:     m.Operation,
		CorrelationID: m.CorrelationID,
		StartTime:     m.StartTime,
		Duration:      m.Duration,
		Success:       m.Success,
		Error:         m.Error,
	}
	if p, ok := m.Metadata["params"]; ok {
		inv.Params = p
	}
	return inv
}

// WithCorrelationID sets the telemetry correlation id.
func (inv *Invocation) WithCorrelationID(id string) *Invocation {
	inv.CorrelationID = id
	return inv
}

// WithParams attaches the validated params.
func (inv *Invocation) WithParams(params any) *Invocation {
	inv.Params = params
	return inv
}

// WithSpanContext extracts trace context from the current span.
func (inv *Invocation) WithSpanContext(ctx context.Context) *Invocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		inv.TraceID = span.SpanContext().TraceID().String()
		inv.SpanID = span.SpanContext().SpanID().String()
	}
	return inv
}

// Complete marks the invocation as completed and calculates duration.
func (inv *Invocation) Complete(success bool, err error) *Invocation {
	inv.Duration = time.Since(inv.StartTime)
	inv.Success = success
	if err != nil {
		inv.Error = err.Error()
	}
	return inv
}

// CompleteWithError marks the invocation as failed with the given error.
func (inv *Invocation) CompleteWithError(err error) *Invocation {
	return inv.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (inv *Invocation) CompleteSuccess() *Invocation {
	return inv.Complete(true, nil)
}

// Status returns "success" or "error" based on the Success field.
func (inv *Invocation) Status() string {
	if inv.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging. Params are only
// included when includeParams is set.
func (inv *Invocation) LogAttrs(includeParams bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", inv.Operation),
		slog.Duration("duration", inv.Duration),
		slog.Bool("success", inv.Success),
	}

	if inv.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", inv.CorrelationID))
	}
	if inv.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", inv.TraceID))
	}
	if inv.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", inv.SpanID))
	}
	if inv.Error != "" {
		attrs = append(attrs, slog.String("error", inv.Error))
	}
	if includeParams && inv.Params != nil {
		attrs = append(attrs, slog.Any("params", inv.Params))
	}

	return attrs
}

// AuditLogger provides structured audit logging for operations.
type AuditLogger struct {
	logger        *slog.Logger
	level         slog.Level
	includeParams bool
	enabled       bool
}

// NewAuditLogger creates an enabled AuditLogger that logs successes at INFO
// and omits params.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		level:   slog.LevelInfo,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	al := NewAuditLogger(logger)
	al.enabled = config.Enabled
	al.includeParams = config.IncludeParams
	al.level = parseLevel(config.LogLevel)
	return al
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogInvocation logs a finished operation. Successes are logged as
// "operation_executed" at the configured level, failures as
// "operation_failed" at WARN or higher.
func (al *AuditLogger) LogInvocation(inv *Invocation) {
	if al == nil || !al.enabled || inv == nil {
		return
	}

	attrs := inv.LogAttrs(al.includeParams)
	if inv.Success {
		al.logger.LogAttrs(context.Background(), al.level, "operation_executed", attrs...)
		return
	}

	level := max(al.level, slog.LevelWarn)
	al.logger.LogAttrs(context.Background(), level, "operation_failed", attrs...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
