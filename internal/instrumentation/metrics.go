package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrEndpoint  = "endpoint"
	attrCode      = "code"
)

// Metrics provides methods for recording observability metrics. A nil or
// zero Metrics is a valid no-op recorder.
type Metrics struct {
	// HTTP transport metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Operation metrics, fed by the telemetry recorder
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	activeOperations  metric.Int64UpDownCounter

	// Dispatch envelope errors by code
	dispatchErrorsTotal metric.Int64Counter

	// Outbound CRM API metrics
	crmRequestsTotal   metric.Int64Counter
	crmRequestDuration metric.Float64Histogram

	// detailedLabels records raw CRM API paths instead of normalized endpoints
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.operationsTotal, err = meter.Int64Counter(
		"crm_operations_total",
		metric.WithDescription("Total number of finished gateway operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crm_operations_total counter: %w", err)
	}

	m.operationDuration, err = meter.Float64Histogram(
		"crm_operation_duration_seconds",
		metric.WithDescription("Gateway operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crm_operation_duration_seconds histogram: %w", err)
	}

	m.activeOperations, err = meter.Int64UpDownCounter(
		"crm_active_operations",
		metric.WithDescription("Number of operations started but not yet finished"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crm_active_operations gauge: %w", err)
	}

	m.dispatchErrorsTotal, err = meter.Int64Counter(
		"dispatch_errors_total",
		metric.WithDescription("Total number of error envelopes by code"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch_errors_total counter: %w", err)
	}

	m.crmRequestsTotal, err = meter.Int64Counter(
		"crm_api_requests_total",
		metric.WithDescription("Total number of outbound CRM API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crm_api_requests_total counter: %w", err)
	}

	m.crmRequestDuration, err = meter.Float64Histogram(
		"crm_api_request_duration_seconds",
		metric.WithDescription("Outbound CRM API request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create crm_api_request_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an inbound HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOperation records a finished operation.
//
// Parameters:
//   - operation: registered operation name (e.g., "list-deals")
//   - status: "success" or "error"
//   - duration: time between start and finish
func (m *Metrics) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.operationsTotal == nil || m.operationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveOperations increments the in-flight operation gauge.
func (m *Metrics) IncrementActiveOperations(ctx context.Context, operation string) {
	if m == nil || m.activeOperations == nil {
		return // Instrumentation not initialized
	}

	m.activeOperations.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOperation, operation)))
}

// DecrementActiveOperations decrements the in-flight operation gauge.
func (m *Metrics) DecrementActiveOperations(ctx context.Context, operation string) {
	if m == nil || m.activeOperations == nil {
		return // Instrumentation not initialized
	}

	m.activeOperations.Add(ctx, -1, metric.WithAttributes(attribute.String(attrOperation, operation)))
}

// RecordDispatchError counts an error envelope by code.
func (m *Metrics) RecordDispatchError(ctx context.Context, code int) {
	if m == nil || m.dispatchErrorsTotal == nil {
		return // Instrumentation not initialized
	}

	m.dispatchErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCode, strconv.Itoa(code))))
}

// RecordCRMAPIRequest records an outbound CRM API call. The path is
// normalized unless detailed labels are enabled. A zero statusCode means
// the request failed before a response was received.
func (m *Metrics) RecordCRMAPIRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.crmRequestsTotal == nil || m.crmRequestDuration == nil {
		return // Instrumentation not initialized
	}

	endpoint := NormalizeEndpoint(path)
	if m.detailedLabels {
		endpoint = path
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrEndpoint, endpoint),
		attribute.String(attrStatus, StatusCodeLabel(statusCode)),
	}

	m.crmRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.crmRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
