// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the crmgate gateway.
//
// # Metrics
//
// Transport:
//   - http_requests_total: Counter of inbound HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of inbound HTTP request durations
//
// Operations (fed by the telemetry recorder through TelemetryObserver):
//   - crm_operations_total: Counter of finished operations by name and status
//   - crm_operation_duration_seconds: Histogram of operation durations
//   - crm_active_operations: Gauge of started but unfinished operations
//   - dispatch_errors_total: Counter of error envelopes by code
//
// Outbound CRM API:
//   - crm_api_requests_total: Counter by method, normalized endpoint, and status
//   - crm_api_request_duration_seconds: Histogram of CRM API call durations
//
// # Tracing
//
// Spans are created for each dispatched operation (operation.<name>) and
// each outbound CRM call (piperun.<method> <endpoint>).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: crmgate)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PARAMS, AUDIT_LOGGING_LEVEL
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	observer := instrumentation.NewTelemetryObserver(provider.Metrics(), audit)
//	recorder := telemetry.NewRecorder(telemetry.WithObserver(observer))
package instrumentation
