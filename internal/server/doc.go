// Package server holds the process-wide state shared by crmgate's
// operations and transports.
//
// # Key Components
//
// ServerContext carries the Piperun client, the telemetry recorder and the
// optional OpenTelemetry metrics and audit logger. Its Context is cancelled
// on Shutdown so long-running transports can stop.
//
// HealthChecker serves Kubernetes-style probes:
//   - /healthz: liveness, always 200 while the process runs
//   - /readyz: 503 until a CRM token is configured, or once shutdown starts
//   - /healthz/detailed: readiness checks plus recorder statistics
//
// MetricsServer exposes the Prometheus registry on its own port, together
// with the health endpoints.
package server
