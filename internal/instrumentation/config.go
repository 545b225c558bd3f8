package instrumentation

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Exporter names accepted in METRICS_EXPORTER and TRACING_EXPORTER.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	// ExporterStdout writes to the process's stdout, which the stdio and
	// mcp transports use for responses.
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Outcome labels shared by operation, CRM API and audit records.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"
)

// DefaultMetricInterval is the push interval of the OTLP and stdout metric
// readers. Prometheus is scraped instead.
const DefaultMetricInterval = 10 * time.Second

// Config selects where the gateway's operation, dispatch and CRM API
// telemetry goes.
type Config struct {
	// ServiceName and ServiceVersion identify the gateway in exported
	// resources. The name also scopes the meter (OTEL_SERVICE_NAME,
	// default crmgate). The version comes from the build, not the
	// environment.
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID tells replicas apart. Empty falls back to the
	// hostname.
	ServiceInstanceID string

	// K8sNamespace and K8sPodName are attached when the gateway runs as a pod.
	K8sNamespace string
	K8sPodName   string

	// Enabled turns the provider on (INSTRUMENTATION_ENABLED, default true).
	// When false, metrics and spans are no-ops and no exporter is started.
	Enabled bool

	// MetricsExporter is prometheus (served on the metrics port), otlp or
	// stdout.
	MetricsExporter string

	// TracingExporter is none, otlp or stdout. Spans cover each dispatched
	// operation and each CRM request it makes.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, required by either otlp
	// exporter. OTLPInsecure drops TLS for local collectors.
	OTLPEndpoint string
	OTLPInsecure bool

	// TraceSamplingRate is the ratio of root operation spans kept, 0 to 1.
	TraceSamplingRate float64

	// PrometheusEndpoint is the scrape path on the metrics server.
	PrometheusEndpoint string

	// DetailedLabels keeps record ids in CRM endpoint labels, e.g.
	// /deals/42 instead of /deals/{id}. Every record then becomes a series.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the per-operation audit entries.
type AuditLoggingConfig struct {
	// Enabled logs one entry per finished operation (AUDIT_LOGGING_ENABLED).
	Enabled bool

	// IncludeParams adds the validated params to each entry. They can hold
	// customer names and deal values, so it is off unless
	// AUDIT_LOGGING_INCLUDE_PARAMS is set.
	IncludeParams bool

	// LogLevel is the level of successful entries (AUDIT_LOGGING_LEVEL).
	LogLevel string
}

// DefaultConfig reads the instrumentation settings from the environment.
func DefaultConfig() Config {
	return Config{
		ServiceName:       getEnvOrDefault("OTEL_SERVICE_NAME", "crmgate"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: os.Getenv("OTEL_SERVICE_INSTANCE_ID"),
		K8sNamespace:      getEnvOrDefault("K8S_NAMESPACE", os.Getenv("POD_NAMESPACE")),
		K8sPodName:        getEnvOrDefault("K8S_POD_NAME", os.Getenv("HOSTNAME")),

		Enabled:         getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter: strings.ToLower(getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus)),
		TracingExporter: strings.ToLower(getEnvOrDefault("TRACING_EXPORTER", ExporterNone)),

		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),

		AuditLogging: AuditLoggingConfig{
			Enabled:       getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludeParams: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_PARAMS", false),
			LogLevel:      getEnvOrDefault("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate rejects unknown exporters, an out-of-range sampling rate and an
// otlp exporter without an endpoint. Empty exporter names are allowed and
// mean the provider's defaults.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: %s",
			c.MetricsExporter, strings.Join(metricsExporters, ", "))
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %s",
			c.TracingExporter, strings.Join(tracingExporters, ", "))
	}
	usesOTLP := c.MetricsExporter == ExporterOTLP || c.TracingExporter == ExporterOTLP
	if usesOTLP && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter (set OTEL_EXPORTER_OTLP_ENDPOINT)")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault falls back to defaultValue when the variable is unset
// or not a boolean.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	parsed, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
