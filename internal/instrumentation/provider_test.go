package instrumentation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.PrometheusHandler() != nil {
		t.Error("expected no prometheus handler when disabled")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestNewProvider_PrometheusHandler(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() {
		t.Fatal("expected provider to be enabled")
	}

	provider.Metrics().RecordOperation(ctx, "list-deals", StatusSuccess, 10*time.Millisecond)

	handler := provider.PrometheusHandler()
	if handler == nil {
		t.Fatal("expected prometheus handler")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "crm_operations_total") {
		t.Errorf("expected crm_operations_total in scrape output:\n%s", body)
	}
}

func TestNewProvider_StdoutExporters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:       "test-service",
		Enabled:           true,
		MetricsExporter:   ExporterStdout,
		TracingExporter:   ExporterStdout,
		TraceSamplingRate: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if provider.PrometheusHandler() != nil {
		t.Error("expected no prometheus handler for stdout exporter")
	}
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		ServiceName:     "test-service",
		Enabled:         true,
		MetricsExporter: "graphite",
	})
	if err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestNewProvider_OTLPRequiresEndpoint(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		ServiceName:     "test-service",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterOTLP,
	})
	if err == nil {
		t.Fatal("expected error for OTLP tracing without endpoint")
	}
}
