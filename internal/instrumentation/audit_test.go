package instrumentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/teemow/crmgate/internal/telemetry"
)

const (
	testOperation     = "get-deal"
	testCorrelationID = "get-deal-1700000000000-abc1234"
)

func newBufferLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got none")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", line, err)
	}
	return entry
}

func TestInvocation_NewAndComplete(t *testing.T) {
	inv := NewInvocation(testOperation)
	if inv.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	inv.CompleteSuccess()

	if !inv.Success || inv.Status() != StatusSuccess {
		t.Error("expected successful invocation")
	}
	if inv.Duration < 0 {
		t.Error("Duration should not be negative")
	}
}

func TestInvocation_CompleteWithError(t *testing.T) {
	inv := NewInvocation(testOperation).CompleteWithError(errors.New("not found"))

	if inv.Success || inv.Status() != StatusError {
		t.Error("expected failed invocation")
	}
	if inv.Error != "not found" {
		t.Errorf("Error = %q, want %q", inv.Error, "not found")
	}
}

func TestInvocationFromMetric(t *testing.T) {
	params := map[string]any{"dealId": 7}
	m := telemetry.Metric{
		CorrelationID: testCorrelationID,
		Operation:     testOperation,
		StartTime:     time.Unix(1700000000, 0),
		Duration:      250 * time.Millisecond,
		Success:       false,
		Error:         "not found",
		Metadata:      map[string]any{"params": params},
	}

	inv := InvocationFromMetric(m)

	if inv.Operation != testOperation || inv.CorrelationID != testCorrelationID {
		t.Errorf("unexpected identity: %+v", inv)
	}
	if inv.Duration != 250*time.Millisecond || inv.Error != "not found" {
		t.Errorf("unexpected outcome: %+v", inv)
	}
	if inv.Params == nil {
		t.Error("expected params to be carried over")
	}
}

func TestInvocation_LogAttrs(t *testing.T) {
	inv := NewInvocation(testOperation).
		WithCorrelationID(testCorrelationID).
		WithParams(map[string]any{"dealId": 7})
	inv.CompleteSuccess()

	keys := func(attrs []slog.Attr) map[string]bool {
		out := map[string]bool{}
		for _, a := range attrs {
			out[a.Key] = true
		}
		return out
	}

	without := keys(inv.LogAttrs(false))
	if without["params"] {
		t.Error("params must not be logged unless requested")
	}
	if !without["correlation_id"] || !without["operation"] {
		t.Errorf("missing identity attrs: %v", without)
	}
	if without["error"] || without["trace_id"] {
		t.Errorf("empty optional attrs should be omitted: %v", without)
	}

	if !keys(inv.LogAttrs(true))["params"] {
		t.Error("expected params when requested")
	}
}

func TestAuditLogger_LogInvocation(t *testing.T) {
	tests := []struct {
		name      string
		success   bool
		wantMsg   string
		wantLevel string
	}{
		{"success", true, "operation_executed", "INFO"},
		{"failure", false, "operation_failed", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(slog.LevelDebug)
			al := NewAuditLogger(logger)

			inv := NewInvocation(testOperation)
			if tt.success {
				inv.CompleteSuccess()
			} else {
				inv.CompleteWithError(errors.New("boom"))
			}
			al.LogInvocation(inv)

			entry := decodeLine(t, buf)
			if entry["msg"] != tt.wantMsg {
				t.Errorf("msg = %v, want %q", entry["msg"], tt.wantMsg)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %q", entry["level"], tt.wantLevel)
			}
			if entry["operation"] != testOperation {
				t.Errorf("operation = %v", entry["operation"])
			}
		})
	}
}

func TestAuditLogger_Config(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelDebug)
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{
		Enabled:       true,
		IncludeParams: true,
		LogLevel:      "debug",
	})

	al.LogInvocation(NewInvocation(testOperation).WithParams(map[string]any{"dealId": 7}).CompleteSuccess())

	entry := decodeLine(t, buf)
	if entry["level"] != "DEBUG" {
		t.Errorf("level = %v, want DEBUG", entry["level"])
	}
	if _, ok := entry["params"]; !ok {
		t.Error("expected params in entry")
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelDebug)
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	al.LogInvocation(NewInvocation(testOperation).CompleteSuccess())
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}

	al.SetEnabled(true)
	al.LogInvocation(NewInvocation(testOperation).CompleteSuccess())
	if buf.Len() == 0 {
		t.Error("expected output after enabling")
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var al *AuditLogger
	al.LogInvocation(NewInvocation(testOperation))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
