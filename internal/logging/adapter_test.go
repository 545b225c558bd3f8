package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewSlogAdapter_WithNil(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	if adapter == nil {
		t.Fatal("NewSlogAdapter returned nil")
	}
	if adapter.logger == nil {
		t.Error("adapter.logger should not be nil when created with nil")
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewSlogAdapter(logger)

	adapter.Debug("debug message", "key", "value")
	adapter.Info("info message")
	adapter.Warn("warn message", CorrelationID("x-1"))
	adapter.Error("error message")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "debug message", "key=value",
		"level=INFO", "info message",
		"level=WARN", "correlation_id=x-1",
		"level=ERROR", "error message",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogAdapter_Logger(t *testing.T) {
	logger := slog.Default()
	adapter := NewSlogAdapter(logger)
	if adapter.Logger() != logger {
		t.Error("Logger() should return the underlying logger")
	}
}

func TestDiscard(t *testing.T) {
	// Should not panic
	Discard().Error("dropped", "key", "value")
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = (*SlogAdapter)(nil)
}
