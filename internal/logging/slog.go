package logging

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation     = "operation"
	KeyCorrelationID = "correlation_id"
	KeyMethod        = "method"
	KeyRequestID     = "request_id"
	KeyComponent     = "component"
	KeyDuration      = "duration"
	KeyStatus        = "status"
	KeyCode          = "code"
	KeyError         = "error"
	KeyEndpoint      = "endpoint"
)

// Status values for consistent logging.
// Duplicated from the instrumentation package, which imports logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Log formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// redactedQueryParams are stripped from URLs before they are logged.
var redactedQueryParams = []string{"api_token", "token"}

// New builds a logger writing to w. Debug enables the debug level.
// Unknown formats fall back to text.
func New(w io.Writer, debug bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// CorrelationID returns a slog attribute for a telemetry correlation id.
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// Method returns a slog attribute for an envelope method name.
func Method(method string) slog.Attr {
	return slog.String(KeyMethod, method)
}

// RequestID returns a slog attribute for a caller-supplied envelope id.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Duration returns a slog attribute for an elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Code returns a slog attribute for an envelope error code.
func Code(code int) slog.Attr {
	return slog.Int(KeyCode, code)
}

// Endpoint returns a slog attribute for a remote API path.
func Endpoint(path string) slog.Attr {
	return slog.String(KeyEndpoint, path)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// RedactURL returns u as a string with credential query parameters masked.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	changed := false
	for _, key := range redactedQueryParams {
		if q.Has(key) {
			q.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	redacted := *u
	redacted.RawQuery = q.Encode()
	return redacted.String()
}
