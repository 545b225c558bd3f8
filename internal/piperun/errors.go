package piperun

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError represents a failed Piperun API call.
type APIError struct {
	// Op is the request that failed, e.g. "GET /deals/42"
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is the error text reported by the API, if any.
	Message string

	// Err is the underlying transport or decoding error.
	Err error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		msg := e.Message
		if msg == "" {
			msg = strings.ToLower(http.StatusText(e.StatusCode))
		}
		return fmt.Sprintf("piperun %s: %d %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("piperun %s: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by an *APIError in err's
// chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorMessagePaths are tried in order against an error body.
var errorMessagePaths = []string{
	"message",
	"error.message",
	"error",
	"errors.0.message",
	"errors.0",
}

// errorMessage extracts a human readable message from an error response.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(truncate(string(body), 200))
	}
	for _, path := range errorMessagePaths {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
