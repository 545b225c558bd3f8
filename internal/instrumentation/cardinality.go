package instrumentation

import (
	"strconv"
	"strings"
)

// Cardinality management helpers for metrics.
//
// CRM paths embed record ids (/deals/123). Recording them verbatim would
// create one time series per record, so endpoints are normalized before
// they become label values.

// idPlaceholder replaces numeric path segments.
const idPlaceholder = ":id"

// NormalizeEndpoint replaces numeric path segments with ":id" and drops any
// query string.
//
// Example:
//
//	NormalizeEndpoint("/deals/123")          // "/deals/:id"
//	NormalizeEndpoint("/v1/stages?page=2")   // "/v1/stages"
//	NormalizeEndpoint("")                    // "unknown"
func NormalizeEndpoint(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return StatusUnknown
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
			segments[i] = idPlaceholder
		}
	}
	return strings.Join(segments, "/")
}

// StatusCodeLabel converts an HTTP status code into a label value. Zero
// (no response) maps to "error".
func StatusCodeLabel(code int) string {
	if code <= 0 {
		return StatusError
	}
	return strconv.Itoa(code)
}
