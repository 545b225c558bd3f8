package httprpc

import (
	"net/http"

	"github.com/felixge/httpsnoop"

	"github.com/teemow/crmgate/internal/instrumentation"
)

// metricsMiddleware records one http_requests_total sample per request.
// httpsnoop keeps the Hijacker interface the WebSocket upgrade needs.
func metricsMiddleware(m *instrumentation.Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snoop := httpsnoop.CaptureMetrics(next, w, r)
		m.RecordHTTPRequest(r.Context(), r.Method, instrumentation.NormalizeEndpoint(r.URL.Path), snoop.Code, snoop.Duration)
	})
}
