package httprpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/crmgate/internal/dispatch"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "clients have separate budgets")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "one token refilled")
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{RequestsPerSecond: 5, Burst: 5})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	require.Equal(t, 2, rl.size())

	now = now.Add(limiterIdleTTL + time.Minute)
	rl.Allow("10.0.0.3")
	assert.Equal(t, 1, rl.size())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "192.0.2.7:51234", nil, false, "192.0.2.7"},
		{"ipv6 remote addr", "[2001:db8::1]:443", nil, false, "2001:db8::1"},
		{"proxy headers ignored", "192.0.2.7:1", map[string]string{"X-Forwarded-For": "198.51.100.1"}, false, "192.0.2.7"},
		{"forwarded for", "192.0.2.7:1", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, true, "198.51.100.1"},
		{"real ip", "192.0.2.7:1", map[string]string{"X-Real-IP": "198.51.100.2"}, true, "198.51.100.2"},
		{"no port", "192.0.2.7", nil, false, "192.0.2.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, RPCPath, nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r, tt.trustProxy))
		})
	}
}

func TestRPC_RateLimited(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}))
	body := `{"id":1,"method":"get-deal","params":{"dealId":5}}`

	status, resp := postRPC(t, srv.URL, body)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	httpResp, err := http.Post(srv.URL+RPCPath, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer httpResp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, httpResp.StatusCode)
	assert.Equal(t, "1", httpResp.Header.Get("Retry-After"))

	var limited dispatch.Response
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&limited))
	require.NotNil(t, limited.Error)
	assert.Equal(t, dispatch.CodeInternalError, limited.Error.Code)
	assert.JSONEq(t, `null`, string(limited.ID))
}

func TestRPC_RateLimitDisabled(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(RateLimitConfig{}))
	for range 5 {
		status, _ := postRPC(t, srv.URL, `{"id":1,"method":"get-deal","params":{"dealId":5}}`)
		assert.Equal(t, http.StatusOK, status)
	}
}
