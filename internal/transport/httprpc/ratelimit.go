package httprpc

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/teemow/crmgate/internal/dispatch"
)

const (
	// limiterIdleTTL is how long an unused client limiter is kept.
	limiterIdleTTL = 10 * time.Minute

	// limiterSweepInterval bounds how often idle limiters are collected.
	limiterSweepInterval = 5 * time.Minute
)

// RateLimitConfig configures per-client request limiting on /rpc and /ws.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests a client may make at once.
	Burst int

	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	// Only enable behind a proxy that sets them.
	TrustProxy bool
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client address.
type rateLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	if config.Burst < 1 {
		config.Burst = 1
	}
	return &rateLimiter{
		config:    config,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

// Allow reports whether key may make a request now.
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterSweepInterval {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// size returns the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// rateLimitMiddleware rejects requests over the client's budget with 429
// and an internal-error envelope, so RPC clients can still parse the body.
func rateLimitMiddleware(rl *rateLimiter, logger *slog.Logger, next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, rl.config.TrustProxy)
		if !rl.Allow(ip) {
			logger.Warn("rate limit exceeded",
				slog.String("client_ip", ip),
				slog.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "1")
			writeEnvelope(w, logger, http.StatusTooManyRequests,
				dispatch.NewError(nil, dispatch.CodeInternalError, "rate limit exceeded, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address. Proxy headers are only consulted
// when trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
