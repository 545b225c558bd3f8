package httprpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/instrumentation"
	"github.com/teemow/crmgate/internal/logging"
	"github.com/teemow/crmgate/internal/server"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultMaxBodySize bounds a single envelope on either endpoint.
	DefaultMaxBodySize = 10 << 20

	// RPCPath, WebSocketPath and MCPPath are the mount points.
	RPCPath       = "/rpc"
	WebSocketPath = "/ws"
	MCPPath       = "/mcp"
)

// Server exposes a Dispatcher over HTTP and WebSocket.
type Server struct {
	dispatcher  *dispatch.Dispatcher
	metrics     *instrumentation.Metrics
	health      *server.HealthChecker
	mcpHandler  http.Handler
	logger      *slog.Logger
	maxBodySize int64
	upgrader    websocket.Upgrader
	limiter     *rateLimiter

	httpServer *http.Server
	listenAddr string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records HTTP request counts and durations.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealthChecker mounts /healthz, /readyz and /healthz/detailed.
func WithHealthChecker(h *server.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMCPHandler mounts an MCP streamable HTTP handler at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcpHandler = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithCheckOrigin sets the WebSocket origin check. The gorilla default
// rejects cross-origin upgrades.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// WithRateLimit limits /rpc and /ws per client address. A zero rate
// leaves the endpoints unlimited.
func WithRateLimit(config RateLimitConfig) Option {
	return func(s *Server) {
		if config.RequestsPerSecond > 0 {
			s.limiter = newRateLimiter(config)
		}
	}
}

// New creates a Server for d.
func New(d *dispatch.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:  d,
		logger:      slog.Default(),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "httprpc")
	return s
}

// Handler returns the full handler tree, traced with otelhttp and measured
// with the metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(RPCPath, rateLimitMiddleware(s.limiter, s.logger, http.HandlerFunc(s.handleRPC)))
	mux.Handle(WebSocketPath, rateLimitMiddleware(s.limiter, s.logger, http.HandlerFunc(s.handleWebSocket)))
	if s.mcpHandler != nil {
		mux.Handle(MCPPath, s.mcpHandler)
	}
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	return otelhttp.NewHandler(metricsMiddleware(s.metrics, mux), "crmgate.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	return s.StartWithReadySignal(addr, nil)
}

// StartWithReadySignal binds addr, closes ready once listening and serves
// until Shutdown. http.ErrServerClosed is not reported.
func (s *Server) StartWithReadySignal(addr string, ready chan<- struct{}) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listenAddr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("serving", slog.String("addr", s.listenAddr))
	if ready != nil {
		close(ready)
	}

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. WebSocket connections are hijacked
// and are not waited for; they end when their clients disconnect or the
// process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ListenAddr returns the bound address once started.
func (s *Server) ListenAddr() string {
	return s.listenAddr
}
