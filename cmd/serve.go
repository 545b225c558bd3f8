package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/crmgate/internal/instrumentation"
	"github.com/teemow/crmgate/internal/logging"
	"github.com/teemow/crmgate/internal/mcpbridge"
	"github.com/teemow/crmgate/internal/prompts"
	"github.com/teemow/crmgate/internal/resources"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/telemetry"
	"github.com/teemow/crmgate/internal/transport/httprpc"
	"github.com/teemow/crmgate/internal/transport/stdio"
)

// Supported transports.
const (
	transportStdio   = "stdio"
	transportHTTP    = "http"
	transportMCP     = "mcp"
	transportMCPHTTP = "mcp-http"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveOptions collects the serve command's flags.
type serveOptions struct {
	transport        string
	httpAddr         string
	yolo             bool
	debug            bool
	logFormat        string
	maxMetrics       int
	slowThreshold    time.Duration
	disableStreaming bool
	rateLimit        httprpc.RateLimitConfig
	metrics          MetricsConfig
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CRM gateway",
		Long: `Start the crmgate gateway in front of the Piperun CRM API.

Supports multiple transport types:
  - stdio: newline-delimited request envelopes on stdin/stdout (default)
  - http: POST /rpc, WebSocket /ws, MCP at /mcp and health endpoints
  - mcp: Model Context Protocol over stdio
  - mcp-http: Model Context Protocol over streamable HTTP

Safety Mode:
  By default, the gateway only registers read operations.
  Use --yolo to enable update-deal.

Configuration:
  PIPERUN_API_TOKEN   API token (required for CRM operations)
  PIPERUN_API_URL     API root (default: https://api.pipe.run/v1)
  PIPERUN_TIMEOUT     per-request timeout (default: 30s)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadServeEnvVars(cmd, &opts)
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.transport, "transport", "t", transportStdio, "Transport type: stdio, http, mcp or mcp-http")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", httprpc.DefaultAddr, "HTTP listen address (http and mcp-http transports)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable write operations (update-deal)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format: text or json. Logs always go to stderr.")
	cmd.Flags().IntVar(&opts.maxMetrics, "max-metrics", telemetry.DefaultMaxMetrics, "Number of finished operations kept in telemetry history. Can also use TELEMETRY_MAX_METRICS env var.")
	cmd.Flags().DurationVar(&opts.slowThreshold, "slow-threshold", telemetry.DefaultSlowThreshold, "Log operations slower than this; 0 disables. Can also use TELEMETRY_SLOW_THRESHOLD env var.")
	cmd.Flags().BoolVar(&opts.disableStreaming, "disable-streaming", false, "Disable SSE streaming on the MCP HTTP endpoint")

	// Rate limiting applies to /rpc and /ws on the http transport
	cmd.Flags().Float64Var(&opts.rateLimit.RequestsPerSecond, "rate-limit", 0, "Requests per second allowed per client IP; 0 disables")
	cmd.Flags().IntVar(&opts.rateLimit.Burst, "rate-limit-burst", 20, "Requests a client may burst above the rate limit")
	cmd.Flags().BoolVar(&opts.rateLimit.TrustProxy, "trust-proxy", false, "Use X-Forwarded-For and X-Real-IP for the client address")

	// Metrics server flags
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars applies environment variables to flags that were not
// set explicitly.
func loadServeEnvVars(cmd *cobra.Command, opts *serveOptions) {
	defaults := telemetry.DefaultConfig()
	if !cmd.Flags().Changed("max-metrics") {
		opts.maxMetrics = defaults.MaxMetrics
	}
	if !cmd.Flags().Changed("slow-threshold") {
		opts.slowThreshold = defaults.SlowThreshold
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			opts.metrics.Enabled = v == "true"
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			opts.metrics.Addr = addr
		}
	}
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(os.Stderr, opts.debug, opts.logFormat)
	slog.SetDefault(logger)

	if err := validateTransport(opts.transport); err != nil {
		return err
	}
	gw, err := buildGateway(ctx, gatewayOptions{
		logger:     logger,
		transport:  opts.transport,
		readOnly:   !opts.yolo,
		instrument: true,
		telemetry: telemetry.Config{
			MaxMetrics:    opts.maxMetrics,
			SlowThreshold: opts.slowThreshold,
		},
	})
	if err != nil {
		return err
	}
	defer gw.Close(ctx)

	if opts.yolo {
		logger.Warn("write operations enabled (--yolo)")
	} else {
		logger.Info("starting in read-only mode (use --yolo to enable write operations)")
	}

	// The metrics server has its own port; stdio transports still get one
	// so scrapes work when the gateway runs as a sidecar.
	if opts.metrics.Enabled && gw.provider.Enabled() && gw.provider.PrometheusHandler() != nil {
		metricsServer, err := startMetricsServer(opts.metrics.Addr, gw)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	switch opts.transport {
	case transportStdio:
		return stdio.New(gw.dispatcher, os.Stdin, os.Stdout, stdio.WithLogger(logger)).Serve(ctx)

	case transportHTTP:
		mcpSrv, err := newMCPServer(gw)
		if err != nil {
			return err
		}
		srv := httprpc.New(gw.dispatcher,
			httprpc.WithLogger(logger),
			httprpc.WithMetrics(gw.sc.Metrics()),
			httprpc.WithHealthChecker(gw.health),
			httprpc.WithMCPHandler(newStreamableHTTP(mcpSrv, opts.disableStreaming)),
			httprpc.WithRateLimit(opts.rateLimit),
		)
		return runHTTPServer(ctx, gw, opts.httpAddr, srv.StartWithReadySignal, srv.Shutdown)

	case transportMCP:
		mcpSrv, err := newMCPServer(gw)
		if err != nil {
			return err
		}
		return runMCPStdio(ctx, mcpSrv)

	case transportMCPHTTP:
		mcpSrv, err := newMCPServer(gw)
		if err != nil {
			return err
		}
		streamable := newStreamableHTTP(mcpSrv, opts.disableStreaming)
		start := func(addr string, ready chan<- struct{}) error {
			close(ready)
			return streamable.Start(addr)
		}
		return runHTTPServer(ctx, gw, opts.httpAddr, start, streamable.Shutdown)
	}
	return nil
}

// checkStdoutExporters rejects telemetry exporters that would write into the
// response stream of a stdio transport.
func checkStdoutExporters(transport string, cfg instrumentation.Config) error {
	if transport != transportStdio && transport != transportMCP {
		return nil
	}
	if !cfg.Enabled {
		return nil
	}
	if cfg.MetricsExporter == instrumentation.ExporterStdout {
		return fmt.Errorf("the stdout metrics exporter cannot be used with the %s transport", transport)
	}
	if cfg.TracingExporter == instrumentation.ExporterStdout {
		return fmt.Errorf("the stdout tracing exporter cannot be used with the %s transport", transport)
	}
	return nil
}

func validateTransport(transport string) error {
	switch transport {
	case transportStdio, transportHTTP, transportMCP, transportMCPHTTP:
		return nil
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, http, mcp, mcp-http)", transport)
	}
}

func newMCPServer(gw *gateway) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpbridge.NewMCPServer(gw.dispatcher, version)
	if err := resources.RegisterCRMResources(mcpSrv, gw.sc); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}
	prompts.RegisterDealPrompts(mcpSrv)
	return mcpSrv, nil
}

func newStreamableHTTP(mcpSrv *mcpserver.MCPServer, disableStreaming bool) *mcpserver.StreamableHTTPServer {
	return mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(httprpc.MCPPath),
		mcpserver.WithDisableStreaming(disableStreaming),
	)
}

func startMetricsServer(addr string, gw *gateway) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: gw.provider,
		Health:                  gw.health,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		slog.Info("metrics server started", slog.String("addr", metricsServer.ListenAddr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

// runHTTPServer serves until ctx is cancelled, a shutdown request arrives
// or the server fails.
func runHTTPServer(
	ctx context.Context,
	gw *gateway,
	addr string,
	start func(addr string, ready chan<- struct{}) error,
	shutdown func(ctx context.Context) error,
) error {
	ready := make(chan struct{})
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := start(addr, ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ready:
		slog.Info("HTTP server started", slog.String("addr", addr))
	case err := <-serverDone:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping HTTP server")
	case <-gw.dispatcher.Done():
		slog.Info("shutdown requested, stopping HTTP server")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		return nil
	}

	gw.health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	slog.Info("HTTP server gracefully stopped")
	return nil
}

func runMCPStdio(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	stdioServer := mcpserver.NewStdioServer(mcpSrv)
	stdioServer.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))

	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
