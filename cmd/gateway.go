package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/instrumentation"
	"github.com/teemow/crmgate/internal/logging"
	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/telemetry"
	"github.com/teemow/crmgate/internal/tools/crm_tools"
)

// gatewayOptions selects how much of the stack buildGateway wires.
type gatewayOptions struct {
	logger    *slog.Logger
	readOnly  bool
	telemetry telemetry.Config
	// transport is the serve transport, empty outside serve.
	transport string

	// instrument enables the OpenTelemetry provider.
	instrument bool
	// offline skips the CRM client entirely (generate-docs).
	offline bool
}

// gateway is the assembled process: recorder, CRM client, operations and
// the dispatcher that runs them.
type gateway struct {
	provider   *instrumentation.Provider
	recorder   *telemetry.Recorder
	sc         *server.ServerContext
	health     *server.HealthChecker
	dispatcher *dispatch.Dispatcher
}

func buildGateway(ctx context.Context, opts gatewayOptions) (*gateway, error) {
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if !opts.instrument {
		instrConfig.Enabled = false
	}
	if err := instrConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrumentation config: %w", err)
	}
	if err := checkStdoutExporters(opts.transport, instrConfig); err != nil {
		return nil, err
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	var audit *instrumentation.AuditLogger
	if provider.Enabled() {
		audit = instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)
	}

	if err := opts.telemetry.Validate(); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	recOpts := append(opts.telemetry.Options(),
		telemetry.WithLogger(logging.NewSlogAdapter(logger)),
		telemetry.WithObserver(instrumentation.NewTelemetryObserver(provider.Metrics(), audit)),
	)
	recorder := telemetry.NewRecorder(recOpts...)

	var client *piperun.Client
	if !opts.offline {
		client, err = newCRMClient(logger, provider.Metrics())
		if err != nil {
			_ = provider.Shutdown(ctx)
			return nil, err
		}
	}

	sc, err := server.NewServerContext(ctx, client, recorder)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	if provider.Enabled() {
		sc.SetMetrics(provider.Metrics())
		sc.SetAuditLogger(audit)
	}

	g := &gateway{
		provider: provider,
		recorder: recorder,
		sc:       sc,
		health:   server.NewHealthChecker(sc),
	}

	reg := dispatch.NewRegistry()
	if err := crm_tools.RegisterCRMTools(reg, sc, opts.readOnly); err != nil {
		g.Close(ctx)
		return nil, err
	}
	if err := crm_tools.RegisterMetaTools(reg, sc, g.health); err != nil {
		g.Close(ctx)
		return nil, fmt.Errorf("failed to register meta tools: %w", err)
	}

	logger.Debug("registered operations", "count", reg.Len(), "read_only", opts.readOnly)

	g.dispatcher = dispatch.New(reg, recorder,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(provider.Metrics()),
		dispatch.WithServerInfo(dispatch.ServerInfo{Name: "crmgate", Version: version}),
	)
	return g, nil
}

// newCRMClient builds the Piperun client from the environment. A missing
// token is logged, not fatal: the server starts and reports not ready.
func newCRMClient(logger *slog.Logger, metrics *instrumentation.Metrics) (*piperun.Client, error) {
	cfg := piperun.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		if !errors.Is(err, piperun.ErrMissingToken) {
			return nil, fmt.Errorf("invalid piperun config: %w", err)
		}
		logger.Warn("PIPERUN_API_TOKEN is not set; CRM operations will fail until it is configured")
	}
	logger.Debug("configuring piperun client",
		"base_url", cfg.BaseURL,
		"token", logging.SanitizeToken(cfg.Token))

	client, err := piperun.NewClient(cfg,
		piperun.WithMetrics(metrics),
		piperun.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create piperun client: %w", err)
	}
	return client, nil
}

// Close shuts down the server context and flushes telemetry.
func (g *gateway) Close(ctx context.Context) {
	g.health.SetReady(false)
	if err := g.sc.Shutdown(); err != nil {
		slog.Warn("server context shutdown failed", logging.Err(err))
	}
	if err := g.provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}
