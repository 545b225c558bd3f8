package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/instrumentation"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/telemetry"
)

func newOfflineGateway(t *testing.T, readOnly bool) *gateway {
	t.Helper()
	gw, err := buildGateway(context.Background(), gatewayOptions{
		logger:    slog.New(slog.DiscardHandler),
		readOnly:  readOnly,
		offline:   true,
		telemetry: telemetry.Config{MaxMetrics: 10},
	})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close(context.Background()) })
	return gw
}

func TestCheckStdoutExporters(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		metrics   string
		tracing   string
		enabled   bool
		wantErr   string
	}{
		{"stdio with prometheus", transportStdio, instrumentation.ExporterPrometheus, instrumentation.ExporterNone, true, ""},
		{"stdio with stdout metrics", transportStdio, instrumentation.ExporterStdout, instrumentation.ExporterNone, true, "stdout metrics exporter"},
		{"stdio with stdout tracing", transportStdio, instrumentation.ExporterPrometheus, instrumentation.ExporterStdout, true, "stdout tracing exporter"},
		{"mcp with stdout tracing", transportMCP, instrumentation.ExporterPrometheus, instrumentation.ExporterStdout, true, "mcp transport"},
		{"http with stdout tracing", transportHTTP, instrumentation.ExporterStdout, instrumentation.ExporterStdout, true, ""},
		{"instrumentation disabled", transportStdio, instrumentation.ExporterStdout, instrumentation.ExporterStdout, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := instrumentation.Config{
				Enabled:         tt.enabled,
				MetricsExporter: tt.metrics,
				TracingExporter: tt.tracing,
			}
			err := checkStdoutExporters(tt.transport, cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuildGateway_RejectsStdoutTracingOnStdio(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "true")
	t.Setenv("METRICS_EXPORTER", instrumentation.ExporterPrometheus)
	t.Setenv("TRACING_EXPORTER", instrumentation.ExporterStdout)

	_, err := buildGateway(context.Background(), gatewayOptions{
		logger:     slog.New(slog.DiscardHandler),
		offline:    true,
		instrument: true,
		transport:  transportStdio,
		telemetry:  telemetry.Config{MaxMetrics: 10},
	})
	assert.ErrorContains(t, err, "stdout tracing exporter")
}

func TestNewMCPServer_RegistersPromptsAndResources(t *testing.T) {
	gw := newOfflineGateway(t, true)
	mcpSrv, err := newMCPServer(gw)
	require.NoError(t, err)

	handle := func(method string) gjson.Result {
		msg := `{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":{}}`
		raw, err := json.Marshal(mcpSrv.HandleMessage(context.Background(), json.RawMessage(msg)))
		require.NoError(t, err)
		return gjson.ParseBytes(raw)
	}

	promptList := handle("prompts/list")
	require.False(t, promptList.Get("error").Exists(), promptList.Raw)
	assert.Equal(t, int64(2), promptList.Get("result.prompts.#").Int())

	templates := handle("resources/templates/list")
	require.False(t, templates.Get("error").Exists(), templates.Raw)
	assert.True(t, templates.Get(`result.resourceTemplates.#(uriTemplate=="piperun://persons/{personId}")`).Exists(), templates.Raw)

	resourceList := handle("resources/list")
	require.False(t, resourceList.Get("error").Exists(), resourceList.Raw)
	assert.True(t, resourceList.Get(`result.resources.#(uri=="piperun://products")`).Exists(), resourceList.Raw)
}

func TestNewCRMClient_LogsMaskedToken(t *testing.T) {
	t.Setenv("PIPERUN_API_TOKEN", "s3cret-value")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client, err := newCRMClient(logger, nil)
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Contains(t, buf.String(), "[token:12 chars]")
	assert.NotContains(t, buf.String(), "s3cret-value")
}

func TestNewCRMClient_MissingTokenIsNotFatal(t *testing.T) {
	t.Setenv("PIPERUN_API_TOKEN", "")
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := newCRMClient(logger, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "PIPERUN_API_TOKEN is not set")
	assert.Contains(t, buf.String(), "<empty>")
}

func TestValidateTransport(t *testing.T) {
	for _, transport := range []string{transportStdio, transportHTTP, transportMCP, transportMCPHTTP} {
		assert.NoError(t, validateTransport(transport), transport)
	}

	err := validateTransport("carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestLoadServeEnvVars(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		wantMax     int
		wantEnabled bool
		wantAddr    string
	}{
		{
			name:        "defaults",
			wantMax:     telemetry.DefaultMaxMetrics,
			wantEnabled: true,
			wantAddr:    server.DefaultMetricsAddr,
		},
		{
			name:        "environment overrides",
			env:         map[string]string{"TELEMETRY_MAX_METRICS": "25", "METRICS_ENABLED": "false", "METRICS_ADDR": ":9191"},
			wantMax:     25,
			wantEnabled: false,
			wantAddr:    ":9191",
		},
		{
			name:        "flags win over environment",
			env:         map[string]string{"TELEMETRY_MAX_METRICS": "25", "METRICS_ADDR": ":9191"},
			args:        []string{"--max-metrics=7", "--metrics-addr=:9292"},
			wantMax:     7,
			wantEnabled: true,
			wantAddr:    ":9292",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"TELEMETRY_MAX_METRICS", "TELEMETRY_SLOW_THRESHOLD", "METRICS_ENABLED", "METRICS_ADDR"} {
				t.Setenv(key, tt.env[key])
			}

			cmd := newServeCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			var opts serveOptions
			opts.maxMetrics, _ = cmd.Flags().GetInt("max-metrics")
			opts.metrics.Enabled, _ = cmd.Flags().GetBool("metrics-enabled")
			opts.metrics.Addr, _ = cmd.Flags().GetString("metrics-addr")
			loadServeEnvVars(cmd, &opts)

			assert.Equal(t, tt.wantMax, opts.maxMetrics)
			assert.Equal(t, tt.wantEnabled, opts.metrics.Enabled)
			assert.Equal(t, tt.wantAddr, opts.metrics.Addr)
		})
	}
}

func TestBuildGateway_ReadOnlyHidesWrites(t *testing.T) {
	readOnly := newOfflineGateway(t, true)
	_, err := readOnly.dispatcher.Registry().Lookup("update-deal")
	assert.ErrorIs(t, err, dispatch.ErrMethodNotFound)

	writable := newOfflineGateway(t, false)
	op, err := writable.dispatcher.Registry().Lookup("update-deal")
	require.NoError(t, err)
	assert.False(t, op.ReadOnly)
}

func TestCategoryForOperation(t *testing.T) {
	tests := map[string]string{
		"list-deals":      categoryDeals,
		"update-deal":     categoryDeals,
		"get-pipeline":    categoryPipelines,
		"list-stages":     categoryPipelines,
		"list-products":   categoryPipelines,
		"get-company":     categoryContacts,
		"list-users":      categoryContacts,
		"server-stats":    categoryGateway,
		"list-operations": categoryGateway,
		"initialize":      categoryGateway,
	}
	for name, want := range tests {
		assert.Equal(t, want, categoryForOperation(name), name)
	}
}

func TestGenerateOperationsMarkdown(t *testing.T) {
	gw := newOfflineGateway(t, false)

	md := generateOperationsMarkdown(gw.dispatcher.Registry().Operations())

	assert.True(t, strings.HasPrefix(md, "# Operations Reference\n"))
	assert.Contains(t, md, "- [Pipelines & Products](#pipelines-products)")
	assert.Contains(t, md, "### get-deal\n")
	assert.Contains(t, md, "- `dealId` (integer, required)")
	assert.Contains(t, md, "One of: `open`, `won`, `lost`.")
	assert.Contains(t, md, "(write operation, requires `--yolo`)")

	// Categories appear in a fixed order.
	deals := strings.Index(md, "## Deals")
	gateway := strings.Index(md, "## Gateway")
	require.NotEqual(t, -1, deals)
	require.NotEqual(t, -1, gateway)
	assert.Less(t, deals, gateway)
}

func TestRunCall(t *testing.T) {
	gw := newOfflineGateway(t, true)

	t.Run("method with no params", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runCall(context.Background(), gw.dispatcher, nil, &out, []string{"list-operations"}))

		var resp dispatch.Response
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Nil(t, resp.Error)
		assert.Contains(t, string(resp.Result), `"list-deals"`)

		var id string
		require.NoError(t, json.Unmarshal(resp.ID, &id))
		assert.Len(t, id, 36, "request ids are UUIDs")
	})

	t.Run("envelope from stdin", func(t *testing.T) {
		var out bytes.Buffer
		in := strings.NewReader(`{"jsonrpc":"2.0","id":"abc","method":"initialize"}`)
		require.NoError(t, runCall(context.Background(), gw.dispatcher, in, &out, []string{stdinMarker}))
		assert.Contains(t, out.String(), `"id": "abc"`)
		assert.Contains(t, out.String(), dispatch.ProtocolVersion)
	})

	t.Run("error response is returned", func(t *testing.T) {
		var out bytes.Buffer
		err := runCall(context.Background(), gw.dispatcher, nil, &out, []string{"no-such-method"})

		var rpcErr *dispatch.Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, dispatch.CodeMethodNotFound, rpcErr.Code)
		assert.Contains(t, out.String(), `"code": -32601`)
	})

	t.Run("invalid params json", func(t *testing.T) {
		err := runCall(context.Background(), gw.dispatcher, nil, &bytes.Buffer{}, []string{"get-deal", "{nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "valid JSON")
	})

	t.Run("stdin with params", func(t *testing.T) {
		err := runCall(context.Background(), gw.dispatcher, strings.NewReader(`{}`), &bytes.Buffer{}, []string{stdinMarker, "{}"})
		require.Error(t, err)
	})
}

func TestVersionCmd(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "crmgate version 1.2.3")
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "call", "version", "generate-docs"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
