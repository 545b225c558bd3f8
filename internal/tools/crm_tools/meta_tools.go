package crm_tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/telemetry"
	"github.com/teemow/crmgate/internal/tools/common"
)

// StatusResult is returned by check-status.
type StatusResult struct {
	Status  string `json:"status"`
	BaseURL string `json:"baseUrl"`
	Latency string `json:"latency"`
}

// StatsResult is returned by server-stats.
type StatsResult struct {
	Uptime     string          `json:"uptime"`
	MaxMetrics int             `json:"maxMetrics"`
	Lifetime   telemetry.Stats `json:"lifetime"`
	Window     telemetry.Stats `json:"window"`
}

// OperationInfo describes one registered operation in list-operations.
type OperationInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        string          `json:"kind"`
	ReadOnly    bool            `json:"readOnly"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// RegisterMetaTools registers the operations that report on the gateway
// itself. health may be nil, in which case a checker over sc is used.
func RegisterMetaTools(reg *dispatch.Registry, sc *server.ServerContext, health *server.HealthChecker) error {
	if health == nil {
		health = server.NewHealthChecker(sc)
	}

	checkStatus := dispatch.NoArgs("check-status",
		"Verify the CRM API is reachable with the configured token",
		nil,
		func(ctx context.Context) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			start := time.Now()
			if err := client.Ping(ctx); err != nil {
				return nil, err
			}
			return StatusResult{
				Status:  "ok",
				BaseURL: client.BaseURL(),
				Latency: time.Since(start).String(),
			}, nil
		})

	serverStats := dispatch.NoArgs("server-stats",
		"Operation counts, success rate and durations since start and over recent history",
		nil,
		func(context.Context) (any, error) {
			rec := sc.Recorder()
			return StatsResult{
				Uptime:     sc.Uptime().Truncate(time.Second).String(),
				MaxMetrics: rec.MaxMetrics(),
				Lifetime:   rec.Stats(),
				Window:     rec.WindowStats(),
			}, nil
		})

	checkHealth := dispatch.NoArgs("check-health",
		"Readiness checks, a live CRM probe and the number of in-flight operations",
		nil,
		func(ctx context.Context) (any, error) {
			return health.Report(ctx, true), nil
		})

	listOperations := dispatch.NoArgs("list-operations",
		"List every registered operation with its calling convention and input schema",
		nil,
		func(context.Context) (any, error) {
			ops := reg.Operations()
			infos := make([]OperationInfo, 0, len(ops))
			for _, op := range ops {
				infos = append(infos, OperationInfo{
					Name:        op.Name,
					Description: op.Description,
					Kind:        op.Kind.String(),
					ReadOnly:    op.ReadOnly,
					InputSchema: op.Schema.JSON(),
				})
			}
			return infos, nil
		})

	return registerAll(reg, checkStatus, serverStats, checkHealth, listOperations)
}
