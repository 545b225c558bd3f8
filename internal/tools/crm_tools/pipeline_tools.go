package crm_tools

import (
	"context"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/schema"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/tools/common"
)

type getPipelineArgs struct {
	PipelineID int64 `json:"pipelineId"`
}

type listStagesArgs struct {
	PipelineID int64 `json:"pipelineId"`
	Page       int64 `json:"page"`
	Show       int64 `json:"show"`
}

func (a listStagesArgs) query() piperun.Query {
	q := piperun.Query{Page: a.Page, Show: a.Show}
	if a.PipelineID > 0 {
		q.Filters = map[string][]string{common.FilterPipelineID.Query: {formatID(a.PipelineID)}}
	}
	return q
}

func registerPipelineTools(reg *dispatch.Registry, sc *server.ServerContext) error {
	listPipelines := dispatch.Object("list-pipelines",
		"List sales pipelines",
		common.ListSchema(),
		func(ctx context.Context, p schema.Params) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.ListPipelines(ctx, common.BuildQuery(p))
		})

	getPipeline := dispatch.Named("get-pipeline",
		"Get a single pipeline by id",
		schema.MustObject(
			schema.Integer("pipelineId", schema.Required(), schema.Minimum(1), schema.Description("Pipeline id")),
		),
		func(ctx context.Context, args getPipelineArgs) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.GetPipeline(ctx, args.PipelineID)
		})

	listStages := dispatch.Named("list-stages",
		"List pipeline stages, optionally for one pipeline",
		common.ListSchema(
			schema.Integer("pipelineId", schema.Minimum(1), schema.Description("Only stages of this pipeline")),
		),
		func(ctx context.Context, args listStagesArgs) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.ListStages(ctx, args.query())
		})

	listProducts := dispatch.Object("list-products",
		"List products in the catalogue",
		common.ListSchema(
			schema.String("name", schema.Description("Match on product name")),
		),
		func(ctx context.Context, p schema.Params) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.ListProducts(ctx, common.BuildQuery(p, common.FilterName))
		})

	return registerAll(reg, listPipelines, getPipeline, listStages, listProducts)
}
