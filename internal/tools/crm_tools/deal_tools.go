package crm_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/schema"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/tools/batch"
	"github.com/teemow/crmgate/internal/tools/common"
)

// maxBatchDeals caps get-deals; each id is a separate CRM request.
const maxBatchDeals = 50

type getDealArgs struct {
	DealID int64 `json:"dealId"`
}

type getDealsArgs struct {
	DealIDs []int64 `json:"dealIds"`
}

type updateDealArgs struct {
	DealID   int64    `json:"dealId"`
	Title    *string  `json:"title"`
	Value    *float64 `json:"value"`
	StageID  *int64   `json:"stageId"`
	PersonID *int64   `json:"personId"`
	UserID   *int64   `json:"userId"`
}

// errNoDealFields is returned when update-deal carries nothing to change.
var errNoDealFields = errors.New("update-deal needs at least one of title, value, stageId, personId, userId")

// fields returns the CRM field names for the values that were supplied.
func (a updateDealArgs) fields() map[string]any {
	f := make(map[string]any)
	if a.Title != nil {
		f["title"] = *a.Title
	}
	if a.Value != nil {
		f["value"] = *a.Value
	}
	if a.StageID != nil {
		f["stage_id"] = *a.StageID
	}
	if a.PersonID != nil {
		f["person_id"] = *a.PersonID
	}
	if a.UserID != nil {
		f["user_id"] = *a.UserID
	}
	return f
}

var dealFilters = []common.Filter{
	common.FilterPipelineID,
	common.FilterStageID,
	common.FilterPersonID,
	common.FilterCompanyID,
	common.FilterUserID,
	common.FilterStatus,
	common.FilterTitle,
}

func registerDealTools(reg *dispatch.Registry, sc *server.ServerContext, readOnly bool) error {
	listDeals := dispatch.Object("list-deals",
		"List deals, optionally filtered by pipeline, stage, person, company, owner, status or title",
		common.ListSchema(
			schema.Integer("pipelineId", schema.Minimum(1), schema.Description("Only deals in this pipeline")),
			schema.Integer("stageId", schema.Minimum(1), schema.Description("Only deals in this stage")),
			schema.Integer("personId", schema.Minimum(1), schema.Description("Only deals for this person")),
			schema.Integer("companyId", schema.Minimum(1), schema.Description("Only deals for this company")),
			schema.Integer("userId", schema.Minimum(1), schema.Description("Only deals owned by this user")),
			schema.String("status", schema.Enum("open", "won", "lost"), schema.Description("Deal status")),
			schema.String("title", schema.Description("Match on deal title")),
		),
		func(ctx context.Context, p schema.Params) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.ListDeals(ctx, common.BuildQuery(p, dealFilters...))
		})

	getDeal := dispatch.Named("get-deal",
		"Get a single deal by id",
		schema.MustObject(
			schema.Integer("dealId", schema.Required(), schema.Minimum(1), schema.Description("Deal id")),
		),
		func(ctx context.Context, args getDealArgs) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.GetDeal(ctx, args.DealID)
		})

	getDeals := dispatch.Named("get-deals",
		"Get several deals by id. Each id reports its own success or error",
		schema.MustObject(
			schema.Array("dealIds", schema.Integer("", schema.Minimum(1)),
				schema.Required(), schema.MinItems(1), schema.MaxItems(maxBatchDeals),
				schema.Description("Deal ids to fetch")),
		),
		func(ctx context.Context, args getDealsArgs) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			results := batch.Process(ctx, batch.Unique(args.DealIDs), func(ctx context.Context, id int64) (json.RawMessage, error) {
				deal, err := client.GetDeal(ctx, id)
				if piperun.IsNotFound(err) {
					return nil, fmt.Errorf("deal %d not found: %w", id, err)
				}
				return deal, err
			})
			return batch.Summarize(results), nil
		})

	if err := registerAll(reg, listDeals, getDeal, getDeals); err != nil {
		return err
	}

	if readOnly {
		return nil
	}

	updateDeal := dispatch.Named("update-deal",
		"Update a deal's title, value, stage, person or owner",
		schema.MustObject(
			schema.Integer("dealId", schema.Required(), schema.Minimum(1), schema.Description("Deal id")),
			schema.String("title", schema.Description("New title")),
			schema.Number("value", schema.Minimum(0), schema.Description("New deal value")),
			schema.Integer("stageId", schema.Minimum(1), schema.Description("Move the deal to this stage")),
			schema.Integer("personId", schema.Minimum(1), schema.Description("Link the deal to this person")),
			schema.Integer("userId", schema.Minimum(1), schema.Description("Reassign the deal to this user")),
		),
		func(ctx context.Context, args updateDealArgs) (any, error) {
			fields := args.fields()
			if len(fields) == 0 {
				return nil, errNoDealFields
			}
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.UpdateDeal(ctx, args.DealID, fields)
		}).Mutating()

	return reg.Register(updateDeal)
}
