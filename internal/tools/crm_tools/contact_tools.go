package crm_tools

import (
	"context"
	"strconv"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/schema"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/tools/common"
)

type getPersonArgs struct {
	PersonID int64 `json:"personId"`
}

type getCompanyArgs struct {
	CompanyID int64 `json:"companyId"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func registerContactTools(reg *dispatch.Registry, sc *server.ServerContext) error {
	listPersons := dispatch.Object("list-persons",
		"List contact persons, optionally by name or company",
		common.ListSchema(
			schema.String("name", schema.Description("Match on person name")),
			schema.Integer("companyId", schema.Minimum(1), schema.Description("Only persons of this company")),
		),
		func(ctx context.Context, p schema.Params) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.ListPersons(ctx, common.BuildQuery(p, common.FilterName, common.FilterCompanyID))
		})

	getPerson := dispatch.Named("get-person",
		"Get a single person by id",
		schema.MustObject(
			schema.Integer("personId", schema.Required(), schema.Minimum(1), schema.Description("Person id")),
		),
		func(ctx context.Context, args getPersonArgs) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.GetPerson(ctx, args.PersonID)
		})

	listCompanies := dispatch.Object("list-companies",
		"List companies, optionally by name",
		common.ListSchema(
			schema.String("name", schema.Description("Match on company name")),
		),
		func(ctx context.Context, p schema.Params) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.ListCompanies(ctx, common.BuildQuery(p, common.FilterName))
		})

	getCompany := dispatch.Named("get-company",
		"Get a single company by id",
		schema.MustObject(
			schema.Integer("companyId", schema.Required(), schema.Minimum(1), schema.Description("Company id")),
		),
		func(ctx context.Context, args getCompanyArgs) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.GetCompany(ctx, args.CompanyID)
		})

	listUsers := dispatch.Object("list-users",
		"List users of the CRM account",
		common.ListSchema(),
		func(ctx context.Context, p schema.Params) (any, error) {
			client, err := common.Client(sc)
			if err != nil {
				return nil, err
			}
			return client.ListUsers(ctx, common.BuildQuery(p))
		})

	return registerAll(reg, listPersons, getPerson, listCompanies, getCompany, listUsers)
}
