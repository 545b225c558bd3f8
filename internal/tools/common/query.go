package common

import (
	"net/url"

	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/schema"
)

// Pagination defaults applied by the schema before a handler runs.
const (
	DefaultPage = 1
	DefaultShow = 100
	MaxShow     = 200
)

// Filter maps a camelCase operation param to the snake_case query
// parameter the CRM expects.
type Filter struct {
	Param string
	Query string
}

// Shared filters. Piperun names foreign keys <entity>_id.
var (
	FilterPipelineID = Filter{Param: "pipelineId", Query: "pipeline_id"}
	FilterStageID    = Filter{Param: "stageId", Query: "stage_id"}
	FilterPersonID   = Filter{Param: "personId", Query: "person_id"}
	FilterCompanyID  = Filter{Param: "companyId", Query: "company_id"}
	FilterUserID     = Filter{Param: "userId", Query: "user_id"}
	FilterStatus     = Filter{Param: "status", Query: "status"}
	FilterTitle      = Filter{Param: "title", Query: "title"}
	FilterName       = Filter{Param: "name", Query: "name"}
)

// PageProperties returns the page and show properties every list operation
// accepts.
func PageProperties() []schema.Property {
	return []schema.Property{
		schema.Integer("page",
			schema.Default(DefaultPage),
			schema.Minimum(1),
			schema.Description("Page number, starting at 1")),
		schema.Integer("show",
			schema.Default(DefaultShow),
			schema.Minimum(1),
			schema.Maximum(MaxShow),
			schema.Description("Records per page")),
	}
}

// ListSchema builds an object schema of the page properties plus extra.
func ListSchema(extra ...schema.Property) *schema.Schema {
	return schema.MustObject(append(PageProperties(), extra...)...)
}

// BuildQuery turns validated params into a CRM list query. Params absent
// from p are not sent.
func BuildQuery(p schema.Params, filters ...Filter) piperun.Query {
	q := piperun.Query{}
	if page, ok := p.Int("page"); ok {
		q.Page = page
	}
	if show, ok := p.Int("show"); ok {
		q.Show = show
	}
	for _, f := range filters {
		v, ok := p.Text(f.Param)
		if !ok || v == "" {
			continue
		}
		if q.Filters == nil {
			q.Filters = url.Values{}
		}
		q.Filters.Set(f.Query, v)
	}
	return q
}
