package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/server"
	"github.com/teemow/crmgate/internal/tools/common"
)

const (
	// DealURIPrefix prefixes deal resource URIs.
	DealURIPrefix = "piperun://deals/"
	// DealURITemplate is the RFC 6570 template for deals.
	DealURITemplate = DealURIPrefix + "{dealId}"
	// PipelineURIPrefix prefixes pipeline resource URIs.
	PipelineURIPrefix = "piperun://pipelines/"
	// PipelineURITemplate is the RFC 6570 template for pipelines.
	PipelineURITemplate = PipelineURIPrefix + "{pipelineId}"
	// PipelineStagesURITemplate lists the stages of one pipeline.
	PipelineStagesURITemplate = PipelineURIPrefix + "{pipelineId}" + stagesSuffix
	// PersonURIPrefix prefixes contact person resource URIs.
	PersonURIPrefix = "piperun://persons/"
	// PersonURITemplate is the RFC 6570 template for contact persons.
	PersonURITemplate = PersonURIPrefix + "{personId}"
	// CompanyURIPrefix prefixes company resource URIs.
	CompanyURIPrefix = "piperun://companies/"
	// CompanyURITemplate is the RFC 6570 template for companies.
	CompanyURITemplate = CompanyURIPrefix + "{companyId}"

	// Collection resources serve the first page of their list.
	PipelinesURI = "piperun://pipelines"
	StagesURI    = "piperun://stages"
	PersonsURI   = "piperun://persons"
	CompaniesURI = "piperun://companies"
	ProductsURI  = "piperun://products"

	// StatsURI is the telemetry statistics resource.
	StatsURI = "crmgate://telemetry/stats"

	// ListPageSize is how many records a collection resource returns.
	ListPageSize = 10

	stagesSuffix = "/stages"
	mimeJSON     = "application/json"
)

// recordTemplate is a URI template resolving to a single CRM record.
type recordTemplate struct {
	template    string
	prefix      string
	name        string
	description string
	fetch       func(c *piperun.Client, ctx context.Context, id int64) (json.RawMessage, error)
}

var recordTemplates = []recordTemplate{
	{DealURITemplate, DealURIPrefix, "Piperun Deal", "A single deal from the Piperun CRM", (*piperun.Client).GetDeal},
	{PipelineURITemplate, PipelineURIPrefix, "Piperun Pipeline", "A sales pipeline", (*piperun.Client).GetPipeline},
	{PersonURITemplate, PersonURIPrefix, "Piperun Person", "A contact person", (*piperun.Client).GetPerson},
	{CompanyURITemplate, CompanyURIPrefix, "Piperun Company", "A contact company", (*piperun.Client).GetCompany},
}

// listResource is a fixed URI resolving to the first page of a collection.
type listResource struct {
	uri         string
	name        string
	description string
	fetch       func(c *piperun.Client, ctx context.Context, q piperun.Query) (*piperun.List, error)
}

var listResources = []listResource{
	{PipelinesURI, "Piperun Pipelines", "Sales pipelines", (*piperun.Client).ListPipelines},
	{StagesURI, "Piperun Stages", "Stages across all pipelines", (*piperun.Client).ListStages},
	{PersonsURI, "Piperun Persons", "Contact persons", (*piperun.Client).ListPersons},
	{CompaniesURI, "Piperun Companies", "Contact companies", (*piperun.Client).ListCompanies},
	{ProductsURI, "Piperun Products", "Products in the catalogue", (*piperun.Client).ListProducts},
}

// RegisterCRMResources registers the CRM record templates, the collection
// resources and the telemetry statistics resource.
func RegisterCRMResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	for _, rt := range recordTemplates {
		template := mcp.NewResourceTemplate(
			rt.template,
			rt.name,
			mcp.WithTemplateDescription(rt.description),
			mcp.WithTemplateMIMEType(mimeJSON),
		)
		s.AddResourceTemplate(template, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return handleRecord(ctx, request, sc, rt)
		})
	}

	stagesTemplate := mcp.NewResourceTemplate(
		PipelineStagesURITemplate,
		"Piperun Pipeline Stages",
		mcp.WithTemplateDescription("The stages of one sales pipeline"),
		mcp.WithTemplateMIMEType(mimeJSON),
	)
	s.AddResourceTemplate(stagesTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handlePipelineStages(ctx, request, sc)
	})

	for _, lr := range listResources {
		resource := mcp.NewResource(
			lr.uri,
			lr.name,
			mcp.WithResourceDescription(lr.description),
			mcp.WithMIMEType(mimeJSON),
		)
		s.AddResource(resource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return handleList(ctx, request, sc, lr.fetch, piperun.Query{Page: 1, Show: ListPageSize})
		})
	}

	statsResource := mcp.NewResource(
		StatsURI,
		"Gateway Telemetry",
		mcp.WithResourceDescription("Operation counts, success rate and durations recorded by this gateway"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(statsResource, func(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleStats(request, sc)
	})

	return nil
}

// recordID extracts the id that follows prefix in uri.
func recordID(uri, prefix string) (int64, error) {
	raw, ok := strings.CutPrefix(uri, prefix)
	if !ok || raw == "" {
		return 0, fmt.Errorf("not a %s URI: %s", prefix, uri)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q in %s", raw, uri)
	}
	return id, nil
}

func handleRecord(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext, rt recordTemplate) ([]mcp.ResourceContents, error) {
	id, err := recordID(request.Params.URI, rt.prefix)
	if err != nil {
		return nil, err
	}

	client, err := common.Client(sc)
	if err != nil {
		return nil, err
	}

	record, err := rt.fetch(client, ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", request.Params.URI, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: mimeJSON,
			Text:     string(record),
		},
	}, nil
}

func handlePipelineStages(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	uri, ok := strings.CutSuffix(request.Params.URI, stagesSuffix)
	if !ok {
		return nil, fmt.Errorf("not a pipeline stages URI: %s", request.Params.URI)
	}
	pipelineID, err := recordID(uri, PipelineURIPrefix)
	if err != nil {
		return nil, err
	}

	q := piperun.Query{
		Page:    1,
		Show:    ListPageSize,
		Filters: url.Values{"pipeline_id": {strconv.FormatInt(pipelineID, 10)}},
	}
	return handleList(ctx, request, sc, (*piperun.Client).ListStages, q)
}

func handleList(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext, fetch func(*piperun.Client, context.Context, piperun.Query) (*piperun.List, error), q piperun.Query) ([]mcp.ResourceContents, error) {
	client, err := common.Client(sc)
	if err != nil {
		return nil, err
	}

	list, err := fetch(client, ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", request.Params.URI, err)
	}

	jsonData, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", request.Params.URI, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: mimeJSON,
			Text:     string(jsonData),
		},
	}, nil
}

func handleStats(request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	rec := sc.Recorder()
	data := map[string]any{
		"uptime":     sc.Uptime().Truncate(time.Second).String(),
		"lifetime":   rec.Stats(),
		"window":     rec.WindowStats(),
		"maxMetrics": rec.MaxMetrics(),
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal telemetry stats: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: mimeJSON,
			Text:     string(jsonData),
		},
	}, nil
}
