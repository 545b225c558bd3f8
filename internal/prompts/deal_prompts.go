package prompts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// AnalyzeDealPrompt asks for an analysis of one deal.
	AnalyzeDealPrompt = "analisar-negocio"
	// SummarizeDealsPrompt asks for a value-ordered summary of current deals.
	SummarizeDealsPrompt = "resumir-negocios"

	// highlightValue is the deal value above which summaries call a deal out.
	highlightValue = 10000.0

	defaultPage = 1
	defaultShow = 10
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// RegisterDealPrompts adds the deal prompts to s.
func RegisterDealPrompts(s *mcpserver.MCPServer) {
	s.AddPrompt(mcp.NewPrompt(AnalyzeDealPrompt,
		mcp.WithPromptDescription("Analyse one deal: its data, funnel stage, next steps, risks and opportunities"),
		mcp.WithArgument("dealId",
			mcp.ArgumentDescription("ID of the deal to analyse"),
			mcp.RequiredArgument(),
		),
	), handleAnalyzeDeal)

	s.AddPrompt(mcp.NewPrompt(SummarizeDealsPrompt,
		mcp.WithPromptDescription("Summarise current deals ordered by value, optionally within one pipeline and stage"),
		mcp.WithArgument("pipelineId", mcp.ArgumentDescription("Only deals in this pipeline")),
		mcp.WithArgument("stageId", mcp.ArgumentDescription("Only deals in this stage; needs pipelineId")),
		mcp.WithArgument("page", mcp.ArgumentDescription("Page to start from (default 1)")),
		mcp.WithArgument("show", mcp.ArgumentDescription("Deals per page (default 10)")),
	), handleSummarizeDeals)
}

func handleAnalyzeDeal(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	dealID, ok, err := idArgument(request.Params.Arguments, "dealId")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("dealId is required")
	}

	text := fmt.Sprintf(`Por favor, analise o negócio com ID %d e traga insights sobre:

1. Os dados principais do negócio
2. A etapa do funil em que ele está
3. Os próximos passos possíveis para avançar o negócio
4. Riscos ou oportunidades que você identificar

Use os recursos do Piperun para buscar todas as informações relevantes.`, dealID)

	return mcp.NewGetPromptResult(
		fmt.Sprintf("Análise do negócio %d", dealID),
		[]mcp.PromptMessage{mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text))},
	), nil
}

func handleSummarizeDeals(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := request.Params.Arguments
	pipelineID, hasPipeline, err := idArgument(args, "pipelineId")
	if err != nil {
		return nil, err
	}
	stageID, hasStage, err := idArgument(args, "stageId")
	if err != nil {
		return nil, err
	}
	page, hasPage, err := idArgument(args, "page")
	if err != nil {
		return nil, err
	}
	if !hasPage {
		page = defaultPage
	}
	show, hasShow, err := idArgument(args, "show")
	if err != nil {
		return nil, err
	}
	if !hasShow {
		show = defaultShow
	}

	var b strings.Builder
	b.WriteString("Por favor, gere um resumo dos negócios atuais")
	// A stage is only meaningful inside its pipeline.
	if hasPipeline {
		fmt.Fprintf(&b, " no funil com ID %d", pipelineID)
		if hasStage {
			fmt.Fprintf(&b, " e na etapa com ID %d", stageID)
		}
	}
	b.WriteString(`.

Para cada negócio, informe:
1. Nome do negócio
2. Valor
3. Etapa atual
4. Cliente associado
5. Data de criação

`)
	fmt.Fprintf(&b, "Ordene os negócios por valor, do maior para o menor, e destaque qualquer negócio com valor acima de %s.\n\n", formatBRL(highlightValue))
	fmt.Fprintf(&b, "Use os recursos e ferramentas do Piperun para buscar essas informações. Use paginação (página %d, com %d itens por página) conforme necessário.", page, show)

	return mcp.NewGetPromptResult(
		"Resumo dos negócios",
		[]mcp.PromptMessage{mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(b.String()))},
	), nil
}

// idArgument parses an optional positive integer argument.
func idArgument(args map[string]string, name string) (int64, bool, error) {
	raw := strings.TrimSpace(args[name])
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, false, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return n, true, nil
}

// formatBRL renders an amount in reais, e.g. R$ 10.000,00.
func formatBRL(v float64) string {
	return brl.Sprintf("R$ %.2f", v)
}
