package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/mcpbridge"
	"github.com/teemow/crmgate/internal/telemetry"
)

// Documentation categories, in output order.
const (
	categoryDeals     = "Deals"
	categoryPipelines = "Pipelines & Products"
	categoryContacts  = "Contacts"
	categoryGateway   = "Gateway"
)

var docCategories = []string{categoryDeals, categoryPipelines, categoryContacts, categoryGateway}

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate operation documentation",
		Long: `Generate markdown documentation for every gateway operation.
The operations are read from the registry, so the reference always matches
the schemas the dispatcher validates against. Write operations are included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd.Context(), outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(ctx context.Context, outputFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	gw, err := buildGateway(ctx, gatewayOptions{
		logger:    slog.New(slog.DiscardHandler),
		readOnly:  false,
		offline:   true,
		telemetry: telemetry.Config{MaxMetrics: telemetry.DefaultMaxMetrics},
	})
	if err != nil {
		return err
	}
	defer gw.Close(ctx)

	markdown := generateOperationsMarkdown(gw.dispatcher.Registry().Operations())

	if outputFile == "" {
		_, err := io.WriteString(os.Stdout, markdown)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	return nil
}

func generateOperationsMarkdown(ops []dispatch.Operation) string {
	var sb strings.Builder

	sb.WriteString("# Operations Reference\n\n")
	sb.WriteString("Every operation below can be called through any crmgate transport. ")
	sb.WriteString("Requests use the envelope `{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"<name>\",\"params\":{...}}`.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the operation registry.\n\n")

	byCategory := groupOperationsByCategory(ops)

	sb.WriteString("## Table of Contents\n\n")
	for _, category := range docCategories {
		if len(byCategory[category]) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, categoryAnchor(category))
	}
	sb.WriteString("\n")

	for _, category := range docCategories {
		categoryOps := byCategory[category]
		if len(categoryOps) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", category)
		for _, op := range categoryOps {
			sb.WriteString(generateOperationMarkdown(op))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// groupOperationsByCategory keeps registration order within a category.
func groupOperationsByCategory(ops []dispatch.Operation) map[string][]dispatch.Operation {
	categories := make(map[string][]dispatch.Operation)
	for _, op := range ops {
		category := categoryForOperation(op.Name)
		categories[category] = append(categories[category], op)
	}
	return categories
}

func categoryForOperation(name string) string {
	_, noun, found := strings.Cut(name, "-")
	if !found {
		return categoryGateway
	}
	switch noun {
	case "deal", "deals":
		return categoryDeals
	case "pipeline", "pipelines", "stages", "products":
		return categoryPipelines
	case "person", "persons", "company", "companies", "users":
		return categoryContacts
	default:
		return categoryGateway
	}
}

func categoryAnchor(category string) string {
	anchor := strings.ToLower(category)
	anchor = strings.ReplaceAll(anchor, "&", "")
	return strings.Join(strings.Fields(anchor), "-")
}

func generateOperationMarkdown(op dispatch.Operation) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", op.Name)
	fmt.Fprintf(&sb, "_%s_", mcpbridge.Title(op.Name))
	if !op.ReadOnly {
		sb.WriteString(" (write operation, requires `--yolo`)")
	}
	sb.WriteString("\n\n")

	if op.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", op.Description)
	}

	if op.Schema == nil {
		return sb.String()
	}
	names := op.Schema.PropertyNames()
	if len(names) == 0 {
		return sb.String()
	}

	required := make(map[string]bool)
	for _, name := range op.Schema.Required() {
		required[name] = true
	}

	props := gjson.GetBytes(op.Schema.JSON(), "properties")
	sb.WriteString("**Arguments:**\n")
	for _, name := range names {
		prop := props.Get(gjson.Escape(name))

		requiredStr := "optional"
		if required[name] {
			requiredStr = "required"
		}
		propType := prop.Get("type").String()
		if propType == "" {
			propType = "any"
		}

		fmt.Fprintf(&sb, "- `%s` (%s, %s): ", name, propType, requiredStr)
		if desc := prop.Get("description").String(); desc != "" {
			sb.WriteString(desc)
		} else {
			fmt.Fprintf(&sb, "%s parameter", propType)
		}
		if def := prop.Get("default"); def.Exists() {
			fmt.Fprintf(&sb, " Default: `%s`.", def.Raw)
		}
		if enum := prop.Get("enum"); enum.IsArray() {
			values := make([]string, 0, len(enum.Array()))
			for _, v := range enum.Array() {
				values = append(values, "`"+v.String()+"`")
			}
			fmt.Fprintf(&sb, " One of: %s.", strings.Join(values, ", "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
