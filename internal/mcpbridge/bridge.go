// Package mcpbridge exposes registered operations as MCP tools. Every tool
// call goes through the Dispatcher, so validation, telemetry and error
// codes are the same as on the other transports.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/teemow/crmgate/internal/dispatch"
)

// ServerName is the MCP implementation name.
const ServerName = "crmgate"

// NewMCPServer creates an MCP server with tool and resource capabilities
// and registers every operation of d as a tool.
func NewMCPServer(d *dispatch.Dispatcher, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(ServerName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
	)
	RegisterTools(s, d)
	return s
}

// RegisterTools adds one MCP tool per registered operation.
func RegisterTools(s *mcpserver.MCPServer, d *dispatch.Dispatcher) {
	for _, op := range d.Registry().Operations() {
		s.AddTool(Tool(op), handler(d, op.Name))
	}
}

// Tool describes op as an MCP tool using its input schema verbatim.
func Tool(op dispatch.Operation) mcp.Tool {
	tool := mcp.NewToolWithRawSchema(op.Name, op.Description, op.Schema.JSON())
	tool.Annotations = mcp.ToolAnnotation{
		Title:           Title(op.Name),
		ReadOnlyHint:    mcp.ToBoolPtr(op.ReadOnly),
		DestructiveHint: mcp.ToBoolPtr(!op.ReadOnly),
		OpenWorldHint:   mcp.ToBoolPtr(true),
	}
	return tool
}

// Title turns "list-deals" into "List Deals".
func Title(name string) string {
	words := []rune(name)
	for i, r := range words {
		if r == '-' || r == '_' {
			words[i] = ' '
		}
	}
	return cases.Title(language.English).String(string(words))
}

func handler(d *dispatch.Dispatcher, method string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params json.RawMessage
		if args := request.GetArguments(); len(args) > 0 {
			raw, err := json.Marshal(args)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
			params = raw
		}

		resp := d.Call(ctx, method, params)
		if resp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s (code %d)", resp.Error.Message, resp.Error.Code)), nil
		}
		return mcp.NewToolResultText(string(resp.Result)), nil
	}
}
