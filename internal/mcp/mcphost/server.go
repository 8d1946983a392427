package mcphost

import (
	"context"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultImplementation identifies this process to MCP clients.
var defaultImplementation = &mcpsdk.Implementation{Name: "shidinn", Version: "1.0.0"}

// Server returns an MCP server exposing every tool registered at the time of
// the call. Calls are routed through [Host.ExecuteTool], so deadlines,
// spans and metrics apply the same way as for in-process callers. A nil impl
// uses the default implementation name.
func (h *Host) Server(impl *mcpsdk.Implementation) *mcpsdk.Server {
	if impl == nil {
		impl = defaultImplementation
	}
	server := mcpsdk.NewServer(impl, nil)

	for _, e := range h.snapshot() {
		name := e.def.Name
		server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: e.def.Description,
			InputSchema: inputSchema(e.def.Parameters),
		}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			args := "{}"
			if req.Params != nil && len(req.Params.Arguments) > 0 {
				args = string(req.Params.Arguments)
			}
			res, err := h.ExecuteTool(ctx, name, args)
			if err != nil {
				return nil, err
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Content}},
				IsError: res.IsError,
			}, nil
		})
	}
	return server
}

// ServeStdio serves the registered tools over stdin/stdout until ctx is
// cancelled or the client disconnects.
func (h *Host) ServeStdio(ctx context.Context) error {
	if err := h.Server(nil).Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp host: stdio server: %w", err)
	}
	return nil
}

// HTTPHandler returns an MCP Streamable HTTP handler serving the registered
// tools. The server is built once; tools registered afterwards are not
// visible through it.
func (h *Host) HTTPHandler() http.Handler {
	server := h.Server(nil)
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, nil)
}

// inputSchema returns params, or an empty object schema when params is nil.
// The SDK requires every tool to declare an object input schema.
func inputSchema(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{"type": "object"}
	}
	if _, ok := params["type"]; !ok {
		cp := make(map[string]any, len(params)+1)
		for k, v := range params {
			cp[k] = v
		}
		cp["type"] = "object"
		return cp
	}
	return params
}
