package rebrand

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/rebrand/kit"
)

// RegisterMCP registers the transformation tools on an MCP server. The
// tools reuse the Server command methods, so HTTP and MCP stay in lockstep.
func (srv *Server) RegisterMCP(m *mcp.Server) {
	srv.registerTransformTool(m)
	srv.registerStateTool(m)
	srv.registerRegenerateTool(m)
	srv.registerResetTool(m)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (srv *Server) registerTransformTool(m *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rebrand_transform",
		Description: "Rewrite the current page's marketing copy for a different product. Starts asynchronously; poll rebrand_state for the outcome.",
		InputSchema: inputSchema(map[string]any{
			"url":         map[string]any{"type": "string", "description": "Page to open and transform; omit to reuse the attached page"},
			"title":       map[string]any{"type": "string", "description": "Product name to rebrand toward"},
			"description": map[string]any{"type": "string", "description": "What the product does"},
			"tone":        map[string]any{"type": "string", "description": "Writing tone (e.g. professional, playful)"},
		}, []string{"title"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*TransformRequest)
		return srv.StartTransform(ctx, *r)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r TransformRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(m, tool, endpoint, decode)
}

func (srv *Server) registerStateTool(m *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rebrand_state",
		Description: "Report the current transformation state: detected and transformed counts, brand, watcher stats, and recent events.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return srv.CurrentState()
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}}, nil
	}

	kit.RegisterMCPTool(m, tool, endpoint, decode)
}

func (srv *Server) registerRegenerateTool(m *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rebrand_regenerate",
		Description: "Restore the page and run the transformation again with the same product input, producing fresh copy.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return srv.Regenerate(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}}, nil
	}

	kit.RegisterMCPTool(m, tool, endpoint, decode)
}

func (srv *Server) registerResetTool(m *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rebrand_reset",
		Description: "Restore every transformed element to its original text and stop watching the page.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := srv.Reset(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"status": "reset"}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}}, nil
	}

	kit.RegisterMCPTool(m, tool, endpoint, decode)
}
