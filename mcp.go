package livereload

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/livereload/internal/kit"
)

// RegisterMCP registers the livereload tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerTriggerTool(srv)
	s.registerHistoryTool(srv)
}

// --- trigger ---

type triggerRequest struct {
	Path string `json:"path"`
}

func (s *Service) registerTriggerTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "livereload_trigger",
		Description: "Broadcast a change to a file so connected browsers refresh it. Stylesheets and images are swapped in place; anything else reloads the page.",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Changed file, relative to the served root (e.g. css/site.css)"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*triggerRequest)
		return s.Trigger(ctx, r.Path)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r triggerRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		r.Path = strings.TrimSpace(r.Path)
		if r.Path == "" {
			return nil, errors.New("path is required")
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(s.logger, "livereload_trigger")(endpoint), decode)
}

// --- history ---

type historyRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Service) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "livereload_history",
		Description: "List recently broadcast changes, newest first, with how many browsers each reached and how they handled it.",
		InputSchema: kit.InputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max entries (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*historyRequest)
		return s.History(ctx, r.Limit)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r historyRequest
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Logging(s.logger, "livereload_history")(endpoint), decode)
}
