package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolServer exposes the chat filter tools over the MCP protocol
type ToolServer struct {
	server  *sdkmcp.Server
	handler *Handler
}

// NewToolServer creates an MCP server whose tools are served by handler
func NewToolServer(handler *Handler, version string) *ToolServer {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "tpp-chat-filter",
		Version: version,
	}, nil)

	s := &ToolServer{
		server:  server,
		handler: handler,
	}
	s.registerTools()
	return s
}

// ToolOutput wraps a tool result or the error it produced
type ToolOutput struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ClassifyInput is the input for chatfilter_classify
type ClassifyInput struct {
	Text   string `json:"text" jsonschema:"The chat line to classify"`
	Sender string `json:"sender,omitempty" jsonschema:"Sender name, used by the bot filter"`
}

// RewriteInput is the input for chatfilter_rewrite
type RewriteInput struct {
	Text string `json:"text" jsonschema:"The chat line to rewrite"`
}

// RecentLinesInput is the input for chatfilter_recent_lines
type RecentLinesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of lines to return (default 20)"`
}

// ListSettingsInput is the input for chatfilter_list_settings
type ListSettingsInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only list settings of this category"`
}

// SetSettingInput is the input for chatfilter_set_setting
type SetSettingInput struct {
	Name  string `json:"name" jsonschema:"Setting name, e.g. TppFilterLinks"`
	Value any    `json:"value" jsonschema:"A boolean or an array of strings"`
}

// ResetSettingInput is the input for chatfilter_reset_setting
type ResetSettingInput struct {
	Name string `json:"name" jsonschema:"Setting name"`
}

// SlowmodeStatusInput is the input for chatfilter_slowmode_status
type SlowmodeStatusInput struct {
	Draft string `json:"draft,omitempty" jsonschema:"The message about to be sent"`
}

// FeedNoticeInput is the input for chatfilter_feed_notice
type FeedNoticeInput struct {
	Text string `json:"text" jsonschema:"The admin notice text"`
}

// registerTools mirrors GetToolDefinitions onto the SDK server
func (s *ToolServer) registerTools() {
	descriptions := make(map[string]string)
	for _, def := range GetToolDefinitions() {
		descriptions[def.Name] = def.Description
	}
	tool := func(name string) *sdkmcp.Tool {
		return &sdkmcp.Tool{Name: name, Description: descriptions[name]}
	}

	sdkmcp.AddTool(s.server, tool("chatfilter_classify"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in ClassifyInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			return s.call("chatfilter_classify", map[string]interface{}{"text": in.Text, "sender": in.Sender})
		})

	sdkmcp.AddTool(s.server, tool("chatfilter_rewrite"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in RewriteInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			return s.call("chatfilter_rewrite", map[string]interface{}{"text": in.Text})
		})

	sdkmcp.AddTool(s.server, tool("chatfilter_recent_lines"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in RecentLinesInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			args := map[string]interface{}{}
			if in.Limit > 0 {
				args["limit"] = in.Limit
			}
			return s.call("chatfilter_recent_lines", args)
		})

	sdkmcp.AddTool(s.server, tool("chatfilter_list_settings"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in ListSettingsInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			return s.call("chatfilter_list_settings", map[string]interface{}{"category": in.Category})
		})

	sdkmcp.AddTool(s.server, tool("chatfilter_set_setting"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in SetSettingInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			return s.call("chatfilter_set_setting", map[string]interface{}{"name": in.Name, "value": in.Value})
		})

	sdkmcp.AddTool(s.server, tool("chatfilter_reset_setting"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in ResetSettingInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			return s.call("chatfilter_reset_setting", map[string]interface{}{"name": in.Name})
		})

	sdkmcp.AddTool(s.server, tool("chatfilter_slowmode_status"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in SlowmodeStatusInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			return s.call("chatfilter_slowmode_status", map[string]interface{}{"draft": in.Draft})
		})

	sdkmcp.AddTool(s.server, tool("chatfilter_feed_notice"),
		func(ctx context.Context, req *sdkmcp.CallToolRequest, in FeedNoticeInput) (*sdkmcp.CallToolResult, ToolOutput, error) {
			return s.call("chatfilter_feed_notice", map[string]interface{}{"text": in.Text})
		})
}

func (s *ToolServer) call(name string, args map[string]interface{}) (*sdkmcp.CallToolResult, ToolOutput, error) {
	result, err := s.handler.HandleToolCall(name, args)
	if err != nil {
		return nil, ToolOutput{Error: err.Error()}, nil
	}
	return nil, ToolOutput{Result: result}, nil
}

// Run starts the MCP server with stdio transport
func (s *ToolServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *ToolServer) GetServer() *sdkmcp.Server {
	return s.server
}
