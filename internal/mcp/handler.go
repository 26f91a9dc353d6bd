package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/DevRickLin/tpp-chat-filter/internal/biz/domain"
)

// Handler handles MCP tool calls using the HTTP client
type Handler struct {
	client *Client
}

// NewHandler creates a new MCP handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// HandleToolCall handles a tool call and returns the result
func (h *Handler) HandleToolCall(name string, args map[string]interface{}) (interface{}, error) {
	switch name {
	case "chatfilter_classify":
		return h.handleClassify(args)
	case "chatfilter_rewrite":
		return h.handleRewrite(args)
	case "chatfilter_recent_lines":
		return h.handleRecentLines(args)
	case "chatfilter_list_settings":
		return h.handleListSettings(args)
	case "chatfilter_set_setting":
		return h.handleSetSetting(args)
	case "chatfilter_reset_setting":
		return h.handleResetSetting(args)
	case "chatfilter_slowmode_status":
		return h.handleSlowmodeStatus(args)
	case "chatfilter_feed_notice":
		return h.handleFeedNotice(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// ============ Line Handlers ============

func (h *Handler) handleClassify(args map[string]interface{}) (interface{}, error) {
	text := getStringArg(args, "text", "")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	decision, err := h.client.Classify(text, getStringArg(args, "sender", ""))
	if err != nil {
		return nil, err
	}
	return decision, nil
}

func (h *Handler) handleRewrite(args map[string]interface{}) (interface{}, error) {
	text := getStringArg(args, "text", "")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	rewritten, err := h.client.Rewrite(text)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"text": rewritten}, nil
}

func (h *Handler) handleRecentLines(args map[string]interface{}) (interface{}, error) {
	limit := getIntArg(args, "limit", 20)
	lines, err := h.client.RecentLines(limit)
	if err != nil {
		return nil, err
	}

	hidden := 0
	for _, line := range lines {
		if !line.Decision.Visible {
			hidden++
		}
	}
	return map[string]interface{}{
		"lines":  lines,
		"count":  len(lines),
		"hidden": hidden,
	}, nil
}

// ============ Settings Handlers ============

func (h *Handler) handleListSettings(args map[string]interface{}) (interface{}, error) {
	settings, err := h.client.ListSettings()
	if err != nil {
		return nil, err
	}

	category := getStringArg(args, "category", "")
	if category == "" {
		return map[string]interface{}{"settings": settings}, nil
	}
	filtered := make([]domain.SettingInfo, 0, len(settings))
	for _, s := range settings {
		if string(s.Category) == category {
			filtered = append(filtered, s)
		}
	}
	return map[string]interface{}{"settings": filtered}, nil
}

func (h *Handler) handleSetSetting(args map[string]interface{}) (interface{}, error) {
	name := getStringArg(args, "name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	value, err := getValueArg(args, "value")
	if err != nil {
		return nil, err
	}

	if err := h.client.SetSetting(name, value); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("%s set to %s", name, value),
	}, nil
}

func (h *Handler) handleResetSetting(args map[string]interface{}) (interface{}, error) {
	name := getStringArg(args, "name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := h.client.ResetSetting(name); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("%s restored to default", name),
	}, nil
}

// ============ Slowmode Handlers ============

func (h *Handler) handleSlowmodeStatus(args map[string]interface{}) (interface{}, error) {
	report, err := h.client.SlowmodeStatus(getStringArg(args, "draft", ""))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"blocked":      report.Status.Blocked,
		"reason":       report.Status.Reason,
		"wait_seconds": report.Status.WaitSeconds(),
		"state":        report.State,
	}, nil
}

func (h *Handler) handleFeedNotice(args map[string]interface{}) (interface{}, error) {
	text := getStringArg(args, "text", "")
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	report, err := h.client.FeedNotice(text)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"display":      report.Line.Decision.Text,
		"visible":      report.Line.Decision.Visible,
		"blocked":      report.Status.Blocked,
		"reason":       report.Status.Reason,
		"wait_seconds": report.Status.WaitSeconds(),
	}, nil
}

// ============ Helpers ============

func getStringArg(args map[string]interface{}, key, defaultValue string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

func getIntArg(args map[string]interface{}, key string, defaultValue int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	if v, ok := args[key].(int); ok {
		return v
	}
	return defaultValue
}

// getValueArg accepts a boolean or a list of strings
func getValueArg(args map[string]interface{}, key string) (domain.Value, error) {
	switch v := args[key].(type) {
	case bool:
		return domain.BoolValue(v), nil
	case []string:
		return domain.ListValue(v), nil
	case []interface{}:
		list := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return domain.Value{}, fmt.Errorf("%s must contain only strings", key)
			}
			list = append(list, s)
		}
		return domain.ListValue(list), nil
	case nil:
		return domain.Value{}, fmt.Errorf("%s is required", key)
	default:
		return domain.Value{}, fmt.Errorf("%s must be a boolean or a list of strings", key)
	}
}

// FormatToolResult formats a tool result for MCP response
func FormatToolResult(result interface{}, isError bool) map[string]interface{} {
	content := ""
	if result != nil {
		if err, ok := result.(error); ok {
			content = err.Error()
		} else if jsonBytes, err := json.Marshal(result); err == nil {
			content = string(jsonBytes)
		} else {
			content = fmt.Sprintf("%v", result)
		}
	}

	return map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": content,
			},
		},
		"isError": isError,
	}
}
