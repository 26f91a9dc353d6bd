package mcp

// ToolDefinition represents an MCP tool definition
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// GetToolDefinitions returns all available MCP tool definitions
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "chatfilter_classify",
			Description: "Run a chat line through the enabled filters and rewriters. Returns whether it would be shown, which filters matched, and the text that would be displayed.",
			InputSchema: objectSchema(map[string]interface{}{
				"text":   stringProp("The chat line to classify"),
				"sender": stringProp("Sender name, used by the bot filter (optional)"),
			}, "text"),
		},
		{
			Name:        "chatfilter_rewrite",
			Description: "Apply the enabled rewriters (duplicate collapse, drink mop-up, all-caps conversion) to a line.",
			InputSchema: objectSchema(map[string]interface{}{
				"text": stringProp("The chat line to rewrite"),
			}, "text"),
		},
		{
			Name:        "chatfilter_recent_lines",
			Description: "List the most recent chat lines with their current visibility decision.",
			InputSchema: objectSchema(map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of lines to return (default 20)",
				},
			}),
		},
		// Settings tools
		{
			Name:        "chatfilter_list_settings",
			Description: "List every filter, rewriter and styler setting with its default and current value.",
			InputSchema: objectSchema(map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Only list settings of this category (optional)",
					"enum":        []string{"filters_category", "rewriters_category", "visual_category", "customs_category"},
				},
			}),
		},
		{
			Name:        "chatfilter_set_setting",
			Description: "Change a setting. Boolean settings take true or false; list settings such as TppBannedWords take an array of strings. Already displayed lines are re-evaluated.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": stringProp("Setting name, e.g. TppFilterLinks"),
				"value": map[string]interface{}{
					"description": "New value: a boolean or an array of strings",
					"oneOf": []interface{}{
						map[string]interface{}{"type": "boolean"},
						map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					},
				},
			}, "name", "value"),
		},
		{
			Name:        "chatfilter_reset_setting",
			Description: "Restore a setting to its default value.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": stringProp("Setting name"),
			}, "name"),
		},
		// Slowmode tools
		{
			Name:        "chatfilter_slowmode_status",
			Description: "Check whether a message could be sent right now, and if not, why and for how many seconds.",
			InputSchema: objectSchema(map[string]interface{}{
				"draft": stringProp("The message about to be sent, used for the repeat check (optional)"),
			}),
		},
		{
			Name:        "chatfilter_feed_notice",
			Description: "Feed a server notice (e.g. 'This room is now in slow mode...') to the slowmode tracker. Returns the text to display and the resulting send status.",
			InputSchema: objectSchema(map[string]interface{}{
				"text": stringProp("The admin notice text"),
			}, "text"),
		},
	}
}
