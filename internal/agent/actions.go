package agent

import "github.com/nextlevelbuilder/browserbot/internal/providers"

const systemPrompt = `You are a browser automation agent. You complete the user's task by controlling a web browser one action at a time.

Each turn you receive the current page: its URL, title, a numbered list of interactive elements and the visible text. Elements are referenced by their [index]; indexes change whenever the page changes, so only use indexes from the latest state.

Rules:
- Call exactly one browser action per turn unless several are obviously safe together (for example typing into two fields of the same form).
- Start by navigating to a relevant site or a search engine when the page is blank.
- Use extract_content when you need the full text of a long page.
- If an action fails, read the error and try something different. Do not repeat the same failing action.
- When the task is complete, call done with a concise, self-contained answer in "text". The user only sees that text, so include every fact they asked for.
- If the task cannot be completed, call done with success=false and explain why in "text".`

func actionTools() []providers.ToolDefinition {
	return []providers.ToolDefinition{
		tool("navigate", "Open a URL in the current tab.", map[string]interface{}{
			"url": map[string]interface{}{"type": "string", "description": "Absolute URL to open"},
		}, "url"),
		tool("go_back", "Go back to the previous page.", nil),
		tool("click", "Click an interactive element by index.", map[string]interface{}{
			"index": map[string]interface{}{"type": "integer", "description": "Element index from the page state"},
		}, "index"),
		tool("type", "Replace the content of an input element with text.", map[string]interface{}{
			"index":  map[string]interface{}{"type": "integer", "description": "Element index from the page state"},
			"text":   map[string]interface{}{"type": "string", "description": "Text to type"},
			"submit": map[string]interface{}{"type": "boolean", "description": "Press Enter after typing"},
		}, "index", "text"),
		tool("scroll", "Scroll the page by most of a screen.", map[string]interface{}{
			"direction": map[string]interface{}{"type": "string", "enum": []string{"down", "up"}},
		}, "direction"),
		tool("extract_content", "Return the full visible text of the current page.", nil),
		tool("done", "Finish the task and report the result to the user.", map[string]interface{}{
			"text":    map[string]interface{}{"type": "string", "description": "Final answer shown to the user"},
			"success": map[string]interface{}{"type": "boolean", "description": "Whether the task was completed"},
		}, "text"),
	}
}

func tool(name, description string, props map[string]interface{}, required ...string) providers.ToolDefinition {
	if props == nil {
		props = map[string]interface{}{}
	}
	params := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}
