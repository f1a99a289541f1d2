package agent

import (
	"log/slog"
	"regexp"
	"strings"
)

// cleanResult strips model artifacts from text that is relayed to the user
// as a task result: reasoning tags, <final> wrappers, tool-call markup some
// models emit as plain text, and repeated paragraphs.
func cleanResult(content string) string {
	if content == "" {
		return ""
	}
	original := content

	content = stripReasoning(content)
	content = finalTagPattern.ReplaceAllString(content, "")
	content = stripToolMarkup(content)
	content = collapseRepeatedParagraphs(content)
	content = strings.TrimSpace(content)

	if content != original {
		slog.Debug("cleaned agent result", "original_len", len(original), "cleaned_len", len(content))
	}
	return content
}

// Go regexp has no backreferences, so each tag gets its own pattern.
var reasoningPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<thought>.*?</thought>`),
	regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`),
}

func stripReasoning(content string) string {
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "<think") && !strings.Contains(lower, "<thought") &&
		!strings.Contains(lower, "<reasoning") {
		return content
	}
	for _, pat := range reasoningPatterns {
		content = pat.ReplaceAllString(content, "")
	}
	return content
}

var finalTagPattern = regexp.MustCompile(`(?i)<\s*/?\s*final\s*>`)

var toolMarkupPattern = regexp.MustCompile(
	`(?is)</?(?:function_calls?|invoke|tool_call|tool_use|parameter)[^>]*>`,
)

// stripToolMarkup drops tool-call tags a model wrote into its text reply
// instead of issuing a real tool call. The text between tags is kept.
func stripToolMarkup(content string) string {
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "<tool_") && !strings.Contains(lower, "<function_call") &&
		!strings.Contains(lower, "<invoke") && !strings.Contains(lower, "<parameter") {
		return content
	}
	slog.Warn("tool-call markup in agent reply", "len", len(content))
	return toolMarkupPattern.ReplaceAllString(content, "")
}

func collapseRepeatedParagraphs(content string) string {
	blocks := strings.Split(content, "\n\n")
	if len(blocks) <= 1 {
		return content
	}
	var out []string
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if len(out) > 0 && trimmed == strings.TrimSpace(out[len(out)-1]) {
			continue
		}
		out = append(out, block)
	}
	return strings.Join(out, "\n\n")
}
