package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/browserbot/internal/browser"
	"github.com/nextlevelbuilder/browserbot/internal/providers"
)

const (
	defaultMaxFailures  = 3
	defaultMaxTokens    = 4096
	maxExtractChars     = 8000
	maxToolResultForLLM = 4000
)

// Browser is the subset of browser.Session the agent drives.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	Click(ctx context.Context, index int) error
	Type(ctx context.Context, index int, text string, submit bool) error
	Scroll(ctx context.Context, down bool) error
	State(ctx context.Context, withScreenshot bool) (*browser.PageState, error)
	ExtractText(ctx context.Context, maxChars int) (string, error)
	Close() error
}

// BrowserAgentConfig configures a BrowserAgent.
type BrowserAgentConfig struct {
	Task        string
	Provider    providers.Provider
	Model       string // empty = provider default
	Browser     Browser
	UseVision   bool
	MaxFailures int // consecutive failed steps before giving up
	MaxTokens   int
	Temperature float64
}

// BrowserAgent asks the LLM for browser actions one step at a time, executes
// them and records the results.
type BrowserAgent struct {
	task        string
	provider    providers.Provider
	model       string
	browser     Browser
	useVision   bool
	maxFailures int
	maxTokens   int
	temperature float64
}

// NewBrowserAgent creates an agent bound to one task and one browser.
func NewBrowserAgent(cfg BrowserAgentConfig) *BrowserAgent {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	model := cfg.Model
	if model == "" && cfg.Provider != nil {
		model = cfg.Provider.DefaultModel()
	}
	return &BrowserAgent{
		task:        cfg.Task,
		provider:    cfg.Provider,
		model:       model,
		browser:     cfg.Browser,
		useVision:   cfg.UseVision,
		maxFailures: cfg.MaxFailures,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Close releases the browser.
func (a *BrowserAgent) Close() error {
	if a.browser == nil {
		return nil
	}
	return a.browser.Close()
}

// Run executes the step loop until the model calls done, the step budget is
// spent, or maxFailures consecutive steps fail.
func (a *BrowserAgent) Run(ctx context.Context, maxSteps int) (*History, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	history := &History{}
	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Your task: " + a.task},
	}
	tools := actionTools()
	failures := 0

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return history, err
		}

		rec, newMessages, stepErr := a.step(ctx, step, messages, tools)
		history.Steps = append(history.Steps, rec)

		if stepErr != nil {
			failures++
			slog.Warn("agent step failed", "step", step, "failures", failures, "error", stepErr)
			if failures >= a.maxFailures {
				return history, fmt.Errorf("stopped after %d consecutive failures: %w", failures, stepErr)
			}
			continue
		}
		messages = newMessages

		if stepFailed(rec) {
			failures++
			if failures >= a.maxFailures {
				return history, fmt.Errorf("stopped after %d consecutive failed actions: %s", failures, rec.Results[len(rec.Results)-1].Error)
			}
		} else {
			failures = 0
		}

		if history.IsDone() {
			slog.Debug("agent done", "step", step)
			return history, nil
		}
	}

	slog.Info("agent step budget exhausted", "max_steps", maxSteps)
	return history, nil
}

// step runs one observe/think/act iteration. A non-nil error means the step
// produced no actions (state or LLM failure); messages is returned unchanged then.
func (a *BrowserAgent) step(ctx context.Context, step int, messages []providers.Message, tools []providers.ToolDefinition) (StepRecord, []providers.Message, error) {
	rec := StepRecord{Step: step}

	state, err := a.browser.State(ctx, a.useVision)
	if err != nil {
		rec.Results = []ActionResult{{Action: "observe", Error: err.Error()}}
		return rec, messages, err
	}
	rec.URL, rec.Title = state.URL, state.Title

	stateMsg := providers.Message{
		Role:    "user",
		Content: fmt.Sprintf("Step %d.\n%s", step, state.Format()),
	}
	if state.Screenshot != "" {
		stateMsg.Images = []providers.ImageContent{{MimeType: "image/jpeg", Data: state.Screenshot}}
	}

	// The page state is only sent for the current call; older snapshots are
	// stale and would crowd the context window.
	req := make([]providers.Message, 0, len(messages)+1)
	req = append(req, messages...)
	req = append(req, stateMsg)

	llmStart := time.Now()
	resp, err := a.chat(ctx, step, providers.ChatRequest{
		Messages: req,
		Tools:    tools,
		Model:    a.model,
		Options: map[string]interface{}{
			"max_tokens":  a.maxTokens,
			"temperature": a.temperature,
		},
	})
	if err != nil {
		rec.Results = []ActionResult{{Action: "think", Error: err.Error()}}
		return rec, messages, fmt.Errorf("LLM call failed (step %d): %w", step, err)
	}
	slog.Debug("agent step", "step", step, "url", state.URL, "tool_calls", len(resp.ToolCalls),
		"llm_ms", time.Since(llmStart).Milliseconds())

	rec.Thought = resp.Content

	// No tool calls: the model answered in prose, treat it as the final result.
	if len(resp.ToolCalls) == 0 {
		rec.Results = []ActionResult{{Action: "done", IsDone: true, Success: true, ExtractedContent: cleanResult(resp.Content)}}
		return rec, messages, nil
	}

	messages = append(messages, providers.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	for _, tc := range resp.ToolCalls {
		res := a.execute(ctx, tc)
		rec.Results = append(rec.Results, res)
		messages = append(messages, providers.Message{
			Role:       "tool",
			Content:    toolResultForLLM(res),
			ToolCallID: tc.ID,
		})
		if res.IsDone {
			break
		}
	}
	return rec, messages, nil
}

func (a *BrowserAgent) runAction(ctx context.Context, tc providers.ToolCall) ActionResult {
	res := ActionResult{Action: tc.Name}
	args := tc.Arguments

	argsJSON, _ := json.Marshal(args)
	slog.Info("agent action", "action", tc.Name, "args_len", len(argsJSON))

	var err error
	switch tc.Name {
	case "navigate":
		url := argString(args, "url")
		if url == "" {
			err = fmt.Errorf("navigate: url is required")
			break
		}
		err = a.browser.Navigate(ctx, url)
		res.ExtractedContent = "navigated to " + url
	case "go_back":
		err = a.browser.GoBack(ctx)
		res.ExtractedContent = "navigated back"
	case "click":
		idx, ok := argInt(args, "index")
		if !ok {
			err = fmt.Errorf("click: index is required")
			break
		}
		err = a.browser.Click(ctx, idx)
		res.ExtractedContent = fmt.Sprintf("clicked element %d", idx)
	case "type":
		idx, ok := argInt(args, "index")
		if !ok {
			err = fmt.Errorf("type: index is required")
			break
		}
		err = a.browser.Type(ctx, idx, argString(args, "text"), argBool(args, "submit", false))
		res.ExtractedContent = fmt.Sprintf("typed into element %d", idx)
	case "scroll":
		down := argString(args, "direction") != "up"
		err = a.browser.Scroll(ctx, down)
		res.ExtractedContent = "scrolled"
	case "extract_content":
		res.ExtractedContent, err = a.browser.ExtractText(ctx, maxExtractChars)
	case "done":
		res.IsDone = true
		res.ExtractedContent = cleanResult(argString(args, "text"))
		res.Success = argBool(args, "success", true)
		return res
	default:
		err = fmt.Errorf("unknown action %q", tc.Name)
	}

	if err != nil {
		res.Error = err.Error()
		res.ExtractedContent = ""
		slog.Warn("agent action failed", "action", tc.Name, "error", browser.Truncate(res.Error, 200))
		return res
	}
	res.Success = true
	return res
}

func stepFailed(rec StepRecord) bool {
	if len(rec.Results) == 0 {
		return false
	}
	for _, r := range rec.Results {
		if r.Error == "" {
			return false
		}
	}
	return true
}

func toolResultForLLM(r ActionResult) string {
	if r.Error != "" {
		return "Error: " + browser.Truncate(r.Error, 500)
	}
	if r.IsDone {
		return "Task marked as done."
	}
	return browser.Truncate(r.ExtractedContent, maxToolResultForLLM)
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func argBool(args map[string]interface{}, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}
