package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/browserbot/internal/providers"
)

var tracer = otel.Tracer("browserbot/agent")

// chat calls the provider inside an "llm.chat" span carrying token usage.
func (a *BrowserAgent) chat(ctx context.Context, step int, req providers.ChatRequest) (*providers.ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "llm.chat", trace.WithAttributes(
		attribute.String("provider", a.provider.Name()),
		attribute.String("model", a.model),
		attribute.Int("step", step),
		attribute.Int("messages", len(req.Messages)),
	))
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Chat(ctx, req)
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("tool_calls", len(resp.ToolCalls)),
		attribute.String("finish_reason", resp.FinishReason),
	)
	if u := resp.Usage; u != nil {
		span.SetAttributes(
			attribute.Int("prompt_tokens", u.PromptTokens),
			attribute.Int("completion_tokens", u.CompletionTokens),
		)
	}
	return resp, nil
}

// execute runs one tool call inside a "browser.<action>" span.
func (a *BrowserAgent) execute(ctx context.Context, tc providers.ToolCall) ActionResult {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("browser.%s", tc.Name),
		trace.WithAttributes(attribute.String("tool_call_id", tc.ID)))
	defer span.End()

	res := a.runAction(ctx, tc)
	span.SetAttributes(attribute.Bool("done", res.IsDone), attribute.Bool("success", res.Success))
	if res.Error != "" {
		span.SetStatus(codes.Error, res.Error)
	}
	return res
}
