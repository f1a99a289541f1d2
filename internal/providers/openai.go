package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIProvider implements Provider for OpenAI-compatible chat completion APIs.
type OpenAIProvider struct {
	name         string
	apiBase      string
	defaultModel string
	client       *openai.Client
	maxRetries   uint
}

// NewOpenAIProvider creates a provider. An empty apiBase uses the public OpenAI endpoint.
func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if name == "" {
		name = "openai"
	}
	if defaultModel == "" {
		defaultModel = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cfg.BaseURL = strings.TrimRight(apiBase, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &OpenAIProvider{
		name:         name,
		apiBase:      cfg.BaseURL,
		defaultModel: defaultModel,
		client:       openai.NewClientWithConfig(cfg),
		maxRetries:   3,
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }
func (p *OpenAIProvider) APIBase() string      { return p.apiBase }

// Chat sends one chat completion request, retrying rate limits and server errors.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := p.buildRequestBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := backoff.Retry(ctx, func() (openai.ChatCompletionResponse, error) {
		r, err := p.client.CreateChatCompletion(ctx, body)
		if err != nil {
			if !isRetryable(err) {
				return r, backoff.Permanent(err)
			}
			slog.Warn("llm request failed, retrying", "provider", p.name, "model", body.Model, "error", err)
			return r, err
		}
		return r, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(p.maxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion: %w", p.name, err)
	}

	return p.parseResponse(resp)
}

func (p *OpenAIProvider) buildRequestBody(req ChatRequest) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}

	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			ToolCallID: m.ToolCallID,
		}

		if len(m.Images) > 0 {
			parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}
			for _, img := range m.Images {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data),
						Detail: openai.ImageURLDetailLow,
					},
				})
			}
			msg.MultiContent = parts
		} else {
			msg.Content = m.Content
		}

		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				return body, fmt.Errorf("%s: encode tool call %s arguments: %w", p.name, tc.Name, err)
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}

		body.Messages = append(body.Messages, msg)
	}

	for _, t := range req.Tools {
		body.Tools = append(body.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}

	if v, ok := req.Options["max_tokens"].(int); ok && v > 0 {
		body.MaxTokens = v
	}
	if v, ok := req.Options["temperature"].(float64); ok {
		body.Temperature = float32(v)
	}

	return body, nil
}

func (p *OpenAIProvider) parseResponse(resp openai.ChatCompletionResponse) (*ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty response (no choices)", p.name)
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args := make(map[string]interface{})
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				slog.Warn("llm returned malformed tool arguments",
					"provider", p.name, "tool", tc.Function.Name, "error", err)
				args = map[string]interface{}{"_raw": tc.Function.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return out, nil
}

// isRetryable reports whether an API error is worth retrying (429 or 5xx).
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
