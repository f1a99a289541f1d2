package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]interface{})) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIProvider_ChatToolCalls(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
		if body["model"] != "gpt-4o" {
			t.Errorf("model = %v, want gpt-4o", body["model"])
		}
		tools, _ := body["tools"].([]interface{})
		if len(tools) != 1 {
			t.Errorf("tools = %d, want 1", len(tools))
		}
		msgs, _ := body["messages"].([]interface{})
		if len(msgs) != 2 {
			t.Errorf("messages = %d, want 2", len(msgs))
		}
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "navigating",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "navigate", "arguments": "{\"url\":\"https://example.com\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	p := NewOpenAIProvider("", "test-key", srv.URL+"/v1", "")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "you drive a browser"},
			{Role: "user", Content: "open example.com"},
		},
		Tools: []ToolDefinition{{
			Type: "function",
			Function: ToolFunctionSchema{
				Name:        "navigate",
				Description: "open a url",
				Parameters:  map[string]interface{}{"type": "object"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Content != "navigating" {
		t.Errorf("Content = %q, want navigating", resp.Content)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q, want tool_calls", resp.FinishReason)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "navigate" || tc.Arguments["url"] != "https://example.com" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("Usage = %+v, want total 15", resp.Usage)
	}
}

func TestOpenAIProvider_ClientErrorNotRetried(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, _ map[string]interface{}) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	})

	p := NewOpenAIProvider("openai", "test-key", srv.URL, "gpt-4o-mini")
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bad request") {
		t.Errorf("error %q should carry the API message", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (400 is not retryable)", got)
	}
}

func TestOpenAIProvider_BuildRequestBody(t *testing.T) {
	p := NewOpenAIProvider("openai", "k", "", "gpt-4o")
	body, err := p.buildRequestBody(ChatRequest{
		Model: "gpt-4.1",
		Messages: []Message{
			{Role: "user", Content: "look", Images: []ImageContent{{MimeType: "image/png", Data: "AAAA"}}},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Name: "click", Arguments: map[string]interface{}{"index": 3}}}},
			{Role: "tool", ToolCallID: "c1", Content: "clicked"},
		},
		Options: map[string]interface{}{"max_tokens": 512, "temperature": 0.2},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}

	if body.Model != "gpt-4.1" {
		t.Errorf("Model = %q, want gpt-4.1", body.Model)
	}
	if body.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", body.MaxTokens)
	}
	if body.Temperature < 0.19 || body.Temperature > 0.21 {
		t.Errorf("Temperature = %v, want 0.2", body.Temperature)
	}
	if n := len(body.Messages[0].MultiContent); n != 2 {
		t.Errorf("image message parts = %d, want 2", n)
	}
	if body.Messages[0].Content != "" {
		t.Error("image message should use MultiContent only")
	}
	if got := body.Messages[1].ToolCalls[0].Function.Arguments; got != `{"index":3}` {
		t.Errorf("tool call arguments = %s", got)
	}
	if body.Messages[2].ToolCallID != "c1" {
		t.Errorf("ToolCallID = %q, want c1", body.Messages[2].ToolCallID)
	}
}

func TestIsRetryable(t *testing.T) {
	if isRetryable(context.Canceled) {
		t.Error("context.Canceled should not be retryable")
	}
}
