package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := NewAnthropic(WithBaseURL(server.URL), WithAPIKey("a-key"), WithModel("claude-3-5-haiku-latest"))
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	return a
}

func TestAnthropicRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropic(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}
}

func TestAnthropicToolUse(t *testing.T) {
	var body map[string]any
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "a-key" {
			t.Errorf("Expected x-api-key header")
		}
		json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[
				{"type":"text","text":"Let me check."},
				{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"location":"Tokyo"}}
			],
			"stop_reason":"tool_use","stop_sequence":null,
			"usage":{"input_tokens":12,"output_tokens":8}
		}`))
	})

	resp, err := a.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewSystemMessage("be brief"), NewUserMessage("Weather in Tokyo?")},
		Tools:    []Tool{weatherTool()},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "get_weather" {
		t.Errorf("Unexpected tool call %+v", tc)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil || args["location"] != "Tokyo" {
		t.Errorf("Unexpected arguments %s", tc.Arguments)
	}
	if resp.Message.Content != "Let me check." || resp.FinishReason != "tool_use" {
		t.Errorf("Unexpected response %+v", resp)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("Expected 20 tokens, got %d", resp.Usage.TotalTokens)
	}

	tools := body["tools"].([]any)
	if tools[0].(map[string]any)["name"] != "get_weather" {
		t.Errorf("Expected get_weather tool, got %v", tools[0])
	}
	schema := tools[0].(map[string]any)["input_schema"].(map[string]any)
	if req, _ := schema["required"].([]any); len(req) != 1 || req[0] != "location" {
		t.Errorf("Expected location to be required, got %v", schema["required"])
	}
	system := body["system"].([]any)[0].(map[string]any)
	if system["text"] != "be brief" {
		t.Errorf("Unexpected system %v", system)
	}
	if msgs := body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("Expected only the user message, got %d", len(msgs))
	}
}

func TestRequiredParams(t *testing.T) {
	if got := requiredParams([]string{"location"}); len(got) != 1 || got[0] != "location" {
		t.Errorf("Unexpected %v", got)
	}
	if got := requiredParams([]any{"a", 3, "b"}); len(got) != 2 || got[1] != "b" {
		t.Errorf("Unexpected %v", got)
	}
	if got := requiredParams(nil); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestAnthropicToolResultMapping(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string           `json:"role"`
			Content []map[string]any `json:"content"`
		} `json:"messages"`
	}
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"m",
			"content":[{"type":"text","text":"21C, light wind."}],
			"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	})

	call := ToolCall{ID: "toolu_1", Name: "get_weather", Arguments: `{"location":"Tokyo"}`}
	resp, err := a.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			NewUserMessage("Weather in Tokyo?"),
			NewToolCallMessage(call),
			NewToolMessage(call, `{"result":{"ok":true}}`),
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content != "21C, light wind." {
		t.Errorf("Unexpected content %q", resp.Message.Content)
	}

	if len(body.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(body.Messages))
	}
	use := body.Messages[1].Content[0]
	if body.Messages[1].Role != "assistant" || use["type"] != "tool_use" || use["id"] != "toolu_1" {
		t.Errorf("Unexpected tool_use echo %v", use)
	}
	result := body.Messages[2].Content[0]
	if body.Messages[2].Role != "user" || result["type"] != "tool_result" || result["tool_use_id"] != "toolu_1" {
		t.Errorf("Unexpected tool_result %v", result)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	})

	_, err := a.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Code != "invalid_request_error" || apiErr.Message != "max_tokens too large" {
		t.Errorf("Unexpected error %+v", apiErr)
	}
}
