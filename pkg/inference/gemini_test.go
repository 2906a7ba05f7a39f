package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := NewGemini(WithBaseURL(server.URL), WithAPIKey("g-key"))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}
}

func TestGeminiChatText(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("Expected key query param")
		}

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["tools"]; ok {
			t.Error("No tools expected")
		}
		sys := body["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
		if sys["text"] != "be brief" {
			t.Errorf("Unexpected system instruction %v", sys)
		}
		contents := body["contents"].([]any)
		if len(contents) != 1 {
			t.Errorf("System message must not be sent as content, got %d contents", len(contents))
		}

		w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[
				{"text":"thinking out loud","thought":true},
				{"text":"Sunny "},{"text":"and warm."}
			]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":3,"totalTokenCount":10}
		}`))
	})

	resp, err := g.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewSystemMessage("be brief"), NewUserMessage("Weather?")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content != "Sunny and warm." {
		t.Errorf("Unexpected content %q", resp.Message.Content)
	}
	if resp.HasToolCalls() {
		t.Error("Expected no tool calls")
	}
	if resp.FinishReason != "STOP" || resp.Usage.TotalTokens != 10 {
		t.Errorf("Unexpected metadata %+v", resp)
	}
}

func TestGeminiFunctionCall(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Tools []struct {
				FunctionDeclarations []struct {
					Name       string         `json:"name"`
					Parameters map[string]any `json:"parameters"`
				} `json:"functionDeclarations"`
			} `json:"tools"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Tools) != 1 || body.Tools[0].FunctionDeclarations[0].Name != "get_weather" {
			t.Errorf("Expected get_weather declaration, got %+v", body.Tools)
		}

		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[
			{"functionCall":{"name":"get_weather","args":{"location":"Tokyo"}},"thoughtSignature":"sig-abc"}
		]},"finishReason":"STOP"}]}`))
	})

	resp, err := g.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("Weather in Tokyo?")},
		Tools:    []Tool{weatherTool()},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.Name != "get_weather" || tc.Arguments != `{"location":"Tokyo"}` {
		t.Errorf("Unexpected tool call %+v", tc)
	}
	if tc.Signature != "sig-abc" {
		t.Errorf("Expected thought signature to be kept, got %q", tc.Signature)
	}
	if !strings.HasPrefix(tc.ID, "call_") {
		t.Errorf("Expected synthetic call ID, got %q", tc.ID)
	}
}

func TestGeminiFunctionResponseRoundTrip(t *testing.T) {
	var body map[string]any
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"21C in Tokyo."}]}}]}`))
	})

	call := ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"location":"Tokyo"}`, Signature: "sig-abc"}
	resp, err := g.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			NewUserMessage("Weather in Tokyo?"),
			NewToolCallMessage(call),
			NewToolMessage(call, `{"result":{"ok":true,"location":"Tokyo (JP)"}}`),
		},
		Tools: []Tool{weatherTool()},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content != "21C in Tokyo." {
		t.Errorf("Unexpected content %q", resp.Message.Content)
	}

	contents := body["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(contents))
	}

	model := contents[1].(map[string]any)
	if model["role"] != "model" {
		t.Errorf("Expected model role, got %v", model["role"])
	}
	part := model["parts"].([]any)[0].(map[string]any)
	fc := part["functionCall"].(map[string]any)
	if fc["name"] != "get_weather" || fc["args"].(map[string]any)["location"] != "Tokyo" {
		t.Errorf("Unexpected functionCall echo %v", fc)
	}
	if part["thoughtSignature"] != "sig-abc" {
		t.Errorf("Expected thoughtSignature echo, got %v", part["thoughtSignature"])
	}

	user := contents[2].(map[string]any)
	if user["role"] != "user" {
		t.Errorf("Expected function response in a user turn, got %v", user["role"])
	}
	fr := user["parts"].([]any)[0].(map[string]any)["functionResponse"].(map[string]any)
	if fr["name"] != "get_weather" {
		t.Errorf("Unexpected functionResponse name %v", fr["name"])
	}
	result := fr["response"].(map[string]any)["result"].(map[string]any)
	if result["location"] != "Tokyo (JP)" {
		t.Errorf("Unexpected functionResponse payload %v", result)
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	resp, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	if err != nil {
		t.Fatalf("Blocked prompt should not be an error: %v", err)
	}
	if resp.Message.Content != "" || resp.FinishReason != "SAFETY" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestGeminiAPIError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := g.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Message != "API key not valid" || apiErr.Code != "INVALID_ARGUMENT" || apiErr.Provider != "gemini" {
		t.Errorf("Unexpected error %+v", apiErr)
	}
}

func TestGeminiToolMode(t *testing.T) {
	cases := map[string]string{"auto": "AUTO", "none": "NONE", "required": "ANY", "": ""}
	for in, want := range cases {
		if got := geminiToolMode(in); got != want {
			t.Errorf("geminiToolMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeResponseWrapsNonObjects(t *testing.T) {
	if got := decodeResponse("plain text"); got["result"] != "plain text" {
		t.Errorf("Expected wrapped text, got %v", got)
	}
	if got := decodeResponse(`{"a":1}`); got["a"] != float64(1) {
		t.Errorf("Expected decoded object, got %v", got)
	}
}
