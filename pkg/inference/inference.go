// Package inference provides a unified interface for chat models with tool calling.
//
// The package abstracts chat completions behind a single Provider interface so
// the dialogue can switch between Gemini, any OpenAI-compatible API and
// Anthropic without changing its protocol logic. Tool-invocation requests from
// every backend are normalised into Message.ToolCalls.
//
// Example usage:
//
//	g, _ := inference.NewGemini(
//	    inference.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	    inference.WithModel("gemini-2.5-flash"),
//	)
//	defer g.Close()
//
//	resp, _ := g.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{
//	        inference.NewUserMessage("What's the weather in Tokyo?"),
//	    },
//	    Tools: tools,
//	})
//	if len(resp.Message.ToolCalls) > 0 {
//	    // dispatch the call, then append the result with NewToolMessage
//	}
package inference

import "context"

// Provider is the unified chat interface.
// All implementations must satisfy this interface.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Capabilities returns what features this provider supports.
	Capabilities() Capabilities

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Capabilities describes what features a provider supports.
type Capabilities struct {
	Chat  bool // Supports chat completions
	Tools bool // Supports function/tool calling
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation history.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// Tools available for the model to call.
	Tools []Tool

	// ToolChoice controls tool use: "auto", "none", "required".
	ToolChoice string
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// Provider names the backend that answered.
	Provider string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// HasToolCalls reports whether the model asked for a tool.
func (r *ChatResponse) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
