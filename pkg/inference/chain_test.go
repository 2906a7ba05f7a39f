package inference

import (
	"context"
	"errors"
	"testing"
)

func TestChainFallback(t *testing.T) {
	ctx := context.Background()

	// First provider fails
	failing := WithError(errors.New("provider 1 failed"))

	// Second provider succeeds
	working := NewMock()
	working.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{
			Message:      NewAssistantMessage("From working provider"),
			FinishReason: "stop",
		}, nil
	}

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	defer chain.Close()

	resp, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}

	if resp.Message.Content != "From working provider" {
		t.Errorf("Unexpected response: %s", resp.Message.Content)
	}
}

func TestChainAllFail(t *testing.T) {
	ctx := context.Background()

	p1 := WithError(errors.New("provider 1 failed"))
	p2 := WithError(errors.New("provider 2 failed"))

	chain, _ := NewChain(p1, p2)
	defer chain.Close()

	_, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})

	if err == nil {
		t.Fatal("Expected error when all providers fail")
	}

	chainErr, ok := err.(*ChainError)
	if !ok {
		t.Fatalf("Expected ChainError, got %T", err)
	}

	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(chainErr.Errors))
	}
}

func TestChainSkipsProvidersWithoutTools(t *testing.T) {
	ctx := context.Background()

	noTools := NewMock()
	noTools.CapabilitiesOverride = &Capabilities{Chat: true}

	withTools := NewMock()
	withTools.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{Message: NewToolCallMessage(ToolCall{ID: "1", Name: "get_weather"})}, nil
	}

	chain, _ := NewChain(noTools, withTools)
	defer chain.Close()

	resp, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("Weather?")},
		Tools:    []Tool{weatherTool()},
	})
	if err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}
	if !resp.HasToolCalls() {
		t.Error("Expected the tool-capable provider to answer")
	}
	if noTools.CallCount("Chat") != 0 {
		t.Error("Provider without tools should be skipped for tool requests")
	}

	// Without tools the first provider answers.
	if _, err := chain.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("hi")}}); err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}
	if noTools.CallCount("Chat") != 1 {
		t.Error("Provider without tools should serve plain chat")
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	first := NewMock()
	first.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		cancel()
		return nil, errors.New("interrupted")
	}
	second := NewMock()

	chain, _ := NewChain(first, second)
	_, err := chain.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if second.CallCount("Chat") != 0 {
		t.Error("Second provider should not be tried after cancellation")
	}
}

func TestChainCapabilities(t *testing.T) {
	chatOnly := NewMock()
	chatOnly.CapabilitiesOverride = &Capabilities{Chat: true}

	toolsOnly := NewMock()
	toolsOnly.CapabilitiesOverride = &Capabilities{Tools: true}

	chain, _ := NewChain(chatOnly, toolsOnly)
	defer chain.Close()

	caps := chain.Capabilities()
	if !caps.Chat {
		t.Error("Expected Chat capability from chain")
	}
	if !caps.Tools {
		t.Error("Expected Tools capability from chain")
	}
}

func TestChainHealth(t *testing.T) {
	ctx := context.Background()

	// One healthy, one unhealthy
	healthy := NewMock()
	unhealthy := WithError(errors.New("unhealthy"))

	chain, _ := NewChain(healthy, unhealthy)
	defer chain.Close()

	// Should pass because at least one is healthy
	err := chain.Health(ctx)
	if err != nil {
		t.Errorf("Health check should pass with at least one healthy provider: %v", err)
	}
}

func TestChainHealthAllUnhealthy(t *testing.T) {
	ctx := context.Background()

	p1 := WithError(errors.New("unhealthy 1"))
	p2 := WithError(errors.New("unhealthy 2"))

	chain, _ := NewChain(p1, p2)
	defer chain.Close()

	err := chain.Health(ctx)
	if err == nil {
		t.Error("Health check should fail when all providers are unhealthy")
	}
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain()
	if err == nil {
		t.Error("Expected error for empty chain")
	}
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChainProviders(t *testing.T) {
	p1 := NewMock()
	p2 := NewMock()

	chain, _ := NewChain(p1, p2)
	defer chain.Close()

	providers := chain.Providers()
	if len(providers) != 2 {
		t.Errorf("Expected 2 providers, got %d", len(providers))
	}
}
