package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teslashibe/go-pivoice/internal/httpc"
)

const providerAnthropic = "anthropic"

// Anthropic implements the Provider interface on top of the official
// Messages API SDK. Tool calls map to tool_use blocks and tool results to
// tool_result blocks inside a user turn.
type Anthropic struct {
	client anthropic.Client
	config *Config
	logger *slog.Logger
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(opts ...Option) (*Anthropic, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = string(anthropic.ModelClaude3_5HaikuLatest)
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerAnthropic, ErrNoAPIKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerAnthropic, err)
	}
	if cfg.MaxTokens <= 0 {
		// The Messages API requires max_tokens.
		cfg.MaxTokens = 1024
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithHTTPClient(httpc.Or(cfg.HTTPClient, cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client: anthropic.NewClient(clientOpts...),
		config: cfg,
		logger: cfg.Logger.With("component", "inference.anthropic"),
	}, nil
}

// Chat generates a response using the Messages API.
func (a *Anthropic) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.config.MaxTokens
	}

	system, msgs := splitSystem(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  a.convertMessages(msgs),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if temp := req.Temperature; temp > 0 {
		params.Temperature = anthropic.Float(temp)
	} else if a.config.Temperature > 0 {
		params.Temperature = anthropic.Float(a.config.Temperature)
	}
	for _, t := range req.Tools {
		tp := a.convertTool(t)
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &tp})
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.wrapError(err)
	}

	out := &ChatResponse{
		Message:      Message{Role: RoleAssistant},
		FinishReason: string(msg.StopReason),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Model:    string(msg.Model),
		Provider: providerAnthropic,
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := strings.TrimSpace(string(b.Input))
			if args == "" || args == "null" {
				args = "{}"
			}
			out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	out.Message.Content = text.String()
	out.LatencyMs = time.Since(start).Milliseconds()

	return out, nil
}

// Capabilities returns Anthropic's capabilities.
func (a *Anthropic) Capabilities() Capabilities {
	return Capabilities{Chat: true, Tools: true}
}

// Health checks API connectivity with a one-token request.
func (a *Anthropic) Health(ctx context.Context) error {
	_, err := a.Chat(ctx, &ChatRequest{
		Messages:  []Message{NewUserMessage("ping")},
		MaxTokens: 1,
	})
	return err
}

// Close releases resources.
func (a *Anthropic) Close() error {
	return nil
}

// convertMessages maps the conversation onto Messages API turns.
// Consecutive tool results share one user turn.
func (a *Anthropic) convertMessages(msgs []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	lastWasTool := false

	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, decodeArgs(tc.Arguments), tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			lastWasTool = false

		case RoleTool:
			block := anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if lastWasTool {
				last := &out[len(out)-1]
				last.Content = append(last.Content, block)
				continue
			}
			out = append(out, anthropic.NewUserMessage(block))
			lastWasTool = true

		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			lastWasTool = false
		}
	}
	return out
}

func (a *Anthropic) convertTool(t Tool) anthropic.ToolParam {
	tp := anthropic.ToolParam{
		Name:        t.Function.Name,
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: t.Function.Parameters["properties"],
			Required:   requiredParams(t.Function.Parameters["required"]),
		},
	}
	if t.Function.Description != "" {
		tp.Description = anthropic.String(t.Function.Description)
	}
	return tp
}

// requiredParams accepts the list as built in Go or as decoded from JSON.
func requiredParams(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}

// wrapError converts SDK errors into APIError where a status is known.
func (a *Anthropic) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		var body struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil && body.Error.Message != "" {
			return &APIError{
				StatusCode: apiErr.StatusCode,
				Message:    body.Error.Message,
				Code:       body.Error.Type,
				Provider:   providerAnthropic,
			}
		}
		return &APIError{StatusCode: apiErr.StatusCode, Message: msg, Provider: providerAnthropic}
	}
	return WrapError(providerAnthropic, fmt.Errorf("messages: %w", err))
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)
