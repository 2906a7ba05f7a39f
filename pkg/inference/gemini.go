package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-pivoice/internal/httpc"
)

const providerGemini = "gemini"

// Gemini implements the Provider interface for Google's Gemini API.
// Gemini uses a different API format than OpenAI, so we implement it directly.
// Tool calls map to functionCall parts and tool results to functionResponse parts.
type Gemini struct {
	apiKey string
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.5-flash"
	// Thinking models spend output tokens before answering; leave unbounded.
	cfg.MaxTokens = 0
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapError(providerGemini, err)
	}

	return &Gemini{
		apiKey: cfg.APIKey,
		config: cfg,
		http:   httpc.Or(cfg.HTTPClient, cfg.Timeout),
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a chat completion using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	body, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(g.config.BaseURL, "/"), model, url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error != nil && result.Error.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Provider:   providerGemini,
		}
	}

	out := &ChatResponse{
		Message: Message{Role: RoleAssistant},
		Usage: Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		},
		Model:    model,
		Provider: providerGemini,
	}

	// A blocked prompt has no candidates; treat it as an empty answer.
	if len(result.Candidates) == 0 {
		out.FinishReason = result.PromptFeedback.BlockReason
		out.LatencyMs = time.Since(start).Milliseconds()
		g.logger.Warn("no candidates returned", "block_reason", out.FinishReason)
		return out, nil
	}

	cand := result.Candidates[0]
	out.FinishReason = cand.FinishReason

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			out.Message.ToolCalls = append(out.Message.ToolCalls, g.toToolCall(p))
		case p.Thought:
			// thought summaries are not part of the answer
		case p.Text != "":
			text.WriteString(p.Text)
		}
	}
	out.Message.Content = text.String()
	out.LatencyMs = time.Since(start).Milliseconds()

	return out, nil
}

// Capabilities returns Gemini's capabilities.
func (g *Gemini) Capabilities() Capabilities {
	return Capabilities{Chat: true, Tools: true}
}

// Health checks API connectivity by fetching the model metadata.
func (g *Gemini) Health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models/%s?key=%s",
		strings.TrimSuffix(g.config.BaseURL, "/"), g.config.Model, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return WrapError(providerGemini, err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return WrapError(providerGemini, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

func (g *Gemini) buildRequest(req *ChatRequest) geminiRequest {
	system, msgs := splitSystem(req.Messages)

	out := geminiRequest{Contents: g.convertMessages(msgs)}
	if system != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDecl, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = geminiFunctionDecl{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			}
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}

		if mode := geminiToolMode(req.ToolChoice); mode != "" {
			out.ToolConfig = &geminiToolConfig{FunctionCallingConfig: geminiFunctionCallingConfig{Mode: mode}}
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}
	if maxTokens > 0 || temp > 0 {
		out.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: maxTokens, Temperature: temp}
	}

	return out
}

// convertMessages converts our Message format to Gemini's contents.
// Consecutive tool results are merged into one user turn, as Gemini expects
// all function responses for a model turn together.
func (g *Gemini) convertMessages(msgs []Message) []geminiContent {
	var contents []geminiContent

	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			c := geminiContent{Role: "model"}
			if msg.Content != "" {
				c.Parts = append(c.Parts, geminiPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				c.Parts = append(c.Parts, geminiPart{
					FunctionCall:     &geminiFunctionCall{Name: tc.Name, Args: decodeArgs(tc.Arguments)},
					ThoughtSignature: tc.Signature,
				})
			}
			contents = append(contents, c)

		case RoleTool:
			part := geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     msg.Name,
				Response: decodeResponse(msg.Content),
			}}
			if n := len(contents); n > 0 && contents[n-1].Role == "user" && contents[n-1].Parts[0].FunctionResponse != nil {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{part}})

		default:
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	return contents
}

func (g *Gemini) toToolCall(p geminiPart) ToolCall {
	id := p.FunctionCall.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args := "{}"
	if len(p.FunctionCall.Args) > 0 {
		if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
			args = string(b)
		}
	}
	return ToolCall{
		ID:        id,
		Name:      p.FunctionCall.Name,
		Arguments: args,
		Signature: p.ThoughtSignature,
	}
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Status
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerGemini,
	}
}

func geminiToolMode(choice string) string {
	switch choice {
	case "auto":
		return "AUTO"
	case "none":
		return "NONE"
	case "required":
		return "ANY"
	}
	return ""
}

// decodeArgs parses a JSON argument string into an object.
func decodeArgs(s string) map[string]any {
	args := map[string]any{}
	if s = strings.TrimSpace(s); s != "" {
		_ = json.Unmarshal([]byte(s), &args)
	}
	return args
}

// decodeResponse turns tool message content into the object Gemini requires.
// Non-object content is wrapped under "result".
func decodeResponse(s string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": s}
}

// Gemini wire types.
type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	ToolConfig        *geminiToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	Thought          bool                    `json:"thought,omitempty"`
	ThoughtSignature string                  `json:"thoughtSignature,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiToolConfig struct {
	FunctionCallingConfig geminiFunctionCallingConfig `json:"functionCallingConfig"`
}

type geminiFunctionCallingConfig struct {
	Mode string `json:"mode"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
