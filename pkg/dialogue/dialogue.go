// Package dialogue drives one question/answer turn with the AI backend.
//
// The Orchestrator sends the user text together with the declared tools. If
// the backend answers directly, the text is compressed once for the display.
// If it asks for a tool, the first requested tool is executed through the
// registry, its result is fed back, and the backend's final text is
// compressed. Only one tool hop is executed per turn.
package dialogue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/go-pivoice/internal/telemetry"
	"github.com/teslashibe/go-pivoice/pkg/inference"
	"github.com/teslashibe/go-pivoice/pkg/tool"
)

const tracerName = "github.com/teslashibe/go-pivoice/pkg/dialogue"

// Options configures an Orchestrator.
type Options struct {
	// Cols and Rows size the display the answer must fit.
	Cols int
	Rows int

	// SystemPrompt is prepended to the decision exchange when non-empty.
	SystemPrompt string

	// MaxTokens bounds each backend call. Zero uses the provider default.
	MaxTokens int

	// OnState observes state transitions.
	OnState func(State)

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Option mutates Options.
type Option func(*Options)

// WithDisplaySize sets the display geometry used in the compression prompts.
func WithDisplaySize(cols, rows int) Option {
	return func(o *Options) { o.Cols, o.Rows = cols, rows }
}

// WithSystemPrompt sets an optional system instruction.
func WithSystemPrompt(p string) Option {
	return func(o *Options) { o.SystemPrompt = p }
}

// WithMaxTokens bounds each backend call.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithStateHook registers a transition observer.
func WithStateHook(fn func(State)) Option {
	return func(o *Options) { o.OnState = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithTracer sets the tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Options) { o.Tracer = t }
}

// Orchestrator runs the tool-calling exchange. It holds no per-turn state
// and may be reused across turns.
type Orchestrator struct {
	provider inference.Provider
	tools    *tool.Registry
	decls    []inference.Tool
	opts     Options
	logger   *slog.Logger
}

// New creates an Orchestrator over provider with the tools in reg.
func New(provider inference.Provider, reg *tool.Registry, opts ...Option) *Orchestrator {
	o := Options{Cols: 16, Rows: 2}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Tracer == nil {
		o.Tracer = telemetry.Tracer(tracerName)
	}
	if reg == nil {
		reg, _ = tool.NewRegistry()
	}

	return &Orchestrator{
		provider: provider,
		tools:    reg,
		decls:    Declarations(reg),
		opts:     o,
		logger:   o.Logger.With("component", "dialogue"),
	}
}

// Declarations converts registry entries into backend tool declarations.
func Declarations(reg *tool.Registry) []inference.Tool {
	defs := reg.Definitions()
	out := make([]inference.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, inference.NewTool(string(d.Name), d.Description, d.Schema()))
	}
	return out
}

// Answer produces a display-ready reply to userText. Missing text from the
// backend yields "" rather than an error. Backend failures are returned as
// *Error; tool failures are fed back to the backend as failed results.
func (o *Orchestrator) Answer(ctx context.Context, userText string) (answer string, err error) {
	ctx, span := o.opts.Tracer.Start(ctx, "dialogue.answer")
	defer func() {
		telemetry.Fail(span, err)
		span.SetAttributes(attribute.Int("answer.length", len([]rune(answer))))
		span.End()
		o.setState(Done)
	}()

	o.setState(AwaitingDecision)

	turn := make([]inference.Message, 0, 4)
	if o.opts.SystemPrompt != "" {
		turn = append(turn, inference.NewSystemMessage(o.opts.SystemPrompt))
	}
	turn = append(turn, inference.NewUserMessage(userText))

	decision, err := o.chat(ctx, StageDecide, turn, o.decls)
	if err != nil {
		return "", err
	}

	if !decision.HasToolCalls() {
		o.logger.Debug("direct answer", "text", decision.Message.Content)
		o.setState(ComposingFinal)
		return o.compose(ctx, directPrompt(o.opts.Cols, o.opts.Rows, userText))
	}

	calls := decision.Message.ToolCalls
	if len(calls) > 1 {
		dropped := make([]string, 0, len(calls)-1)
		for _, c := range calls[1:] {
			dropped = append(dropped, c.Name)
		}
		o.logger.Warn("multiple tool calls requested, executing only the first",
			"executed", calls[0].Name,
			"dropped", dropped,
		)
	}
	call := calls[0]

	o.setState(ToolRequested)
	span.SetAttributes(attribute.String("tool.name", call.Name))

	result, terr := o.tools.Execute(ctx, call.Name, call.Arguments)
	if terr != nil {
		o.logger.Warn("tool call rejected", "tool", call.Name, "error", terr)
	}
	o.logger.Info("tool executed", "tool", call.Name, "ok", result.OK)
	span.AddEvent("tool.executed", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.Bool("tool.ok", result.OK),
	))
	o.setState(ToolExecuted)

	content, err := json.Marshal(map[string]any{"result": result})
	if err != nil {
		// Result maps only hold JSON-decoded values and tool payload scalars.
		content = []byte(`{"result":{"ok":false,"error":"unencodable tool result"}}`)
	}

	// Echo only the executed call so every call in the exchange has a result.
	echo := inference.Message{
		Role:      inference.RoleAssistant,
		Content:   decision.Message.Content,
		ToolCalls: []inference.ToolCall{call},
	}
	turn = append(turn, echo, inference.NewToolMessage(call, string(content)))

	followUp, err := o.chat(ctx, StageFollowUp, turn, o.decls)
	if err != nil {
		return "", err
	}
	if followUp.HasToolCalls() {
		o.logger.Warn("backend requested another tool, ignoring", "tool", followUp.Message.ToolCalls[0].Name)
	}

	o.setState(ComposingFinal)
	return o.compose(ctx, rewritePrompt(o.opts.Cols, o.opts.Rows, followUp.Message.Content))
}

// compose runs the compression call. No tools are attached.
func (o *Orchestrator) compose(ctx context.Context, prompt string) (string, error) {
	resp, err := o.chat(ctx, StageCompose, []inference.Message{inference.NewUserMessage(prompt)}, nil)
	if err != nil {
		return "", err
	}
	return clean(resp.Message.Content), nil
}

func (o *Orchestrator) chat(ctx context.Context, stage Stage, msgs []inference.Message, tools []inference.Tool) (*inference.ChatResponse, error) {
	ctx, span := o.opts.Tracer.Start(ctx, "dialogue."+string(stage))
	defer span.End()

	resp, err := o.provider.Chat(ctx, &inference.ChatRequest{
		Messages:  msgs,
		Tools:     tools,
		MaxTokens: o.opts.MaxTokens,
	})
	if err != nil {
		err = &Error{Stage: stage, Err: err}
		telemetry.Fail(span, err)
		o.logger.Error("backend call failed", "stage", stage, "error", err)
		return nil, err
	}
	if resp == nil {
		resp = &inference.ChatResponse{}
	}

	span.SetAttributes(
		attribute.String("provider", resp.Provider),
		attribute.Int("tool_calls", len(resp.Message.ToolCalls)),
		attribute.Int64("latency_ms", resp.LatencyMs),
	)
	o.logger.Debug("backend call",
		"stage", stage,
		"provider", resp.Provider,
		"latency_ms", resp.LatencyMs,
		"tool_calls", len(resp.Message.ToolCalls),
	)
	return resp, nil
}

func (o *Orchestrator) setState(s State) {
	if o.opts.OnState != nil {
		o.opts.OnState(s)
	}
}

// clean trims surrounding whitespace and keeps the rest verbatim.
// Line breaks are folded later by display.Split.
func clean(s string) string {
	return strings.TrimSpace(s)
}
