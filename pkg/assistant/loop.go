// Package assistant runs the push-to-talk interaction loop: wait for the
// switch, record, transcribe, answer, show the answer, wait for release.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/go-pivoice/internal/telemetry"
	"github.com/teslashibe/go-pivoice/pkg/audioio"
	"github.com/teslashibe/go-pivoice/pkg/display"
	"github.com/teslashibe/go-pivoice/pkg/gpio"
	"github.com/teslashibe/go-pivoice/pkg/stt"
)

const tracerName = "github.com/teslashibe/go-pivoice/pkg/assistant"

// Answerer produces a display-sized reply to a transcript.
type Answerer interface {
	Answer(ctx context.Context, userText string) (string, error)
}

// Deps are the loop's collaborators. All are required.
type Deps struct {
	Switch      gpio.Source
	Display     display.Sink
	Recorder    audioio.Recorder
	Transcriber stt.Transcriber
	Dialogue    Answerer
}

func (d Deps) validate() error {
	var missing []string
	if d.Switch == nil {
		missing = append(missing, "switch")
	}
	if d.Display == nil {
		missing = append(missing, "display")
	}
	if d.Recorder == nil {
		missing = append(missing, "recorder")
	}
	if d.Transcriber == nil {
		missing = append(missing, "transcriber")
	}
	if d.Dialogue == nil {
		missing = append(missing, "dialogue")
	}
	if len(missing) > 0 {
		return fmt.Errorf("assistant: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithTracer sets the tracer used for turn spans.
func WithTracer(t trace.Tracer) Option {
	return func(lp *Loop) { lp.tracer = t }
}

// WithStateHook registers fn to observe every state change.
func WithStateHook(fn func(State)) Option {
	return func(lp *Loop) { lp.onState = fn }
}

// WithSleep replaces the pause implementation.
func WithSleep(fn SleepFunc) Option {
	return func(lp *Loop) { lp.sleep = fn }
}

// Status is a snapshot of the loop for the web panel.
type Status struct {
	State          State     `json:"state"`
	TurnID         string    `json:"turn_id,omitempty"`
	Turns          int       `json:"turns"`
	LastTranscript string    `json:"last_transcript,omitempty"`
	LastAnswer     string    `json:"last_answer,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Loop is the interaction loop. It handles one turn at a time.
type Loop struct {
	deps    Deps
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
	sleep   SleepFunc
	onState func(State)

	mu     sync.Mutex
	status Status
}

// New creates a loop.
func New(deps Deps, cfg Config, opts ...Option) (*Loop, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.Cols <= 0 {
		return nil, fmt.Errorf("assistant: display width must be positive, got %d", cfg.Cols)
	}

	l := &Loop{
		deps:   deps,
		cfg:    cfg,
		logger: slog.Default(),
		sleep:  sleepContext,
		status: Status{State: Ready, UpdatedAt: time.Now()},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracer == nil {
		l.tracer = telemetry.Tracer(tracerName)
	}
	l.logger = l.logger.With("component", "assistant")
	return l, nil
}

// Run shows the ready screen and handles turns until ctx is done.
// Per-turn failures never stop the loop. It returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("assistant ready", "audio_path", l.cfg.AudioPath)
	l.ready()

	for {
		err := l.RunOnce(ctx)
		if ctx.Err() != nil {
			l.logger.Info("assistant stopped", "turns", l.Status().Turns)
			return nil
		}
		if err != nil {
			l.logger.Warn("switch wait failed", "error", err)
			if l.sleep(ctx, l.cfg.ErrorPause) != nil {
				return nil
			}
		}
	}
}

// RunOnce waits for the switch, handles one turn, shows the ready screen
// and waits for the switch to be released. Only switch and context errors
// are returned; turn failures are shown on the display.
func (l *Loop) RunOnce(ctx context.Context) error {
	if err := l.deps.Switch.WaitForActivation(ctx); err != nil {
		return err
	}

	l.turn(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	l.ready()
	return l.deps.Switch.WaitForRelease(ctx)
}

func (l *Loop) turn(ctx context.Context) {
	id := uuid.NewString()
	logger := l.logger.With("turn_id", id)

	ctx, span := l.tracer.Start(ctx, "assistant.turn", trace.WithAttributes(attribute.String("turn_id", id)))
	defer span.End()

	l.update(func(s *Status) {
		s.TurnID = id
		s.Turns++
		s.LastError = ""
	})
	start := time.Now()

	fail := func(stage string, err error) {
		if ctx.Err() != nil {
			logger.Info("turn interrupted", "stage", stage)
			return
		}
		telemetry.Fail(span, err)
		logger.Error("turn failed", "stage", stage, "error", err)
		l.update(func(s *Status) { s.LastError = err.Error() })
		l.enter(Error)
		l.show(errorText, display.Truncate(err.Error(), l.cfg.Cols))
		l.pause(ctx, l.cfg.ErrorPause)
	}

	logger.Info("switch on, recording", "seconds", audioio.Seconds(l.cfg.RecordDuration))
	l.enter(Listening)
	l.show(listeningText, "")
	if err := l.deps.Recorder.Record(ctx, l.cfg.AudioPath, l.cfg.RecordDuration); err != nil {
		fail("record", err)
		return
	}

	l.enter(Transcribing)
	l.show(transcribingText, "")
	text, err := l.deps.Transcriber.Transcribe(ctx, l.cfg.AudioPath)
	if err != nil {
		fail("transcribe", err)
		return
	}
	text = strings.TrimSpace(text)
	l.update(func(s *Status) { s.LastTranscript = text })
	logger.Info("transcript", "text", text)

	if text == "" {
		span.SetAttributes(attribute.Bool("no_speech", true))
		l.enter(NoSpeech)
		l.show(noSpeechLine1, noSpeechLine2)
		l.pause(ctx, l.cfg.NoSpeechPause)
		return
	}

	l.enter(Thinking)
	l.show(thinkingText, "")
	answer, err := l.deps.Dialogue.Answer(ctx, text)
	if err != nil {
		fail("answer", err)
		return
	}
	l.update(func(s *Status) { s.LastAnswer = answer })

	line1, line2 := display.Split(answer, l.cfg.Cols)
	logger.Info("answer", "text", answer, "elapsed", time.Since(start).Round(time.Millisecond))
	l.enter(Answered)
	l.show(line1, line2)
	l.pause(ctx, l.cfg.AnswerDwell)
}

// Status returns a snapshot of the loop.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Loop) ready() {
	l.enter(Ready)
	l.show(l.cfg.ReadyLine1, l.cfg.ReadyLine2)
}

func (l *Loop) enter(s State) {
	l.update(func(st *Status) { st.State = s })
	if l.onState != nil {
		l.onState(s)
	}
}

func (l *Loop) update(fn func(*Status)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.status)
	l.status.UpdatedAt = time.Now()
}

// show writes to the display. A failing display never aborts a turn.
func (l *Loop) show(line1, line2 string) {
	if err := l.deps.Display.Show(line1, line2); err != nil {
		l.logger.Warn("display write failed", "error", err)
	}
}

func (l *Loop) pause(ctx context.Context, d time.Duration) {
	if err := l.sleep(ctx, d); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Debug("pause interrupted", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
