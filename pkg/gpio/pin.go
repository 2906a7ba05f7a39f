package gpio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultPollInterval is how long a single edge wait blocks before the
// context is checked again.
const DefaultPollInterval = 100 * time.Millisecond

// Line is the part of a periph pin the switch needs.
type Line interface {
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
}

// PinConfig configures a hardware switch.
type PinConfig struct {
	Name         string // periph pin name, e.g. "GPIO17"
	Debounce     time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Pin is an active-high switch on a GPIO line with a pull-down.
type Pin struct {
	line     Line
	name     string
	debounce time.Duration
	poll     time.Duration
	logger   *slog.Logger
}

// OpenPin initialises the host drivers and configures the named line as a
// pulled-down input with edge detection on both edges.
func OpenPin(cfg PinConfig) (*Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init: %w", err)
	}
	p := gpioreg.ByName(cfg.Name)
	if p == nil {
		return nil, fmt.Errorf("gpio: no pin named %q", cfg.Name)
	}
	return configure(p, cfg)
}

func configure(p gpio.PinIn, cfg PinConfig) (*Pin, error) {
	if err := p.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("gpio: configure %s: %w", cfg.Name, err)
	}
	return NewPin(p, cfg), nil
}

// NewPin wraps an already configured line.
func NewPin(line Line, cfg PinConfig) *Pin {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pin{
		line:     line,
		name:     cfg.Name,
		debounce: cfg.Debounce,
		poll:     cfg.PollInterval,
		logger:   logger.With("component", "gpio", "pin", cfg.Name),
	}
}

// WaitForActivation implements Source.
func (p *Pin) WaitForActivation(ctx context.Context) error {
	return p.waitFor(ctx, gpio.High)
}

// WaitForRelease implements Source.
func (p *Pin) WaitForRelease(ctx context.Context) error {
	return p.waitFor(ctx, gpio.Low)
}

// IsActive implements Source.
func (p *Pin) IsActive() bool {
	return p.line.Read() == gpio.High
}

// Close implements Source. The line is left configured.
func (p *Pin) Close() error { return nil }

func (p *Pin) waitFor(ctx context.Context, want gpio.Level) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.line.Read() == want {
			if p.stable(ctx, want) {
				p.logger.Debug("switch level", "level", want)
				return nil
			}
			continue
		}
		p.line.WaitForEdge(p.poll)
	}
}

// stable reports whether the line still reads want after the debounce period.
func (p *Pin) stable(ctx context.Context, want gpio.Level) bool {
	if p.debounce <= 0 {
		return true
	}
	t := time.NewTimer(p.debounce)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	}
	return p.line.Read() == want
}

var _ Source = (*Pin)(nil)
