// Package audioio captures microphone audio to a WAV file.
//
// Production capture shells out to ALSA's arecord; Mock writes a synthetic
// file for CI and machines without a microphone.
package audioio

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Defaults matching a USB microphone on the second ALSA card.
const (
	DefaultDevice   = "plughw:2,0"
	DefaultCommand  = "arecord"
	DefaultDuration = 6 * time.Second
)

// Config holds capture configuration.
type Config struct {
	// Device is the ALSA PCM name, e.g. "plughw:2,0" or "default".
	Device string

	// Command is the arecord binary. Default: "arecord" from PATH.
	Command string

	// Logger receives capture events. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Device:  DefaultDevice,
		Command: DefaultCommand,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("audioio: device required")
	}
	if c.Command == "" {
		return fmt.Errorf("audioio: command required")
	}
	return nil
}

// Seconds converts a capture duration to the whole seconds arecord accepts,
// rounding up and never going below one.
func Seconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
