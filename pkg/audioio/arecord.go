package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ARecord records CD-quality WAV through the arecord command.
type ARecord struct {
	device  string
	command string
	logger  *slog.Logger
}

// NewARecord creates an arecord-backed recorder.
func NewARecord(cfg Config) (*ARecord, error) {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ARecord{
		device:  cfg.Device,
		command: cfg.Command,
		logger:  logger.With("component", "audioio.arecord"),
	}, nil
}

// Args returns the arecord argument list for one capture.
func (a *ARecord) Args(path string, duration time.Duration) []string {
	return []string{
		"-D", a.device,
		"-f", "cd",
		"-t", "wav",
		"-d", strconv.Itoa(Seconds(duration)),
		"-q",
		path,
	}
}

// Record implements Recorder. It blocks for the whole capture.
func (a *ARecord) Record(ctx context.Context, path string, duration time.Duration) error {
	start := time.Now()
	args := a.Args(path, duration)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.command, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	a.logger.Debug("recording", "device", a.device, "path", path, "seconds", Seconds(duration))

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &RecordingError{Device: a.device, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return &RecordingError{Device: a.device, Err: fmt.Errorf("no output: %w", err)}
	}
	if info.Size() == 0 {
		return &RecordingError{Device: a.device, Err: errors.New("empty output file")}
	}

	a.logger.Info("recorded",
		"path", path,
		"bytes", info.Size(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

var _ Recorder = (*ARecord)(nil)
