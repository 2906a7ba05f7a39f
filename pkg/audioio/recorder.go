package audioio

import (
	"context"
	"fmt"
	"time"
)

// Recorder captures a fixed-length clip to a WAV file at path,
// overwriting whatever was there.
type Recorder interface {
	Record(ctx context.Context, path string, duration time.Duration) error
}

// RecordingError reports a capture that did not produce a usable file.
type RecordingError struct {
	Device string
	Err    error
}

// Error implements the error interface.
func (e *RecordingError) Error() string {
	return fmt.Sprintf("recording on %s failed: %v", e.Device, e.Err)
}

// Unwrap returns the underlying error.
func (e *RecordingError) Unwrap() error {
	return e.Err
}
