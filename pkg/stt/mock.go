package stt

import (
	"context"
	"sync"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, Text and Err are returned.
	TranscribeFunc func(ctx context.Context, audioPath string) (string, error)

	Text string
	Err  error

	mu    sync.Mutex
	calls []string
}

// NewMock returns a mock that always transcribes to text.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// WithError returns a mock whose transcriptions all fail with err.
func WithError(err error) *Mock {
	return &Mock{Err: &TranscriptionError{Provider: "mock", Err: err}}
}

// Transcribe records the call and returns the configured result.
func (m *Mock) Transcribe(ctx context.Context, audioPath string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, audioPath)
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audioPath)
	}
	return m.Text, m.Err
}

// Calls returns the audio paths passed to Transcribe.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var _ Transcriber = (*Mock)(nil)
