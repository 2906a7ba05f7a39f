package audioio

import (
	"bufio"
	"context"
	"math"
	"os"
	"sync"
	"time"
)

// Mock is a Recorder for tests and machines without a microphone. It writes
// a short mono WAV of silence, or a sine wave when configured.
type Mock struct {
	// Err, when set, is returned as a *RecordingError instead of writing.
	Err error

	// SampleRate of the generated file. Default: 8000.
	SampleRate int

	// Clip caps the generated length so tests stay fast. Default: 100ms.
	Clip time.Duration

	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one Record invocation.
type MockCall struct {
	Path     string
	Duration time.Duration
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockOption {
	return func(m *Mock) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// NewMock creates a mock recorder.
func NewMock(opts ...MockOption) *Mock {
	m := &Mock{SampleRate: 8000, Clip: 100 * time.Millisecond, amplitude: 0.5}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record implements Recorder.
func (m *Mock) Record(ctx context.Context, path string, duration time.Duration) error {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Path: path, Duration: duration})
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &RecordingError{Device: "mock", Err: err}
	}
	if m.Err != nil {
		return &RecordingError{Device: "mock", Err: m.Err}
	}

	n := int(min(duration, m.Clip).Seconds() * float64(m.SampleRate))
	f, err := os.Create(path)
	if err != nil {
		return &RecordingError{Device: "mock", Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteWAV(w, m.samples(n), m.SampleRate, 1); err != nil {
		return &RecordingError{Device: "mock", Err: err}
	}
	if err := w.Flush(); err != nil {
		return &RecordingError{Device: "mock", Err: err}
	}
	return nil
}

func (m *Mock) samples(n int) []int16 {
	samples := make([]int16, n)
	if m.frequency <= 0 {
		return samples
	}
	for i := range samples {
		v := m.amplitude * math.Sin(2*math.Pi*m.frequency*float64(i)/float64(m.SampleRate))
		samples[i] = int16(v * 32767)
	}
	return samples
}

// Calls returns a copy of every recorded invocation.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

var _ Recorder = (*Mock)(nil)
