// Package display renders two-line payloads on a character display.
package display

import (
	"errors"
	"strings"
	"sync"
)

// Sink shows a two-line payload. Show replaces the entire visible content;
// runes past the display width are dropped.
type Sink interface {
	Show(line1, line2 string) error
	Close() error
}

// Truncate returns at most cols runes of s.
func Truncate(s string, cols int) string {
	if cols <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= cols {
		return s
	}
	return string(r[:cols])
}

// Split folds text onto two display rows: the first cols runes and the next
// cols runes, after trimming and turning line breaks into spaces. There is no
// word wrapping.
func Split(text string, cols int) (string, string) {
	t := strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(text))
	r := []rune(t)
	if cols <= 0 {
		return "", ""
	}
	if len(r) <= cols {
		return string(r), ""
	}
	end := 2 * cols
	if end > len(r) {
		end = len(r)
	}
	return string(r[:cols]), string(r[cols:end])
}

// Tee writes every payload to all sinks. It returns the first error after
// all sinks have been written.
type Tee []Sink

// Show implements Sink.
func (t Tee) Show(line1, line2 string) error {
	var first error
	for _, s := range t {
		if err := s.Show(line1, line2); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every sink.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Payload is one displayed screen.
type Payload struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Recorder remembers every payload shown. Safe for concurrent use.
type Recorder struct {
	// Err, when set, is returned from Show after recording.
	Err error

	mu     sync.Mutex
	shown  []Payload
	closed bool
}

// Show implements Sink.
func (r *Recorder) Show(line1, line2 string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, Payload{Line1: line1, Line2: line2})
	return r.Err
}

// Close implements Sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Shown returns a copy of all payloads in order.
func (r *Recorder) Shown() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.shown...)
}

// Last returns the most recent payload.
func (r *Recorder) Last() (Payload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.shown) == 0 {
		return Payload{}, false
	}
	return r.shown[len(r.shown)-1], true
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
