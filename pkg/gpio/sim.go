package gpio

import (
	"context"
	"sync"
)

// Sim is a switch driven in software by Press and Release. The web panel and
// tests use it in place of the hardware line.
type Sim struct {
	mu      sync.Mutex
	active  bool
	changed chan struct{}
	closed  bool
}

// NewSim returns a released simulated switch.
func NewSim() *Sim {
	return &Sim{changed: make(chan struct{})}
}

// Press turns the switch on. Pressing an active switch does nothing.
func (s *Sim) Press() { s.set(true) }

// Release turns the switch off.
func (s *Sim) Release() { s.set(false) }

func (s *Sim) set(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == active || s.closed {
		return
	}
	s.active = active
	close(s.changed)
	s.changed = make(chan struct{})
}

// IsActive implements Source.
func (s *Sim) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// WaitForActivation implements Source.
func (s *Sim) WaitForActivation(ctx context.Context) error {
	return s.waitFor(ctx, true)
}

// WaitForRelease implements Source.
func (s *Sim) WaitForRelease(ctx context.Context) error {
	return s.waitFor(ctx, false)
}

func (s *Sim) waitFor(ctx context.Context, want bool) error {
	for {
		s.mu.Lock()
		active, changed := s.active, s.changed
		s.mu.Unlock()

		if active == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Close freezes the switch in its current state.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Source = (*Sim)(nil)
