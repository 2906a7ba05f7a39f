package web

import (
	"sync"

	"github.com/teslashibe/go-pivoice/pkg/display"
	"github.com/teslashibe/go-pivoice/pkg/hub"
)

// Mirror is a display.Sink that publishes every screen to websocket clients.
type Mirror struct {
	hub *hub.Hub

	mu      sync.RWMutex
	current display.Payload
}

// NewMirror creates a mirror broadcasting on h.
func NewMirror(h *hub.Hub) *Mirror {
	return &Mirror{hub: h}
}

// Show implements display.Sink.
func (m *Mirror) Show(line1, line2 string) error {
	p := display.Payload{Line1: line1, Line2: line2}
	m.mu.Lock()
	m.current = p
	m.mu.Unlock()
	return m.hub.BroadcastJSON(p)
}

// Close implements display.Sink.
func (m *Mirror) Close() error { return nil }

// Current returns the last payload shown.
func (m *Mirror) Current() display.Payload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

var _ display.Sink = (*Mirror)(nil)
