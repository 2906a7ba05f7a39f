package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console draws the display as a bordered box on a terminal.
type Console struct {
	w     io.Writer
	cols  int
	style lipgloss.Style

	mu sync.Mutex
}

// NewConsole creates a console display cols runes wide.
func NewConsole(w io.Writer, cols int) *Console {
	return &Console{
		w:    w,
		cols: cols,
		style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Foreground(lipgloss.Color("120")).
			Background(lipgloss.Color("22")),
	}
}

// Show implements Sink.
func (c *Console) Show(line1, line2 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := []string{c.pad(line1), c.pad(line2)}
	_, err := fmt.Fprintln(c.w, c.style.Render(strings.Join(rows, "\n")))
	return err
}

// Close implements Sink.
func (c *Console) Close() error { return nil }

func (c *Console) pad(s string) string {
	s = Truncate(s, c.cols)
	if n := len([]rune(s)); n < c.cols {
		s += strings.Repeat(" ", c.cols-n)
	}
	return s
}
