package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/harshul/relic/internal/supervisor"
)

// ConsoleSink prints process output as timestamped lines
//
//	[15:04:05] [source] content
type ConsoleSink struct {
	w          io.Writer
	styles     *Styles
	timeFormat string
	now        func() time.Time
	mu         sync.Mutex
}

// NewConsoleSink creates a sink writing to w
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{
		w:          w,
		styles:     NewStyles(lipgloss.NewRenderer(w)),
		timeFormat: "15:04:05",
		now:        time.Now,
	}
}

// Log writes a single line for source
func (s *ConsoleSink) Log(source, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := s.styles.Timestamp.Render("[" + s.now().Format(s.timeFormat) + "]")
	fmt.Fprintf(s.w, "%s [%s] %s\n", timestamp, s.styles.Source.Render(source), content)
}

// Listener returns a supervisor listener that logs every output line
func (s *ConsoleSink) Listener() supervisor.Listener {
	return supervisor.Listener{
		OnOutput: func(o supervisor.Output) {
			s.Log(o.Source, o.Content)
		},
	}
}
