package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/harshul/relic/internal/launcher"
)

// ConsoleDialog shows dialogs as boxes on the console and reads the answer
// from a line of input. Without input the first button is chosen.
type ConsoleDialog struct {
	out    io.Writer
	lines  chan string
	styles *Styles

	mu      sync.Mutex
	nextID  int
	pending map[string]launcher.DialogOptions
}

// NewConsoleDialog creates a dialog writing to out and reading answers from
// in. in may be nil for a non-interactive console.
func NewConsoleDialog(out io.Writer, in io.Reader) *ConsoleDialog {
	d := &ConsoleDialog{
		out:     out,
		styles:  NewStyles(lipgloss.NewRenderer(out)),
		pending: make(map[string]launcher.DialogOptions),
	}
	if in != nil {
		d.lines = make(chan string)
		go d.readLines(in)
	}
	return d
}

func (d *ConsoleDialog) readLines(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		d.lines <- scanner.Text()
	}
	close(d.lines)
}

// Open renders the dialog and returns its id
func (d *ConsoleDialog) Open(ctx context.Context, opts launcher.DialogOptions) (string, error) {
	d.mu.Lock()
	d.nextID++
	id := strconv.Itoa(d.nextID)
	d.pending[id] = opts
	d.mu.Unlock()

	var b strings.Builder
	if opts.Title != "" {
		b.WriteString(d.styles.Title.Render(opts.Title))
		b.WriteString("\n\n")
	}
	b.WriteString(opts.Message)
	if len(opts.Buttons) > 0 {
		b.WriteString("\n\n")
		buttons := make([]string, len(opts.Buttons))
		for i, label := range opts.Buttons {
			buttons[i] = d.styles.Button.Render(fmt.Sprintf("[%d] %s", i+1, label))
		}
		b.WriteString(strings.Join(buttons, "  "))
	}

	box := d.styles.Dialog
	if opts.LargeMessage {
		box = box.Padding(1, 2)
	}
	_, err := fmt.Fprintln(d.out, box.Render(b.String()))
	return id, err
}

// Await waits for an answer to dialog id and returns the chosen button
func (d *ConsoleDialog) Await(ctx context.Context, id string) (int, error) {
	d.mu.Lock()
	opts, ok := d.pending[id]
	delete(d.pending, id)
	d.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("unknown dialog %q", id)
	}
	if d.lines == nil {
		return 0, nil
	}

	fmt.Fprintln(d.out, d.styles.Dim.Render("Press Enter to continue"))
	select {
	case line, ok := <-d.lines:
		if !ok {
			return 0, nil
		}
		return chooseButton(line, len(opts.Buttons)), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// chooseButton maps a typed 1-based button number to its index.
func chooseButton(line string, buttons int) int {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > buttons {
		return 0
	}
	return n - 1
}

var _ launcher.Dialog = (*ConsoleDialog)(nil)
