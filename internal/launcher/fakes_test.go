package launcher

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/harshul/relic/internal/supervisor"
)

type fakeHandle struct {
	pid  int
	done chan struct{}
}

func (h *fakeHandle) Pid() int          { return h.pid }
func (h *fakeHandle) Stdout() io.Reader { return strings.NewReader("") }
func (h *fakeHandle) Stderr() io.Reader { return nil }

func (h *fakeHandle) Wait() supervisor.ExitStatus {
	<-h.done
	return supervisor.ExitStatus{}
}

// fakeStarter records commands. Started processes exit immediately when
// exit is set and otherwise run until the test ends.
type fakeStarter struct {
	mu   sync.Mutex
	cmds []supervisor.Command
	exit bool
	fail func(supervisor.Command) error
}

func (s *fakeStarter) Start(c supervisor.Command) (supervisor.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(c); err != nil {
			return nil, err
		}
	}
	s.cmds = append(s.cmds, c)
	h := &fakeHandle{pid: 1000 + len(s.cmds), done: make(chan struct{})}
	if s.exit {
		close(h.done)
	}
	return h, nil
}

func (s *fakeStarter) commands() []supervisor.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]supervisor.Command(nil), s.cmds...)
}

type noopTree struct{}

func (noopTree) Descendants(context.Context, int) ([]int, error) { return nil, nil }
func (noopTree) Signal(int) error                                { return nil }

type fakeDialog struct {
	mu       sync.Mutex
	messages []DialogOptions
	awaited  int
}

func (d *fakeDialog) Open(ctx context.Context, opts DialogOptions) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, opts)
	return "dlg", nil
}

func (d *fakeDialog) Await(ctx context.Context, id string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.awaited++
	return 0, nil
}

type fakeOpener struct {
	paths []string
	err   error
}

func (o *fakeOpener) OpenExternal(ctx context.Context, path string) error {
	o.paths = append(o.paths, path)
	return o.err
}

func testEnviron() []string {
	return []string{"PATH=/usr/bin", "HOME=/home/player", "ELECTRON_RUN_AS_NODE=1", "BROKEN"}
}
