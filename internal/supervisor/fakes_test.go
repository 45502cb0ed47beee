package supervisor

import (
	"context"
	"io"
	"strings"
	"sync"
)

type fakeHandle struct {
	pid  int
	out  io.Reader
	done chan ExitStatus
	once sync.Once
}

func (h *fakeHandle) Pid() int          { return h.pid }
func (h *fakeHandle) Stdout() io.Reader { return h.out }
func (h *fakeHandle) Stderr() io.Reader { return nil }
func (h *fakeHandle) Wait() ExitStatus  { return <-h.done }

func (h *fakeHandle) exit(status ExitStatus) {
	h.once.Do(func() { h.done <- status })
}

type fakeStarter struct {
	mu      sync.Mutex
	cmds    []Command
	handles []*fakeHandle
	output  string
	err     error
}

func (s *fakeStarter) Start(c Command) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, c)
	if s.err != nil {
		return nil, s.err
	}
	h := &fakeHandle{
		pid:  100 + len(s.handles),
		out:  strings.NewReader(s.output),
		done: make(chan ExitStatus, 1),
	}
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *fakeStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *fakeStarter) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cmds)
}

func (s *fakeStarter) handle(i int) *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[i]
}

func (s *fakeStarter) byPid(pid int) *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.handles {
		if h.pid == pid {
			return h
		}
	}
	return nil
}

// fakeTree terminates fake handles when their pid is signaled.
type fakeTree struct {
	mu       sync.Mutex
	starter  *fakeStarter
	children map[int][]int
	signaled []int
	err      error
}

func (t *fakeTree) Descendants(ctx context.Context, pid int) ([]int, error) {
	if t.err != nil {
		return nil, t.err
	}
	var out []int
	queue := []int{pid}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, t.children[cur]...)
		queue = append(queue, t.children[cur]...)
	}
	return out, nil
}

func (t *fakeTree) Signal(pid int) error {
	t.mu.Lock()
	t.signaled = append(t.signaled, pid)
	t.mu.Unlock()
	if t.starter != nil {
		if h := t.starter.byPid(pid); h != nil {
			h.exit(ExitStatus{Code: -1, Signal: "SIGTERM"})
		}
	}
	return nil
}

func (t *fakeTree) signals() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.signaled...)
}

// recorder collects the events of a Process in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []string
	lines  []Output
	states []State
	exits  []ExitStatus
}

func (r *recorder) listener() Listener {
	return Listener{
		OnOutput: func(o Output) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.lines = append(r.lines, o)
			r.events = append(r.events, "output:"+o.Content)
		},
		OnChange: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
			r.events = append(r.events, "change:"+s.String())
		},
		OnExit: func(e ExitStatus) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.exits = append(r.exits, e)
			r.events = append(r.events, "exit")
		},
	}
}

func (r *recorder) contents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.lines))
	for _, l := range r.lines {
		out = append(out, l.Content)
	}
	return out
}

func (r *recorder) exitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exits)
}

func (r *recorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
