// Package supervisor owns external OS processes for their whole lifetime:
// spawning, relaying their output, bounded restarts after crashes and
// termination of the complete process tree.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type eventKind int

const (
	outputEvent eventKind = iota
	changeEvent
	exitEvent
)

type event struct {
	kind   eventKind
	output Output
	state  State
	exit   ExitStatus
}

// Process supervises exactly one OS process instance at a time.
type Process struct {
	rec         Record
	starter     Starter
	tree        ProcessTree
	metrics     MetricsCollector
	logger      *slog.Logger
	maxRestarts int

	mu           sync.Mutex
	handle       Handle
	gen          uint64 // incremented on every successful start
	restarting   bool
	restartCount int
	startTime    time.Time
	state        State

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int

	qmu      sync.Mutex
	queue    []event
	draining bool
}

// New creates a stopped Process for rec.
func New(rec Record, opts ...Option) *Process {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	p := &Process{
		rec:         rec,
		starter:     ExecStarter{},
		tree:        SystemTree{},
		metrics:     NewNoopMetricsCollector(),
		logger:      slog.Default(),
		maxRestarts: MaxRestarts,
		listeners:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the record id.
func (p *Process) ID() string { return p.rec.ID }

// Name returns the display name.
func (p *Process) Name() string { return p.rec.Name }

// Record returns a copy of the supervised record.
func (p *Process) Record() Record {
	rec := p.rec
	rec.Args = slices.Clone(p.rec.Args)
	rec.Env = maps.Clone(p.rec.Env)
	return rec
}

// Pid returns the OS process id, or -1 if no process is running.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return -1
	}
	return p.handle.Pid()
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// StartTime returns when the process was last started, or the zero time.
func (p *Process) StartTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startTime
}

// RestartCount returns the number of automatic restarts since the last
// manual spawn.
func (p *Process) RestartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restartCount
}

// Subscribe registers l and returns a function that removes it again.
func (p *Process) Subscribe(l Listener) (unsubscribe func()) {
	id := p.subscribe(l)
	return func() {
		p.lmu.Lock()
		delete(p.listeners, id)
		p.lmu.Unlock()
	}
}

func (p *Process) subscribe(l Listener) int {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	return id
}

// Spawn starts the process unless one is already running or a restart is
// underway. A spawn that is not automatic resets the restart budget.
//
// A failed start is logged and leaves the process Stopped; it is never
// retried automatically. The error is returned for callers that want it.
func (p *Process) Spawn(auto bool) error {
	p.mu.Lock()
	if p.handle != nil || p.restarting {
		p.mu.Unlock()
		return nil
	}
	if !auto {
		p.restartCount = 0
	}

	h, err := p.starter.Start(p.command())
	if err != nil {
		p.logContent(fmt.Sprintf("%s failed to start - %v", p.rec.Name, err))
		p.setState(Stopped)
		p.mu.Unlock()
		p.flush()
		p.metrics.SpawnFailure(p.rec.ID)
		return fmt.Errorf("failed to start %s: %w", p.rec.Name, err)
	}

	p.gen++
	gen := p.gen
	p.handle = h
	p.startTime = time.Now()
	p.logContent(p.rec.Name + " has been started")
	p.setState(Running)
	p.mu.Unlock()
	p.flush()

	p.logger.Debug("process started", "id", p.rec.ID, "pid", h.Pid(), "auto", auto)
	go p.watch(gen, h)
	return nil
}

// Kill tree-kills the running process. It returns once every process in the
// tree has been signaled; the exit itself is reported asynchronously.
func (p *Process) Kill(ctx context.Context) error {
	p.mu.Lock()
	if p.handle == nil {
		p.mu.Unlock()
		return nil
	}
	pid := p.handle.Pid()
	// A kill cancels a pending restart.
	p.restarting = false
	p.setState(Killing)
	p.mu.Unlock()
	p.flush()

	return p.killTree(ctx, pid)
}

// Restart kills the running process and spawns a new one once the old one
// has exited. Without a running process it is a plain Spawn.
func (p *Process) Restart(ctx context.Context) error {
	p.mu.Lock()
	if p.restarting {
		p.mu.Unlock()
		return nil
	}
	if p.handle == nil {
		p.mu.Unlock()
		return p.Spawn(false)
	}
	p.restarting = true
	pid := p.handle.Pid()
	gen := p.gen
	p.logContent("Restarting " + p.rec.Name + " process")
	p.setState(Killing)
	p.mu.Unlock()
	p.flush()

	if err := p.killTree(ctx, pid); err != nil {
		p.mu.Lock()
		// The old process may still be alive; keep it reachable for Kill.
		if p.restarting && p.gen == gen {
			p.restarting = false
			p.setState(Running)
		}
		p.mu.Unlock()
		p.flush()
		return err
	}
	return nil
}

func (p *Process) killTree(ctx context.Context, pid int) error {
	start := time.Now()
	err := KillTree(ctx, p.tree, pid)
	p.metrics.TreeKill(p.rec.ID, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kill %s (pid %d): %w", p.rec.Name, pid, err)
	}
	return nil
}

func (p *Process) command() Command {
	return Command{
		Filename: p.rec.Filename,
		Args:     slices.Clone(p.rec.Args),
		Dir:      p.rec.Dir,
		Env:      environ(p.rec.Env),
		Detached: p.rec.Detached,
		Shell:    p.rec.UseShell,
	}
}

// watch relays output until the process exits, then reports the exit.
func (p *Process) watch(gen uint64, h Handle) {
	var wg sync.WaitGroup
	for _, r := range []io.Reader{h.Stdout(), h.Stderr()} {
		if r == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.relay(r)
		}()
	}
	status := h.Wait()
	wg.Wait()
	p.handleExit(gen, status)
}

func (p *Process) handleExit(gen uint64, status ExitStatus) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}

	if p.restarting {
		// The old process of a restart: its regular exit handling is detached.
		p.restarting = false
		p.handle = nil
		p.logContent("Old " + p.rec.Name + " " + describeExit(status))
		p.setState(Stopped)
		p.mu.Unlock()
		p.flush()
		_ = p.Spawn(false)
		return
	}

	wasRunning := p.state == Running
	p.handle = nil
	p.logContent(p.rec.Name + " " + describeExit(status))
	p.post(event{kind: exitEvent, exit: status})
	p.setState(Stopped)

	restart := false
	if p.rec.AutoRestart && wasRunning && status.Crashed() {
		if p.restartCount < p.maxRestarts {
			p.restartCount++
			restart = true
		} else {
			p.logContent(p.rec.Name + " crashed too frequently, leaving stopped")
		}
	}
	p.mu.Unlock()
	p.flush()

	if restart {
		p.metrics.Restart(p.rec.ID)
		_ = p.Spawn(true)
	}
}

func (p *Process) relay(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !utf8.ValidString(line) {
			p.logger.Warn("process output is not valid UTF-8", "source", p.rec.Name)
			line = strings.ToValidUTF8(line, "�")
		}
		p.post(event{kind: outputEvent, output: p.output(line)})
		p.flush()
	}
	if err := scanner.Err(); err != nil {
		p.post(event{kind: outputEvent, output: p.output(fmt.Sprintf("%s failed to relay output - %v", p.rec.Name, err))})
		p.flush()
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

// setState must be called with p.mu held.
func (p *Process) setState(s State) {
	if p.state == s {
		return
	}
	from := p.state
	p.state = s
	p.metrics.StateTransition(p.rec.ID, from, s)
	p.post(event{kind: changeEvent, state: s})
}

// logContent must be called with p.mu held.
func (p *Process) logContent(content string) {
	p.post(event{kind: outputEvent, output: p.output(content)})
}

func (p *Process) output(content string) Output {
	return Output{Source: p.rec.Name, Content: strings.TrimRight(content, "\n")}
}

func (p *Process) post(ev event) {
	p.qmu.Lock()
	p.queue = append(p.queue, ev)
	p.qmu.Unlock()
}

// flush delivers queued events. Only one goroutine delivers at a time, so
// listeners observe events in the order they were posted, and a listener
// that calls back into the Process never deadlocks.
func (p *Process) flush() {
	p.qmu.Lock()
	if p.draining {
		p.qmu.Unlock()
		return
	}
	p.draining = true
	for len(p.queue) > 0 {
		ev := p.queue[0]
		p.queue = p.queue[1:]
		p.qmu.Unlock()
		p.deliver(ev)
		p.qmu.Lock()
	}
	p.draining = false
	p.qmu.Unlock()
}

func (p *Process) deliver(ev event) {
	p.lmu.Lock()
	ids := slices.Sorted(maps.Keys(p.listeners))
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, p.listeners[id])
	}
	p.lmu.Unlock()

	for _, l := range ls {
		switch ev.kind {
		case outputEvent:
			if l.OnOutput != nil {
				l.OnOutput(ev.output)
			}
		case changeEvent:
			if l.OnChange != nil {
				l.OnChange(ev.state)
			}
		case exitEvent:
			if l.OnExit != nil {
				l.OnExit(ev.exit)
			}
		}
	}
}

func describeExit(status ExitStatus) string {
	if status.Signal != "" {
		return "exited with signal " + status.Signal
	}
	return fmt.Sprintf("exited with code %d", status.Code)
}

func environ(env map[string]string) []string {
	if env == nil {
		return nil
	}
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
