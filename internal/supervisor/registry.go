package supervisor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrAlreadyRunning is returned when a live process already uses an id.
var ErrAlreadyRunning = errors.New("process already running")

// Registry tracks the supervised processes of one host by id.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]*Process
	opts  []Option
}

// NewRegistry creates a Registry; opts are applied to every added Process.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		procs: make(map[string]*Process),
		opts:  opts,
	}
}

// Add creates a Process for rec and tracks it. A stopped process with the
// same id is replaced; a live one is an ErrAlreadyRunning.
func (r *Registry) Add(rec Record, opts ...Option) (*Process, error) {
	p := New(rec, append(slices.Clone(r.opts), opts...)...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.procs[p.ID()]; ok && existing.State() != Stopped {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, p.ID())
	}
	r.procs[p.ID()] = p
	return p, nil
}

// Get returns the process tracked under id.
func (r *Registry) Get(id string) (*Process, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[id]
	return p, ok
}

// Remove stops tracking p. A newer process registered under the same id is
// left alone.
func (r *Registry) Remove(p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.procs[p.ID()] == p {
		delete(r.procs, p.ID())
	}
}

// List returns the tracked processes ordered by id.
func (r *Registry) List() []*Process {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Process, 0, len(r.procs))
	for _, id := range slices.Sorted(maps.Keys(r.procs)) {
		out = append(out, r.procs[id])
	}
	return out
}

// KillAll tree-kills every tracked process.
func (r *Registry) KillAll(ctx context.Context) error {
	var errs []error
	for _, p := range r.List() {
		if err := p.Kill(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
