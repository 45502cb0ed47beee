// Package services runs the background services a relic installation needs
// while titles are played: a server, daemons, and one-shot start and stop
// commands.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/harshul/relic/internal/supervisor"
	"gopkg.in/yaml.v3"
)

const logSource = "Services"

// abandonTimeout bounds the tree-kill of a command whose context is done
const abandonTimeout = 5 * time.Second

// Info describes one process of the services file. Path is the working
// directory relative to the root.
type Info struct {
	Name      string   `yaml:"name,omitempty"`
	Path      string   `yaml:"path"`
	Filename  string   `yaml:"filename"`
	Arguments []string `yaml:"arguments,omitempty"`
	// Kill marks a long running service to be tree-killed on Stop
	Kill bool `yaml:"kill,omitempty"`
}

// File is the services file.
type File struct {
	Server []Info `yaml:"server,omitempty"`
	Daemon []Info `yaml:"daemon,omitempty"`
	// Start entries run to completion, in order, before anything else
	Start []Info `yaml:"start,omitempty"`
	// Stop entries run to completion, in order, on shutdown
	Stop []Info `yaml:"stop,omitempty"`
}

// ReadFile reads a services file. ${root} and environment variables are
// expanded in paths, filenames and arguments.
func ReadFile(path, root string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("invalid services file %s: %w", path, err)
	}

	expand := func(s string) string {
		return os.Expand(s, func(key string) string {
			if key == "root" {
				return root
			}
			return os.Getenv(key)
		})
	}
	for _, list := range [][]Info{f.Server, f.Daemon, f.Start, f.Stop} {
		for i := range list {
			info := &list[i]
			if info.Filename == "" {
				return File{}, fmt.Errorf("invalid services file %s: entry %q has no filename", path, info.Name)
			}
			info.Path = expand(info.Path)
			info.Filename = expand(info.Filename)
			for j, arg := range info.Arguments {
				info.Arguments[j] = expand(arg)
			}
		}
	}
	return f, nil
}

// Runner starts and stops the services of one File.
type Runner struct {
	root   string
	host   *supervisor.Registry
	logger *slog.Logger

	mu       sync.Mutex
	file     File
	services []service
	started  bool
}

type service struct {
	proc *supervisor.Process
	kill bool
}

// NewRunner creates a Runner that resolves working directories against root
// and supervises through host.
func NewRunner(root string, host *supervisor.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{root: root, host: host, logger: logger}
}

// Start runs the start entries to completion, then spawns the server named
// server (or the first one) and every daemon with auto restart.
func (r *Runner) Start(ctx context.Context, f File, server string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("services already started")
	}
	r.started = true
	r.file = f

	for i, info := range f.Start {
		r.exec(ctx, "start."+strconv.Itoa(i), info)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(f.Server) > 0 {
		chosen := f.Server[0]
		for _, s := range f.Server {
			if server != "" && s.Name == server {
				chosen = s
				break
			}
		}
		if err := r.run("server", "Server", chosen); err != nil {
			return err
		}
	}
	for i, info := range f.Daemon {
		id := "daemon_" + strconv.Itoa(i)
		name := info.Name
		if name == "" {
			name = id
		}
		if err := r.run(id, name, info); err != nil {
			return err
		}
	}
	return nil
}

// Stop tree-kills the services marked kill and then runs the stop entries
// to completion.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil
	}
	r.started = false

	var errs []error
	for _, s := range r.services {
		if !s.kill {
			continue
		}
		if err := s.proc.Kill(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.services = nil

	for i, info := range r.file.Stop {
		r.exec(ctx, "stop."+strconv.Itoa(i), info)
	}
	return errors.Join(errs...)
}

// Processes returns the supervised long running services.
func (r *Runner) Processes() []*supervisor.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*supervisor.Process, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s.proc)
	}
	return out
}

func (r *Runner) run(id, name string, info Info) error {
	rec := r.record(id, name, info)
	rec.AutoRestart = true
	proc, err := r.host.Add(rec)
	if err != nil {
		return fmt.Errorf("start service %s: %w", name, err)
	}
	r.services = append(r.services, service{proc: proc, kill: info.Kill})
	// A failed spawn is already reported through the process output
	_ = proc.Spawn(false)
	return nil
}

// exec runs info and waits for it to exit. Failures are logged, never
// returned, so one broken command does not keep the others from running.
func (r *Runner) exec(ctx context.Context, id string, info Info) {
	r.logger.Info("executing command",
		"source", logSource,
		"filename", info.Filename,
		"arguments", info.Arguments,
		"path", info.Path)

	proc, err := r.host.Add(r.record(id, info.Filename, info))
	if err != nil {
		r.logger.Error("command failed", "source", logSource, "filename", info.Filename, "error", err)
		return
	}

	exited := make(chan supervisor.ExitStatus, 1)
	unsubscribe := proc.Subscribe(supervisor.Listener{
		OnExit: func(status supervisor.ExitStatus) { exited <- status },
	})
	defer unsubscribe()

	if err := proc.Spawn(false); err != nil {
		r.host.Remove(proc)
		r.logger.Error("command failed", "source", logSource, "filename", info.Filename, "error", err)
		return
	}

	select {
	case status := <-exited:
		if status.Code != 0 || status.Signal != "" {
			r.logger.Warn("command exited unsuccessfully",
				"source", logSource,
				"filename", info.Filename,
				"code", status.Code,
				"signal", status.Signal)
		}
	case <-ctx.Done():
		r.logger.Warn("command abandoned", "source", logSource, "filename", info.Filename, "error", ctx.Err())
		killCtx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
		defer cancel()
		if err := proc.Kill(killCtx); err != nil {
			// Left in the registry so a later KillAll still reaches it
			r.logger.Error("failed to kill abandoned command", "source", logSource, "filename", info.Filename, "error", err)
			return
		}
		select {
		case <-exited:
		case <-killCtx.Done():
			r.logger.Error("abandoned command did not exit", "source", logSource, "filename", info.Filename)
			return
		}
	}
	r.host.Remove(proc)
}

func (r *Runner) record(id, name string, info Info) supervisor.Record {
	dir := info.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.root, dir)
	}
	return supervisor.Record{
		ID:       id,
		Name:     name,
		Dir:      dir,
		Filename: info.Filename,
		Args:     info.Arguments,
	}
}
