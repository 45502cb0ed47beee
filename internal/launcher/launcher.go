// Package launcher turns a request to launch a title into a supervised
// process: dependency runs, executable resolution, providers, environment
// and the middleware chain.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/harshul/relic/internal/platform"
	"github.com/harshul/relic/internal/supervisor"
)

const logSource = "Launcher"

// Launcher launches titles and their additional runs. Concurrent launches
// are independent of each other.
type Launcher struct {
	platform   platform.Platform
	strategy   platform.Strategy
	prefs      Preferences
	middleware MiddlewareRegistry
	providers  ProviderRegistry
	dialog     Dialog
	opener     Opener
	host       ProcessHost
	logger     *slog.Logger
	environ    func() []string
	preLaunch  PreLaunchCheck
	executable func() (string, error)
}

// New creates a Launcher for the host platform unless WithPlatform selects
// another one. An unsupported platform is an error.
func New(opts ...Option) (*Launcher, error) {
	l := &Launcher{
		platform:   platform.Current(),
		logger:     slog.Default(),
		environ:    os.Environ,
		executable: os.Executable,
	}
	for _, opt := range opts {
		opt(l)
	}

	strategy, err := platform.ForPlatform(l.platform)
	if err != nil {
		return nil, err
	}
	l.strategy = strategy

	if l.host == nil {
		l.host = supervisor.NewRegistry(supervisor.WithLogger(l.logger))
	}
	if l.dialog == nil {
		l.dialog = logDialog{logger: l.logger}
	}
	return l, nil
}

// Platform returns the platform launches are built for.
func (l *Launcher) Platform() platform.Platform {
	return l.platform
}

// LaunchTitle launches title and returns its supervised process. Placeholder
// titles launch nothing and return nil. A process that fails to start is
// logged and still returned; it is Stopped.
func (l *Launcher) LaunchTitle(ctx context.Context, title Title, middleware []MiddlewareConfig) (*supervisor.Process, error) {
	if err := l.checkPlatform(ctx, title); err != nil {
		return nil, err
	}
	if title.Placeholder {
		return nil, nil
	}

	// Dependencies run strictly in order, each finishing before the next
	for _, run := range title.AdditionalRuns {
		if !run.AutoRunBefore {
			continue
		}
		if err := l.LaunchAdditionalRun(ctx, title, run); err != nil {
			return nil, fmt.Errorf("run before %q: %w", run.Name, err)
		}
	}

	appPath := l.resolvePath(title.ApplicationPath)
	var leading []string

providers:
	for _, p := range l.matchingProviders(appPath, title.ApplicationPath) {
		res, err := l.resolve(ctx, p, title)
		if err != nil {
			l.logger.Error("provider failed", "source", logSource, "provider", p.Name, "title", title.Name, "error", err)
			continue
		}
		switch r := res.(type) {
		case BrowserResolution:
			info, err := l.browserLaunchInfo(r)
			if err != nil {
				return nil, err
			}
			return l.run(ctx, title, info, middleware)
		case ResolvedPath:
			appPath = string(r)
		case ResolvedArgv:
			appPath = r[0]
			leading = slices.Clone(r[1:])
		}
		break providers
	}

	gamePath := absPath(l.platform, l.prefs.Root, appPath)
	args := leading
	if title.LaunchCommand != "" {
		args = append(args, title.LaunchCommand)
	}
	info := LaunchInfo{
		ExecutablePath: gamePath,
		Arguments:      args,
		UseCompatLayer: l.useCompatLayer(gamePath),
		Env:            l.Environment(),
		UseShell:       true,
	}
	return l.run(ctx, title, info, middleware)
}

// LaunchAdditionalRun performs run on behalf of title.
//
// Messages are shown and, with WaitForExit, awaited. Extras are opened; a
// failure there is shown to the user and not returned. Normal launches are
// spawned and, with WaitForExit, awaited until the process stops or ctx is
// done.
func (l *Launcher) LaunchAdditionalRun(ctx context.Context, title Title, run AdditionalRun) error {
	if err := l.checkPlatform(ctx, title); err != nil {
		return err
	}

	switch a := run.Action.(type) {
	case ShowMessage:
		return l.showMessage(ctx, a)
	case OpenExternal:
		l.openExtras(ctx, a)
		return nil
	case NormalLaunch:
		return l.launchRun(ctx, run, a)
	default:
		return fmt.Errorf("additional run %q has no action", run.Name)
	}
}

func (l *Launcher) checkPlatform(ctx context.Context, title Title) error {
	if l.preLaunch == nil {
		return nil
	}
	if err := l.preLaunch(ctx, title); err != nil {
		return fmt.Errorf("pre-launch check: %w", err)
	}
	return nil
}

// ApplicationPath returns the absolute binary path path resolves to on this
// platform, before any provider is consulted.
func (l *Launcher) ApplicationPath(path string) string {
	return absPath(l.platform, l.prefs.Root, l.resolvePath(path))
}

// resolvePath maps a metadata path to the binary for this platform and
// applies the first enabled override.
func (l *Launcher) resolvePath(path string) string {
	resolved := l.strategy.ResolveExecPath(path, l.prefs.ExecMappings, l.prefs.Native)
	return l.prefs.override(resolved)
}

func (l *Launcher) matchingProviders(paths ...string) []Provider {
	if l.providers == nil {
		return nil
	}
	var out []Provider
	for _, p := range l.providers.Providers() {
		if p.matches(paths...) {
			out = append(out, p)
		}
	}
	return out
}

func (l *Launcher) resolve(ctx context.Context, p Provider, title Title) (Resolution, error) {
	if p.Resolve == nil {
		return nil, ErrInvalidResolution
	}
	res, err := p.Resolve(ctx, title, title.LaunchCommand)
	if err != nil {
		return nil, err
	}
	if err := validate(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (l *Launcher) browserLaunchInfo(r BrowserResolution) (LaunchInfo, error) {
	exe := l.prefs.Browser.Executable
	if exe == "" {
		var err error
		if exe, err = l.executable(); err != nil {
			return LaunchInfo{}, fmt.Errorf("failed to locate browser runner: %w", err)
		}
	}

	args := slices.Clone(l.prefs.Browser.Args)
	args = append(args, "browser_mode=true")
	if r.Proxy != "" {
		args = append(args, "proxy="+r.Proxy)
	}
	args = append(args, "browser_url="+r.URL)

	return LaunchInfo{
		ExecutablePath: exe,
		Arguments:      args,
		Env:            l.browserEnvironment(),
		Dir:            l.prefs.Root,
		UseShell:       false,
	}, nil
}

// run passes info through the middleware chain and spawns the result.
func (l *Launcher) run(ctx context.Context, title Title, info LaunchInfo, chain []MiddlewareConfig) (*supervisor.Process, error) {
	info, err := applyMiddleware(ctx, l.middleware, chain, info)
	if err != nil {
		return nil, err
	}

	rec := l.record("game."+title.ID, title.Name, info)
	proc, err := l.host.Add(rec)
	if err != nil {
		return nil, fmt.Errorf("launch %q: %w", title.Name, err)
	}
	l.trackExit(proc)

	if err := proc.Spawn(false); err != nil {
		l.host.Remove(proc)
		l.logger.Error("title failed to start", "source", logSource, "title", title.Name, "error", err)
		return proc, nil
	}
	l.logger.Info("launched title",
		"source", logSource,
		"title", title.Name,
		"pid", proc.Pid(),
		"applicationPath", title.ApplicationPath,
		"launchCommand", title.LaunchCommand,
		"command", rec.Filename)
	return proc, nil
}

func (l *Launcher) record(id, name string, info LaunchInfo) supervisor.Record {
	var filename string
	var args []string
	if info.UseShell {
		filename = l.strategy.BuildCommand(info.ExecutablePath, nil, info.UseCompatLayer, true)
		args = l.strategy.EscapeArgs(info.Arguments)
	} else {
		filename, args = platform.Argv(info.ExecutablePath, info.Arguments, info.UseCompatLayer && l.platform.IsPOSIX())
	}
	return supervisor.Record{
		ID:       id,
		Name:     name,
		Dir:      info.Dir,
		Filename: filename,
		Args:     args,
		Env:      info.Env,
		UseShell: info.UseShell,
	}
}

// trackExit removes proc from the host once it exits. The returned channel
// is closed at the same time.
func (l *Launcher) trackExit(proc *supervisor.Process) <-chan struct{} {
	exited := make(chan struct{})
	var once sync.Once
	proc.Subscribe(supervisor.Listener{
		OnExit: func(supervisor.ExitStatus) {
			once.Do(func() {
				l.host.Remove(proc)
				close(exited)
			})
		},
	})
	return exited
}

func (l *Launcher) showMessage(ctx context.Context, a ShowMessage) error {
	id, err := l.dialog.Open(ctx, DialogOptions{LargeMessage: true, Message: a.Text, Buttons: []string{"Ok"}})
	if err != nil {
		return fmt.Errorf("failed to open message: %w", err)
	}
	if !a.WaitForExit {
		return nil
	}
	if _, err := l.dialog.Await(ctx, id); err != nil {
		return fmt.Errorf("failed to await message: %w", err)
	}
	return nil
}

func (l *Launcher) openExtras(ctx context.Context, a OpenExternal) {
	folder := absPath(l.platform, l.prefs.Root, "Extras/"+a.Path)

	err := errors.New("no external opener configured")
	if l.opener != nil {
		err = l.opener.OpenExternal(ctx, folder)
	}
	if err == nil {
		return
	}

	l.logger.Warn("failed to open extras", "source", logSource, "path", folder, "error", err)
	opts := DialogOptions{LargeMessage: true, Message: fmt.Sprintf("%v\nPath: %s", err, folder), Buttons: []string{"Ok"}}
	if _, derr := l.dialog.Open(ctx, opts); derr != nil {
		l.logger.Error("failed to show error dialog", "source", logSource, "error", derr)
	}
}

func (l *Launcher) launchRun(ctx context.Context, run AdditionalRun, a NormalLaunch) error {
	appPath := l.resolvePath(a.Path)
	gamePath := absPath(l.platform, l.prefs.Root, appPath)

	var args []string
	if a.Args != "" {
		args = []string{a.Args}
	}
	rec := supervisor.Record{
		ID:       "addapp." + run.ID,
		Name:     run.Name,
		Filename: l.strategy.BuildCommand(gamePath, args, l.useCompatLayer(appPath), true),
		Env:      l.Environment(),
		UseShell: true,
	}

	proc, err := l.host.Add(rec)
	if err != nil {
		return fmt.Errorf("launch %q: %w", run.Name, err)
	}
	exited := l.trackExit(proc)
	if err := proc.Spawn(false); err != nil {
		l.host.Remove(proc)
		return err
	}
	l.logger.Info("launched additional run", "source", logSource, "run", run.Name, "pid", proc.Pid(), "path", a.Path, "args", a.Args)

	if !run.WaitForExit {
		return nil
	}
	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
