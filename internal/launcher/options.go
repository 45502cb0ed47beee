package launcher

import (
	"log/slog"

	"github.com/harshul/relic/internal/platform"
)

// Option configures a Launcher
type Option func(*Launcher)

// WithPlatform selects the platform strategy instead of the host's
func WithPlatform(p platform.Platform) Option {
	return func(l *Launcher) {
		l.platform = p
	}
}

// WithPreferences sets the user preferences
func WithPreferences(prefs Preferences) Option {
	return func(l *Launcher) {
		l.prefs = prefs
	}
}

// WithMiddleware sets the middleware registry
func WithMiddleware(reg MiddlewareRegistry) Option {
	return func(l *Launcher) {
		l.middleware = reg
	}
}

// WithProviders sets the provider registry
func WithProviders(reg ProviderRegistry) Option {
	return func(l *Launcher) {
		l.providers = reg
	}
}

// WithDialog sets the dialog used for messages and errors
func WithDialog(d Dialog) Option {
	return func(l *Launcher) {
		l.dialog = d
	}
}

// WithOpener sets the opener used for extras
func WithOpener(o Opener) Option {
	return func(l *Launcher) {
		l.opener = o
	}
}

// WithHost sets the owner of spawned processes
func WithHost(h ProcessHost) Option {
	return func(l *Launcher) {
		l.host = h
	}
}

// WithLogger sets the logger for pipeline diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// WithEnviron sets the source of the inherited environment
func WithEnviron(environ func() []string) Option {
	return func(l *Launcher) {
		l.environ = environ
	}
}

// WithPreLaunchCheck sets the check run before every launch
func WithPreLaunchCheck(check PreLaunchCheck) Option {
	return func(l *Launcher) {
		l.preLaunch = check
	}
}
