package supervisor

import (
	"log/slog"
)

// Option configures a Process
type Option func(*Process)

// WithStarter sets the Starter used to create OS processes
func WithStarter(s Starter) Option {
	return func(p *Process) {
		p.starter = s
	}
}

// WithProcessTree sets the ProcessTree used for tree kills
func WithProcessTree(t ProcessTree) Option {
	return func(p *Process) {
		p.tree = t
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(mc MetricsCollector) Option {
	return func(p *Process) {
		p.metrics = mc
	}
}

// WithLogger sets the logger used for supervisor diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(p *Process) {
		p.logger = l
	}
}

// WithMaxRestarts overrides the automatic restart budget
func WithMaxRestarts(n int) Option {
	return func(p *Process) {
		p.maxRestarts = n
	}
}

// WithListener subscribes l before the process can emit anything
func WithListener(l Listener) Option {
	return func(p *Process) {
		p.subscribe(l)
	}
}
