package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harshul/relic/internal/config"
	"github.com/harshul/relic/internal/logging"
	"github.com/harshul/relic/internal/supervisor"
	"github.com/harshul/relic/internal/ui"
	"github.com/spf13/cobra"
)

// killTimeout bounds how long shutdown waits for killed processes to exit
const killTimeout = 10 * time.Second

// app is what every command shares: configuration, logging and the
// registry all supervised processes live in.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *supervisor.PrometheusMetricsCollector
	registry *supervisor.Registry
	changes  chan struct{}
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: supervisor.NewPrometheusMetricsCollector("relic"),
		changes: make(chan struct{}, 1),
	}
	console := ui.NewConsoleSink(os.Stdout)
	a.registry = supervisor.NewRegistry(
		supervisor.WithLogger(logger),
		supervisor.WithMetrics(a.metrics),
		supervisor.WithListener(console.Listener()),
		supervisor.WithListener(logging.OutputSink(logger)),
		supervisor.WithListener(supervisor.Listener{OnChange: a.notify}),
	)
	return a, nil
}

func (a *app) notify(supervisor.State) {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// live returns the registered processes that have not stopped.
func (a *app) live() []*supervisor.Process {
	var out []*supervisor.Process
	for _, p := range a.registry.List() {
		if p.State() != supervisor.Stopped {
			out = append(out, p)
		}
	}
	return out
}

// waitForExit blocks until every registered process has stopped. When ctx
// is done first, every process is tree-killed.
func (a *app) waitForExit(ctx context.Context) error {
	for len(a.live()) > 0 {
		select {
		case <-a.changes:
		case <-ctx.Done():
			return a.shutdown()
		}
	}
	return nil
}

func (a *app) shutdown() error {
	ui.Warn("Stopping all processes...")
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	err := a.registry.KillAll(ctx)
	for len(a.live()) > 0 {
		select {
		case <-a.changes:
		case <-ctx.Done():
			return errors.Join(err, fmt.Errorf("%d process(es) did not exit: %w", len(a.live()), ctx.Err()))
		}
	}
	return err
}

// serveMetrics exposes the supervisor metrics on addr until ctx is done.
// An empty addr disables the endpoint.
func (a *app) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", "error", err)
		}
	}()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
