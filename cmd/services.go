package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/harshul/relic/internal/services"
	"github.com/harshul/relic/internal/ui"
	"github.com/spf13/cobra"
)

// servicesCmd represents the services command
var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Run the background services",
	Long: `The services command runs the start commands of the services file,
then keeps the server and every daemon running, restarting them after
crashes. Interrupting relic kills the services marked with kill and runs
the stop commands.`,
	RunE: runServices,
}

func init() {
	servicesCmd.Flags().String("services", "", "Path to the services file (overrides the configured one)")
	servicesCmd.Flags().String("server", "", "Name of the server entry to run (default: the first one)")
	servicesCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides the configured one)")
}

func runServices(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	// Get flag values
	servicesPath, _ := cmd.Flags().GetString("services")
	server, _ := cmd.Flags().GetString("server")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if servicesPath == "" {
		servicesPath = a.cfg.ResolvePath(a.cfg.Services)
	}
	if metricsAddr == "" {
		metricsAddr = a.cfg.Metrics.Addr
	}

	f, err := services.ReadFile(servicesPath, a.cfg.Root)
	if err != nil {
		return fmt.Errorf("failed to read services: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()
	a.serveMetrics(ctx, metricsAddr)

	runner := services.NewRunner(a.cfg.Root, a.registry, a.logger)
	startErr := runner.Start(ctx, f, server)
	if startErr == nil {
		ui.Success(fmt.Sprintf("Started %d service(s)", len(runner.Processes())))
		<-ctx.Done()
	}

	ui.Warn("Stopping services...")
	stopCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	if err := runner.Stop(stopCtx); err != nil {
		return errors.Join(startErr, fmt.Errorf("failed to stop services: %w", err))
	}
	if errors.Is(startErr, context.Canceled) {
		return nil
	}
	return startErr
}
