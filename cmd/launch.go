package main

import (
	"fmt"
	"os"

	"github.com/harshul/relic/internal/catalog"
	"github.com/harshul/relic/internal/launcher"
	"github.com/harshul/relic/internal/middleware/envvars"
	"github.com/harshul/relic/internal/ui"
	"github.com/spf13/cobra"
)

// launchCmd represents the launch command
var launchCmd = &cobra.Command{
	Use:   "launch <title-id>",
	Short: "Launch a title from the catalog",
	Long: `The launch command looks the title up in the catalog and launches it:
- Additional runs marked to run before the title are performed first
- The application path is mapped onto this platform
- Configured providers may replace the binary or open a browser window
- The title's middleware adjusts the launch

Output of every started process is printed until all of them have exited.
Interrupting relic kills the complete process tree.`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().String("catalog", "", "Path to the catalog file (overrides the configured one)")
	launchCmd.Flags().Bool("native", false, "Prefer native binaries over the compatibility layer")
	launchCmd.Flags().String("run", "", "Perform only the additional run with this id or name")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	// Get flag values
	catalogPath, _ := cmd.Flags().GetString("catalog")
	runID, _ := cmd.Flags().GetString("run")
	if cmd.Flags().Changed("native") {
		a.cfg.Native, _ = cmd.Flags().GetBool("native")
	}
	if catalogPath == "" {
		catalogPath = a.cfg.ResolvePath(a.cfg.Catalog)
	}

	c, err := catalog.Read(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	entry, ok := c.Find(args[0])
	if !ok {
		return fmt.Errorf("title %q not found in %s", args[0], catalogPath)
	}
	mappings, err := catalog.ReadExecMappings(a.cfg.ResolvePath(a.cfg.ExecMappings))
	if err != nil {
		return fmt.Errorf("failed to read exec mappings: %w", err)
	}

	l, err := launcher.New(
		launcher.WithPreferences(a.cfg.Preferences(mappings)),
		launcher.WithMiddleware(launcher.MiddlewareMap{envvars.ID: envvars.New(a.cfg.Root)}),
		launcher.WithProviders(a.cfg.ProviderList()),
		launcher.WithDialog(ui.NewConsoleDialog(os.Stdout, os.Stdin)),
		launcher.WithOpener(ui.NewSystemOpener()),
		launcher.WithHost(a.registry),
		launcher.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	a.serveMetrics(ctx, a.cfg.Metrics.Addr)

	title := entry.Title()
	if runID != "" {
		run, ok := findRun(title, runID)
		if !ok {
			return fmt.Errorf("additional run %q not found for %s", runID, title.Name)
		}
		if err := l.LaunchAdditionalRun(ctx, title, run); err != nil {
			return err
		}
		return a.waitForExit(ctx)
	}

	proc, err := l.LaunchTitle(ctx, title, entry.Middleware)
	if err != nil {
		return fmt.Errorf("failed to launch %s: %w", title.Name, err)
	}
	if proc == nil {
		ui.Info(fmt.Sprintf("%s is a placeholder, nothing to launch", title.Name))
		return nil
	}
	if proc.StartTime().IsZero() {
		return fmt.Errorf("failed to launch %s: process did not start", title.Name)
	}

	ui.Success(fmt.Sprintf("Launched %s", title.Name))
	return a.waitForExit(ctx)
}

func findRun(title launcher.Title, key string) (launcher.AdditionalRun, bool) {
	for _, run := range title.AdditionalRuns {
		if run.ID == key || run.Name == key {
			return run, true
		}
	}
	return launcher.AdditionalRun{}, false
}
