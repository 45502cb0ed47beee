package main

import (
	"fmt"

	"github.com/harshul/relic/internal/catalog"
	"github.com/harshul/relic/internal/doctor"
	"github.com/harshul/relic/internal/launcher"
	"github.com/harshul/relic/internal/ui"
	"github.com/spf13/cobra"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the installation",
	Long: `The doctor command checks that titles can be launched on this host:
- The platform is supported
- The root directory exists
- The compatibility layer is available where Windows titles need it
- The catalog and exec mappings are readable
- Catalog titles point at applications that exist`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	execsPath := a.cfg.ResolvePath(a.cfg.ExecMappings)
	opts := doctor.Options{
		Root:         a.cfg.Root,
		CatalogPath:  a.cfg.ResolvePath(a.cfg.Catalog),
		ExecMappings: execsPath,
	}
	if mappings, err := catalog.ReadExecMappings(execsPath); err == nil {
		if l, err := launcher.New(launcher.WithPreferences(a.cfg.Preferences(mappings))); err == nil {
			opts.ResolvePath = l.ApplicationPath
		}
	}

	d := doctor.Diagnose(cmd.Context(), opts)

	fmt.Printf("Root:      %s\n", d.Root)
	fmt.Printf("Platform:  %s", d.Platform)
	if d.Host.Platform != "" {
		fmt.Printf(" (%s %s, %s)", d.Host.Platform, d.Host.PlatformVersion, d.Host.KernelArch)
	}
	fmt.Println()
	if d.Resources.MemoryTotal > 0 {
		fmt.Printf("Resources: %d CPU(s), %s of %s memory in use\n",
			d.Resources.CPUs, ui.FormatBytes(d.Resources.MemoryUsed), ui.FormatBytes(d.Resources.MemoryTotal))
	}
	if d.Runtime.Required {
		if d.Runtime.Installed {
			fmt.Printf("Runtime:   %s %s (%s)\n", d.Runtime.Name, d.Runtime.Version, d.Runtime.Path)
		} else {
			fmt.Printf("Runtime:   %s not found\n", d.Runtime.Name)
		}
	}
	fmt.Printf("Catalog:   %d title(s), %d exec mapping(s)\n", d.Titles, d.Mappings)
	fmt.Println()

	for _, w := range d.Warnings {
		ui.Warn(w)
	}
	for _, name := range d.Missing {
		fmt.Printf("   • %s\n", name)
	}
	for _, issue := range d.Issues {
		ui.Error(issue)
	}

	if !d.Healthy {
		return fmt.Errorf("installation is unhealthy: %d issue(s) found", len(d.Issues))
	}
	ui.Success("Installation is healthy")
	return nil
}
