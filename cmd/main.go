package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relic",
	Short: "Launch archived games and animations on any desktop",
	Long: `Relic launches titles from a local archive. It maps Windows-authored
executables onto the host, runs them through a compatibility layer where
needed, and supervises every process it starts.

Usage:
  relic launch <title-id>   Launch a title from the catalog
  relic services            Run the background services
  relic command <path>      Print the command line a launch would use
  relic doctor              Check the installation`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to relic.yaml (default: $HOME/.relic or the working directory)")

	// Add subcommands
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
