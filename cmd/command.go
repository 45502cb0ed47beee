package main

import (
	"fmt"

	"github.com/harshul/relic/internal/platform"
	"github.com/spf13/cobra"
)

// commandCmd represents the command command
var commandCmd = &cobra.Command{
	Use:   "command <path> [args...]",
	Short: "Print the command line a launch would use",
	Long: `The command command builds the command line for an executable and its
arguments exactly as a launch would, including the compatibility layer
prefix and shell escaping for the chosen platform.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

func init() {
	commandCmd.Flags().String("platform", string(platform.Current()), "Platform to build for (windows, linux, darwin)")
	commandCmd.Flags().Bool("compat", false, "Run the executable through the compatibility layer")
	commandCmd.Flags().Bool("no-shell", false, "Print the executable and its arguments one per line instead of a shell line")
}

func runCommand(cmd *cobra.Command, args []string) error {
	// Get flag values
	p, _ := cmd.Flags().GetString("platform")
	compat, _ := cmd.Flags().GetBool("compat")
	noShell, _ := cmd.Flags().GetBool("no-shell")

	plat := platform.Platform(p)
	out := cmd.OutOrStdout()

	if noShell {
		if _, err := platform.ForPlatform(plat); err != nil {
			return err
		}
		name, argv := platform.Argv(args[0], args[1:], compat && plat.IsPOSIX())
		fmt.Fprintln(out, name)
		for _, arg := range argv {
			fmt.Fprintln(out, arg)
		}
		return nil
	}

	escaped, err := platform.EscapeArgs(plat, args[1:])
	if err != nil {
		return err
	}
	line, err := platform.BuildCommand(plat, args[0], escaped, compat, true)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, line)
	return nil
}
