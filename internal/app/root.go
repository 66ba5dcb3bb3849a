package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	assumeYes  bool
	verbose    bool

	// RootCmd is the root command for distroshift
	RootCmd = &cobra.Command{
		Use:   "distroshift",
		Short: "Migrate a running Linux system to another distribution",
		Long: `distroshift transforms an installed Linux system into a different
distribution in place. It scans the host, translates installed packages to
the target's package names, carries configuration across and takes a
snapshot first so the change can be rolled back.

Quick Start:
  1. distroshift scan
  2. distroshift validate arch
  3. distroshift shapeshift arch --dry-run
  4. sudo distroshift shapeshift arch

Examples:
  # List supported target distributions
  distroshift list

  # Show the last scan and previous migrations
  distroshift status

  # Roll back to a snapshot
  sudo distroshift revert snapshot_1772366400_0001`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "distroshift: in-place Linux distribution migration")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'distroshift scan' to inspect this system.")
			fmt.Fprintln(out, "Run 'distroshift --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: /etc/distroshift/config.toml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every confirmation prompt")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also write logs to stderr")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
