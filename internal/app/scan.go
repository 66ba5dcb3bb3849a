package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/output"
	"github.com/blackwell-systems/distroshift/internal/scanner"
)

var scanFlagQuiet bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Inspect the running system",
	Long: `Detect the running distribution and collect installed packages,
services, users, the root filesystem and the bootloader.

The result is saved as current_state.json in the data directory and is
shown by 'distroshift status'.`,
	Example: `  distroshift scan
  distroshift scan --quiet`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanFlagQuiet, "quiet", "q", false, "only save the state, print nothing")

	RootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close()

	sp := output.NewSpinner(rt.out, "Scanning system")
	if !scanFlagQuiet {
		sp.Start()
	}
	state, err := rt.scanner().Collect(cmd.Context())
	if !scanFlagQuiet {
		sp.Stop()
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := scanner.SaveState(rt.cfg.StatePath(), state); err != nil {
		return err
	}
	if scanFlagQuiet {
		return nil
	}

	fmt.Fprint(rt.out, output.RenderSystemState(state))
	fmt.Fprintf(rt.out, "\nState saved to %s\n", rt.cfg.StatePath())
	return nil
}
