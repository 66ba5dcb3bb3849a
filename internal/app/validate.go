package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/errdefs"
)

var validateCmd = &cobra.Command{
	Use:   "validate <target>",
	Short: "Check whether this system can migrate to a target",
	Long: `Scan the running system and check it against the target distribution:
architecture, free disk space, bootloader detection and whether the system
already runs the target. Nothing is changed.`,
	Example: `  distroshift validate arch
  distroshift validate "Pop!_OS COSMIC"`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	RootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	orch, err := rt.orchestrator(rt.out)
	if err != nil {
		return err
	}

	v, err := orch.Validate(cmd.Context(), args[0])
	if v != nil {
		fmt.Fprintf(rt.out, "%s → %s\n", v.Current, v.Target)
		for _, f := range v.Findings {
			fmt.Fprintf(rt.out, "  [%-7s] %s\n", f.Severity, f.Message)
		}
	}
	if errors.Is(err, errdefs.ErrValidation) {
		return fmt.Errorf("migration to %s is not possible", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "\nValidation passed.")
	return nil
}
