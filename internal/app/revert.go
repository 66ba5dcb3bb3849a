package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/snapshots"
)

var revertCmd = &cobra.Command{
	Use:   "revert [snapshot-id]",
	Short: "Roll the system back to a snapshot",
	Long: `Restore the system from a snapshot taken before a migration.

Without an id you are asked to choose from the available snapshots.

Rsync snapshots are copied back onto the live system. LVM snapshots are
merged on the next reboot. Btrfs snapshots are never applied to the
running root: a recovery script is written for use from a rescue
environment, or the snapshot can be copied back with rsync instead.`,
	Example: `  sudo distroshift revert
  sudo distroshift revert snapshot_1772366400_0001`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRevert,
}

func init() {
	RootCmd.AddCommand(revertCmd)
}

func runRevert(cmd *cobra.Command, args []string) error {
	if err := requireRoot(); err != nil {
		return err
	}

	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.lock(); err != nil {
		return err
	}

	var id string
	if len(args) == 1 {
		id = args[0]
	}

	err = rt.snapshots().Revert(cmd.Context(), id)
	switch {
	case err == nil:
		fmt.Fprintln(rt.out, "\nRevert complete. Reboot to start the restored system.")
		return nil
	case errors.Is(err, errdefs.ErrCancelled):
		fmt.Fprintln(rt.out, "Revert cancelled. No changes were made.")
		return nil
	case errors.Is(err, snapshots.ErrManualStepsRequired):
		fmt.Fprintln(rt.out, "\nThe revert is not complete until the manual steps above are done.")
		return err
	case errors.Is(err, snapshots.ErrNoSnapshots):
		return fmt.Errorf("no snapshots available in %s", rt.cfg.SnapshotDir)
	}
	return fmt.Errorf("revert failed: %w", err)
}
