package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/output"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List rollback snapshots",
	Args:  cobra.NoArgs,
	RunE:  runSnapshots,
}

func init() {
	RootCmd.AddCommand(snapshotsCmd)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	snaps, err := rt.snapshots().List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(rt.out, "No snapshots found.")
		return nil
	}
	fmt.Fprint(rt.out, output.RenderSnapshotTable(snaps, time.Now()))
	return nil
}
