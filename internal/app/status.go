package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/history"
	"github.com/blackwell-systems/distroshift/internal/output"
	"github.com/blackwell-systems/distroshift/internal/scanner"
)

// statusHistory is how many past transformations status shows.
const statusHistory = 5

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last scan and recent migrations",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	state, err := scanner.LoadState(rt.cfg.StatePath())
	switch {
	case errors.Is(err, scanner.ErrNoState):
		fmt.Fprintln(rt.out, "No scan recorded. Run 'distroshift scan' first.")
	case err != nil:
		return err
	default:
		fmt.Fprint(rt.out, output.RenderSystemState(state))
	}

	records, err := history.Load(rt.cfg.HistoryPath())
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "\nRecent transformations")
	fmt.Fprint(rt.out, output.RenderHistory(history.Last(records, statusHistory)))

	ix, err := rt.index()
	if err != nil {
		return err
	}
	n, err := ix.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "\nPackage mappings: %d\n", n)
	return nil
}
