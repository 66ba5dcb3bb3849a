package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List target distributions",
	Long: `List the distribution profiles available as migration targets: the
built-in catalog plus any profiles in the profiles directory.

Distributions missing from the list may still be fetched from the
configured profile repository by 'shapeshift' and 'validate'.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	cat, err := rt.catalog()
	if err != nil {
		return err
	}
	fmt.Fprint(rt.out, output.RenderProfiles(cat.Entries()))
	return nil
}
