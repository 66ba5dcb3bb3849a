package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/migration"
	"github.com/blackwell-systems/distroshift/internal/output"
)

var (
	shapeshiftFlagCustomISO string
	shapeshiftFlagDryRun    bool
	shapeshiftFlagPlanJSON  bool
)

var shapeshiftCmd = &cobra.Command{
	Use:   "shapeshift <target>",
	Short: "Migrate this system to another distribution",
	Long: `Transform the running system into the target distribution.

The migration runs in phases: scan, validate, snapshot, translate packages,
stage configuration, preserve home directories, then install and apply.
A snapshot is taken before anything is changed; if it cannot be taken you
are asked whether to continue without rollback protection.

Use --dry-run to see the package translation and configuration plan
without changing anything.`,
	Example: `  distroshift shapeshift arch --dry-run
  distroshift shapeshift fedora --dry-run --plan-json > plan.json
  sudo distroshift shapeshift arch`,
	Args: cobra.ExactArgs(1),
	RunE: runShapeshift,
}

func init() {
	shapeshiftCmd.Flags().StringVar(&shapeshiftFlagCustomISO, "custom-iso", "", "derive the target profile from an installation ISO")
	shapeshiftCmd.Flags().BoolVar(&shapeshiftFlagDryRun, "dry-run", false, "show the plan without changing anything")
	shapeshiftCmd.Flags().BoolVar(&shapeshiftFlagPlanJSON, "plan-json", false, "with --dry-run, print the plan as JSON")

	RootCmd.AddCommand(shapeshiftCmd)
}

func runShapeshift(cmd *cobra.Command, args []string) error {
	if shapeshiftFlagPlanJSON && !shapeshiftFlagDryRun {
		return fmt.Errorf("--plan-json requires --dry-run")
	}
	err := shapeshift(cmd, args[0])
	if err != nil {
		printRollbackHint(cmd.ErrOrStderr(), err)
	}
	return err
}

func shapeshift(cmd *cobra.Command, target string) error {
	if !shapeshiftFlagDryRun {
		if err := requireRoot(); err != nil {
			return err
		}
	}

	rt, err := newRuntime(cmd, !shapeshiftFlagDryRun)
	if err != nil {
		return err
	}
	defer rt.close()

	if !shapeshiftFlagDryRun {
		if err := rt.lock(); err != nil {
			return err
		}
	}

	// Keep stdout clean for the JSON document.
	progress := rt.out
	if shapeshiftFlagPlanJSON {
		progress = io.Discard
	}
	orch, err := rt.orchestrator(progress)
	if err != nil {
		return err
	}

	opts := migration.Options{CustomISO: shapeshiftFlagCustomISO, DryRun: shapeshiftFlagDryRun}
	report, err := orch.Shapeshift(cmd.Context(), target, opts)
	if err != nil {
		if migration.IsCancelled(err) {
			fmt.Fprintf(rt.out, "\n%v\nNo changes were made.\n", err)
			return nil
		}
		return err
	}

	if shapeshiftFlagDryRun {
		return printDryRun(rt.out, report)
	}
	printSummary(rt.out, report)
	return nil
}

func printDryRun(w io.Writer, report *migration.Report) error {
	if shapeshiftFlagPlanJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "\nDry run: %s → %s\n\n", report.Source, report.Target)
	fmt.Fprint(w, output.RenderTranslation(report.Translation, 25))
	fmt.Fprintf(w, "\nPackages to install: %d\n\n", len(report.Install))
	fmt.Fprint(w, output.RenderPlan(report.Plan))
	fmt.Fprintln(w, "\nNo changes were made.")
	return nil
}

func printSummary(w io.Writer, report *migration.Report) {
	fmt.Fprintf(w, "\nMigration to %s complete.\n", report.Target)
	fmt.Fprintf(w, "  Packages installed: %d\n", len(report.Installed))
	if len(report.FailedPkgs) > 0 {
		fmt.Fprintf(w, "  Packages failed:    %d\n", len(report.FailedPkgs))
		for _, p := range report.FailedPkgs {
			fmt.Fprintf(w, "    - %s\n", p)
		}
	}
	if len(report.FailedHooks) > 0 {
		fmt.Fprintf(w, "  Hooks failed:       %d\n", len(report.FailedHooks))
		for _, h := range report.FailedHooks {
			fmt.Fprintf(w, "    - %s\n", h)
		}
	}
	if id := report.SnapshotID(); id != "" {
		fmt.Fprintf(w, "\nTo roll back: sudo distroshift revert %s\n", id)
	} else {
		fmt.Fprintln(w, "\nNo snapshot was taken; this migration cannot be rolled back automatically.")
	}
	fmt.Fprintln(w, "Reboot to finish the migration.")
}

// printRollbackHint tells the operator how to recover from a failed run.
func printRollbackHint(w io.Writer, err error) {
	var ferr *migration.FailureError
	if !errors.As(err, &ferr) {
		fmt.Fprintln(w, "\nNo snapshot is available for automatic rollback.")
		return
	}
	fmt.Fprintf(w, "\nMigration failed during %s.\n", ferr.Phase)
	if ferr.SnapshotID != "" {
		fmt.Fprintf(w, "To restore the previous system, run:\n  sudo distroshift revert %s\n", ferr.SnapshotID)
		return
	}
	fmt.Fprintln(w, "No snapshot is available for automatic rollback.")
}
