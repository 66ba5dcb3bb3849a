package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/catalog"
	"github.com/blackwell-systems/distroshift/internal/configplan"
	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/history"
	"github.com/blackwell-systems/distroshift/internal/snapshots"
)

// untranslatedPreview caps how many untranslated packages are listed.
const untranslatedPreview = 10

// Shapeshift migrates the running system to target. Every fatal error is a
// *FailureError carrying the snapshot id, if one was taken. Declining a
// prompt yields an error matching errdefs.ErrCancelled.
func (o *Orchestrator) Shapeshift(ctx context.Context, target string, opts Options) (*Report, error) {
	report := &Report{DryRun: opts.DryRun}
	fail := func(phase string, err error) (*Report, error) {
		o.logger.Error("migration failed",
			zap.String("phase", phase),
			zap.String("snapshot", report.SnapshotID()),
			zap.Error(err))
		return report, &FailureError{Phase: phase, SnapshotID: report.SnapshotID(), Err: err}
	}

	if opts.CustomISO != "" {
		return fail("profile", errdefs.New(errdefs.ErrUnsupportedDistro,
			"custom ISO inspection is not implemented, use a catalog distribution"))
	}

	o.step(1, "Scanning current system")
	state, err := o.scanner.Collect(ctx)
	if err != nil {
		return fail("scan", err)
	}
	report.Source = state.Distro
	o.printf("  Current: %s (%s)\n", state.Distro, state.Distro.Family)

	o.step(2, "Loading target distribution profile")
	entry, err := o.profiles.Resolve(ctx, target)
	if err != nil {
		return fail("profile", err)
	}
	report.Target = entry.Release()
	o.printf("  Target: %s (%s)\n", entry.Release(), entry.Family)

	o.step(3, "Validating migration")
	report.Validation, err = o.check(ctx, state, entry)
	o.printFindings(report.Validation)
	if err != nil {
		return fail("validate", err)
	}

	if opts.DryRun {
		if err := o.plan(report, state, entry); err != nil {
			return fail("plan", err)
		}
		return report, nil
	}

	o.printf("\nWARNING: this will transform your system!\n")
	o.printf("  From: %s\n  To:   %s\n", state.Distro, entry.Release())
	ok, err := o.prompter.Confirm("Do you want to continue?", false)
	if err != nil {
		return fail("confirm", err)
	}
	if !ok {
		return fail("confirm", errdefs.New(errdefs.ErrCancelled, "transformation cancelled"))
	}

	o.step(4, "Creating system snapshot")
	if err := o.snapshot(ctx, report, state, entry); err != nil {
		return fail("snapshot", err)
	}

	o.step(5, "Translating packages")
	if err := o.plan(report, state, entry); err != nil {
		return fail("translate", err)
	}

	o.step(6, "Staging configuration")
	planner := o.planner(state.Distro.Family, entry.Family)
	report.Plan, err = planner.Stage(report.Plan, filepath.Join(o.cfg.ConfigStageDir(), o.runID(report)))
	if err != nil {
		return fail("stage", err)
	}
	o.printf("  %d configuration operations staged\n", len(report.Plan))

	o.step(7, "Preserving user data")
	report.Homes = o.preserveHomes(state.Users, o.cfg.UserBackupDir())

	o.step(8, "Executing migration")
	if err := o.execute(ctx, report, entry, planner); err != nil {
		return fail("execute", err)
	}

	rec := history.Record{
		FromDistro: state.Distro.Name,
		ToDistro:   entry.Name,
		Timestamp:  o.now(),
		SnapshotID: report.SnapshotID(),
	}
	if err := history.Append(o.cfg.HistoryPath(), rec); err != nil {
		return fail("record", err)
	}
	if rec.SnapshotID == "" {
		rec.SnapshotID = history.NoSnapshot
	}
	report.HistoryEntry = &rec

	o.logger.Info("migration complete",
		zap.String("from", state.Distro.String()),
		zap.String("to", entry.Release().String()),
		zap.Int("installed", len(report.Installed)),
		zap.Int("failed", len(report.FailedPkgs)))
	return report, nil
}

// snapshot takes the rollback snapshot. A failed or unusable snapshot is
// only tolerated if the operator explicitly opts out of rollback protection.
func (o *Orchestrator) snapshot(ctx context.Context, report *Report, state *distro.SystemState, entry *catalog.Entry) error {
	desc := fmt.Sprintf("Before migration to %s", entry.Release())
	snap, err := o.snapshots.Create(ctx, state.Distro, desc)
	if err == nil && !o.snapshots.PathExists(snap) {
		err = errdefs.Wrap(errdefs.ErrSnapshot, snapshots.ErrPathMissing, snap.Path)
	}
	if err == nil {
		report.Snapshot = snap
		o.printf("  Snapshot created: %s\n  Validated at: %s\n", snap.ID, snap.Path)
		return nil
	}

	o.logger.Warn("snapshot failed", zap.Error(err))
	o.printf("  Warning: snapshot creation failed: %v\n", err)
	o.printf("  You will NOT be able to roll back automatically.\n")
	cont, perr := o.prompter.Confirm("Continue without snapshot? (NOT RECOMMENDED)", false)
	if perr != nil {
		return perr
	}
	if !cont {
		return errdefs.Wrap(errdefs.ErrCancelled, err, "transformation cancelled for safety")
	}
	o.printf("  Proceeding without snapshot protection!\n")
	return nil
}

// plan fills in the translation result and the unstaged config plan.
func (o *Orchestrator) plan(report *Report, state *distro.SystemState, entry *catalog.Entry) error {
	result, err := o.translator.TranslatePackages(state.Distro.Family, entry.Family, state.Packages)
	if err != nil {
		return err
	}
	report.Translation = result
	report.Install = result.Installable(o.cfg.Translation.MinConfidence)

	o.printf("  Translated:   %d packages\n", len(result.Translated))
	o.printf("  Untranslated: %d packages\n", len(result.Untranslated))
	o.printf("  Skipped:      %d packages\n", len(result.Skipped))
	if n := len(result.Untranslated); n > 0 {
		o.printf("  Some packages could not be translated:\n")
		for i, p := range result.Untranslated {
			if i == untranslatedPreview {
				o.printf("    ... and %d more\n", n-untranslatedPreview)
				break
			}
			o.printf("    - %s\n", p.Name)
		}
	}

	ops, err := o.planner(state.Distro.Family, entry.Family).BuildPlan(o.cfg.ConfigBackupDir())
	if err != nil {
		return err
	}
	report.Plan = ops
	o.printf("  %d configuration operations planned\n", len(ops))
	return nil
}

func (o *Orchestrator) planner(source, target distro.Family) *configplan.Planner {
	return configplan.NewPlanner(source, target, configplan.WithRoot(o.root), configplan.WithLogger(o.logger))
}

// runID names the staging directory for this run.
func (o *Orchestrator) runID(report *Report) string {
	if id := report.SnapshotID(); id != "" {
		return id
	}
	return "run_" + strconv.FormatInt(o.now().Unix(), 10)
}

func (o *Orchestrator) printFindings(v *Validation) {
	if v == nil {
		return
	}
	for _, f := range v.Findings {
		mark := "✓"
		switch f.Severity {
		case SeverityWarning, SeverityInfo:
			mark = "!"
		case SeverityError:
			mark = "✗"
		}
		o.printf("  %s %s\n", mark, f.Message)
	}
}

// IsCancelled reports whether err came from the operator declining a prompt.
func IsCancelled(err error) bool {
	return errors.Is(err, errdefs.ErrCancelled)
}
