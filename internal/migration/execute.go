package migration

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/catalog"
	"github.com/blackwell-systems/distroshift/internal/configplan"
	"github.com/blackwell-systems/distroshift/internal/output"
	"github.com/blackwell-systems/distroshift/internal/system"
)

// execute applies the migration. Package and hook failures are recorded in
// the report and do not stop the run; a config operation failure does.
func (o *Orchestrator) execute(ctx context.Context, report *Report, entry *catalog.Entry, planner *configplan.Planner) error {
	installer := o.installers(entry.PackageManager)

	o.printf("  Setting up %s package manager\n", entry.PackageManager.Name)
	report.FailedHooks = append(report.FailedHooks, o.runHooks(ctx, "pre-migration", entry.PreHooks)...)
	if err := installer.Refresh(ctx); err != nil {
		o.logger.Warn("package database refresh failed", zap.Error(err))
		o.printf("  Warning: package database refresh failed: %v\n", err)
	}

	o.printf("  Installing %d base packages for %s\n", len(entry.BasePackages), entry.Name)
	bar := output.NewProgress(o.out, len(entry.BasePackages), "base packages")
	for _, pkg := range entry.BasePackages {
		o.installOne(ctx, installer, report, pkg)
		bar.Increment()
	}
	bar.Finish()

	o.installTranslated(ctx, installer, report)

	o.printf("  Applying %d configuration operations\n", len(report.Plan))
	if err := planner.ExecuteAll(report.Plan); err != nil {
		return err
	}

	report.FailedHooks = append(report.FailedHooks, o.runHooks(ctx, "post-migration", entry.PostHooks)...)
	return nil
}

// installTranslated installs the mapped packages in batches. A failed batch
// is retried one package at a time so a single bad name does not lose the
// rest of the batch.
func (o *Orchestrator) installTranslated(ctx context.Context, installer Installer, report *Report) {
	pkgs := report.Install
	size := o.cfg.Translation.BatchSize
	if size < 1 {
		size = len(pkgs)
	}

	o.printf("  Installing %d translated packages\n", len(pkgs))
	bar := output.NewProgress(o.out, len(pkgs), "translated packages")
	for start := 0; start < len(pkgs); start += size {
		end := start + size
		if end > len(pkgs) {
			end = len(pkgs)
		}
		batch := pkgs[start:end]

		if err := installer.Install(ctx, batch...); err != nil {
			o.logger.Warn("batch install failed, retrying individually",
				zap.Int("size", len(batch)), zap.Error(err))
			for _, pkg := range batch {
				o.installOne(ctx, installer, report, pkg)
			}
		} else {
			report.Installed = append(report.Installed, batch...)
		}
		bar.IncrementBy(len(batch))
	}
	bar.Finish()

	if n := len(report.FailedPkgs); n > 0 {
		o.printf("  Warning: %d packages failed to install\n", n)
	}
}

func (o *Orchestrator) installOne(ctx context.Context, installer Installer, report *Report, pkg string) {
	if err := installer.Install(ctx, pkg); err != nil {
		o.logger.Warn("package install failed", zap.String("package", pkg), zap.Error(err))
		report.FailedPkgs = append(report.FailedPkgs, pkg)
		return
	}
	report.Installed = append(report.Installed, pkg)
}

// runHooks runs each hook through the shell and returns the ones that
// failed. Hook failures never abort the migration.
func (o *Orchestrator) runHooks(ctx context.Context, stage string, hooks []string) []string {
	var failed []string
	for _, hook := range hooks {
		o.printf("    Running: %s\n", hook)
		_, err := o.shell(ctx, hook)
		if err != nil {
			stderr := system.StderrOf(err)
			o.logger.Warn("hook failed",
				zap.String("stage", stage),
				zap.String("hook", hook),
				zap.String("stderr", stderr),
				zap.Error(err))
			o.printf("    Warning: hook failed: %s\n", hook)
			if stderr != "" {
				o.printf("    %s\n", strings.TrimSpace(stderr))
			}
			failed = append(failed, hook)
		}
	}
	return failed
}

func (o *Orchestrator) shell(ctx context.Context, script string) (*system.Result, error) {
	if d := o.cfg.Timeouts.Hook; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return system.RunShell(ctx, o.runner, script)
}
