// Package migration sequences a distribution migration: scan, validate,
// snapshot, translate, apply and record.
//
// Every phase runs to completion before the next starts. Prompts come before
// the destructive step of their phase, so declining leaves the system as the
// previous phase left it.
package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/catalog"
	"github.com/blackwell-systems/distroshift/internal/config"
	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/pkgmgr"
	"github.com/blackwell-systems/distroshift/internal/prompt"
	"github.com/blackwell-systems/distroshift/internal/snapshots"
	"github.com/blackwell-systems/distroshift/internal/system"
	"github.com/blackwell-systems/distroshift/internal/translate"
)

// Scanner produces the current SystemState.
type Scanner interface {
	Collect(ctx context.Context) (*distro.SystemState, error)
}

// Profiles resolves a target name to a distribution profile.
type Profiles interface {
	Resolve(ctx context.Context, name string) (*catalog.Entry, error)
}

// Snapshotter creates rollback points.
type Snapshotter interface {
	Create(ctx context.Context, origin distro.Release, description string) (*snapshots.Snapshot, error)
	PathExists(snap *snapshots.Snapshot) bool
}

// Translator maps installed packages between families.
type Translator interface {
	TranslatePackages(source, target distro.Family, pkgs []distro.InstalledPackage) (*translate.Result, error)
}

// Installer installs packages on the target side.
type Installer interface {
	Refresh(ctx context.Context) error
	Install(ctx context.Context, pkgs ...string) error
}

// InstallerFactory builds the Installer for a target package manager.
type InstallerFactory func(pm distro.PackageManager) Installer

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Scanner     Scanner
	Profiles    Profiles
	Snapshots   Snapshotter
	Translator  Translator
	Installers  InstallerFactory
	Runner      system.Runner
	Prompter    prompt.Prompter
	Logger      *zap.Logger
	Out         io.Writer
	Root        string
	Now         func() time.Time
	DiskChecker func(ctx context.Context) (uint64, error)
}

// Orchestrator runs migrations with one configuration.
type Orchestrator struct {
	cfg        *config.Config
	scanner    Scanner
	profiles   Profiles
	snapshots  Snapshotter
	translator Translator
	installers InstallerFactory
	runner     system.Runner
	prompter   prompt.Prompter
	logger     *zap.Logger
	out        io.Writer
	root       string
	now        func() time.Time
	available  func(ctx context.Context) (uint64, error)
}

// New returns an Orchestrator. Unset optional deps fall back to the host:
// exec for commands, the terminal for prompts, stdout for progress.
func New(cfg *config.Config, d Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		scanner:    d.Scanner,
		profiles:   d.Profiles,
		snapshots:  d.Snapshots,
		translator: d.Translator,
		installers: d.Installers,
		runner:     d.Runner,
		prompter:   d.Prompter,
		logger:     d.Logger,
		out:        d.Out,
		root:       d.Root,
		now:        d.Now,
		available:  d.DiskChecker,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.out == nil {
		o.out = os.Stdout
	}
	if o.root == "" {
		o.root = "/"
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.runner == nil {
		o.runner = system.NewExecRunner(o.logger)
	}
	if o.prompter == nil {
		o.prompter = prompt.NewTerminal(nil, o.out)
	}
	if o.installers == nil {
		runner, timeout, logger := o.runner, cfg.Timeouts.PackageManager, o.logger
		o.installers = func(pm distro.PackageManager) Installer {
			return pkgmgr.New(pm, runner, pkgmgr.WithTimeout(timeout), pkgmgr.WithLogger(logger))
		}
	}
	if o.available == nil {
		o.available = func(ctx context.Context) (uint64, error) {
			return system.AvailableBytes(ctx, o.runner, "/")
		}
	}
	return o
}

func (o *Orchestrator) printf(format string, args ...any) {
	fmt.Fprintf(o.out, format, args...)
}

func (o *Orchestrator) step(n int, title string) {
	o.printf("\nStep %d: %s\n", n, title)
	o.logger.Info("migration phase", zap.Int("step", n), zap.String("phase", title))
}
