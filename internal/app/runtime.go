package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/catalog"
	"github.com/blackwell-systems/distroshift/internal/config"
	"github.com/blackwell-systems/distroshift/internal/lock"
	"github.com/blackwell-systems/distroshift/internal/logger"
	"github.com/blackwell-systems/distroshift/internal/migration"
	"github.com/blackwell-systems/distroshift/internal/prompt"
	"github.com/blackwell-systems/distroshift/internal/scanner"
	"github.com/blackwell-systems/distroshift/internal/snapshots"
	"github.com/blackwell-systems/distroshift/internal/store"
	"github.com/blackwell-systems/distroshift/internal/system"
	"github.com/blackwell-systems/distroshift/internal/translate"
)

// geteuid is replaced in tests.
var geteuid = os.Geteuid

var errNotRoot = errors.New("this command must be run as root (try sudo)")

// runtime holds what a command needs, built once from the flags and the
// config file.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	runner   system.Runner
	prompter prompt.Prompter
	out      io.Writer

	// mutating commands need the data directories and the log file.
	// Read-only commands fall back to stderr logging and an in-memory
	// mapping index when those are not writable.
	mutating bool

	store   *store.Store
	release lock.Releaser
}

func newRuntime(cmd *cobra.Command, mutating bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	opts := logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Stderr: verbose,
	}
	dirErr := cfg.EnsureDirs()
	if dirErr != nil {
		if mutating {
			return nil, dirErr
		}
		opts.File = ""
	}

	log, _, err := logger.New(opts)
	if err != nil && !mutating && opts.File != "" {
		opts.File = ""
		log, _, err = logger.New(opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if dirErr != nil {
		log.Debug("data directories unavailable", zap.Error(dirErr))
	}

	runner := system.NewExecRunner(log)
	runner.SetDefaultTimeout(cfg.Timeouts.Command)

	rt := &runtime{
		cfg:      cfg,
		logger:   log,
		runner:   runner,
		out:      cmd.OutOrStdout(),
		mutating: mutating,
	}
	if assumeYes {
		rt.prompter = prompt.Yes{}
	} else {
		rt.prompter = prompt.NewTerminal(cmd.InOrStdin(), rt.out)
	}
	return rt, nil
}

func (rt *runtime) close() {
	if rt.release != nil {
		rt.release.Release()
		rt.release = nil
	}
	if rt.store != nil {
		rt.store.Close()
		rt.store = nil
	}
	_ = rt.logger.Sync()
}

// lock takes the machine-wide lock until close.
func (rt *runtime) lock() error {
	r, err := lock.Acquire(lock.Name, rt.cfg.Lock.Timeout)
	if err != nil {
		return err
	}
	rt.release = r
	return nil
}

func requireRoot() error {
	if geteuid() != 0 {
		return errNotRoot
	}
	return nil
}

// index opens the mapping store, seeds it and applies the operator's
// override file.
func (rt *runtime) index() (*translate.Index, error) {
	ix, err := rt.openIndex(rt.cfg.MappingDBPath())
	if err != nil && !rt.mutating {
		rt.logger.Warn("mapping database unavailable, using built-in mappings only",
			zap.String("path", rt.cfg.MappingDBPath()), zap.Error(err))
		ix, err = rt.openIndex(":memory:")
	}
	if err != nil {
		return nil, err
	}

	overrides, err := config.LoadMappingOverrides(rt.cfg.MappingsFile)
	if err != nil {
		return nil, err
	}
	for _, m := range overrides {
		if err := ix.AddMapping(m.SourceFamily, m.SourcePackage, m.TargetFamily, m.TargetPackage, m.Confidence); err != nil {
			return nil, fmt.Errorf("failed to apply mapping override %s:%s: %w", m.SourceFamily, m.SourcePackage, err)
		}
	}
	if len(overrides) > 0 {
		rt.logger.Info("applied mapping overrides", zap.Int("count", len(overrides)), zap.String("file", rt.cfg.MappingsFile))
	}
	return ix, nil
}

func (rt *runtime) openIndex(path string) (*translate.Index, error) {
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping database: %w", err)
	}

	ix, err := translate.New(st, rt.logger)
	if err == nil {
		_, err = ix.Seed()
		if err != nil {
			err = fmt.Errorf("failed to seed package mappings: %w", err)
		}
	}
	if err != nil {
		st.Close()
		return nil, err
	}
	rt.store = st
	return ix, nil
}

func (rt *runtime) catalog() (*catalog.Catalog, error) {
	return catalog.New(
		catalog.WithProfileDir(rt.cfg.ProfilesDir),
		catalog.WithCacheDir(rt.cfg.CacheDir),
		catalog.WithRepository(rt.cfg.RepositoryURL),
		catalog.WithHTTPClient(&http.Client{Timeout: rt.cfg.Timeouts.Fetch}),
		catalog.WithLogger(rt.logger),
	)
}

func (rt *runtime) scanner() *scanner.Scanner {
	return scanner.New(scanner.WithRunner(rt.runner), scanner.WithLogger(rt.logger))
}

func (rt *runtime) snapshots() *snapshots.Manager {
	return snapshots.New(rt.cfg.SnapshotDir,
		snapshots.WithRunner(rt.runner),
		snapshots.WithPrompter(rt.prompter),
		snapshots.WithLogger(rt.logger),
		snapshots.WithOutput(rt.out),
		snapshots.WithRsyncTimeout(rt.cfg.Timeouts.Rsync),
		snapshots.WithPreserve(rt.cfg.DataDir, rt.cfg.CacheDir),
	)
}

func (rt *runtime) orchestrator(out io.Writer) (*migration.Orchestrator, error) {
	ix, err := rt.index()
	if err != nil {
		return nil, err
	}
	cat, err := rt.catalog()
	if err != nil {
		return nil, err
	}
	return migration.New(rt.cfg, migration.Deps{
		Scanner:    rt.scanner(),
		Profiles:   cat,
		Snapshots:  rt.snapshots(),
		Translator: ix,
		Runner:     rt.runner,
		Prompter:   rt.prompter,
		Logger:     rt.logger,
		Out:        out,
	}), nil
}
