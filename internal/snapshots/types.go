// Package snapshots creates, lists and restores whole-system backups taken
// before a migration.
package snapshots

import (
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/prompt"
	"github.com/blackwell-systems/distroshift/internal/system"
)

// Type is the mechanism backing a snapshot.
type Type string

const (
	Btrfs Type = "Btrfs"
	LVM   Type = "LVM"
	Rsync Type = "Rsync"
)

// MinFreeBytes is the free space an rsync snapshot requires on /.
const MinFreeBytes = 20 * system.GiB

// lvmSnapshotSize is the copy-on-write reservation for LVM snapshots.
const lvmSnapshotSize = "10G"

// CriticalDirs are the top-level trees an rsync snapshot captures and an
// rsync revert restores, relative to /.
var CriticalDirs = []string{"etc", "var/lib", "usr/local", "opt", "home", "root"}

// rsyncExcludes keep virtual filesystems, package caches and per-user
// caches out of rsync snapshots.
var rsyncExcludes = []string{
	"/dev", "/proc", "/sys", "/tmp", "/run", "/mnt", "/media", "/lost+found",
	"/var/cache/apt", "/var/cache/pacman", "/var/cache/yum", "/var/cache/dnf", "/var/tmp",
	".cache", "*.log", ".local/share/Trash",
}

var (
	ErrInsufficientSpace   = errors.New("insufficient disk space for snapshot")
	ErrPathMissing         = errors.New("snapshot path missing")
	ErrManualStepsRequired = errors.New("manual steps required to complete revert")
	ErrNoSnapshots         = errors.New("no snapshots available")
	ErrIDCollision         = errors.New("snapshot identifier collision")
)

// Snapshot is the metadata persisted beside each backup as <id>.json.
type Snapshot struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	DistroName    string `json:"distro_name"`
	DistroVersion string `json:"distro_version"`
	Description   string `json:"description"`
	Type          Type   `json:"snapshot_type"`
	SizeBytes     uint64 `json:"size_bytes"`
	Path          string `json:"path"`
	// Volume is the vg/lv name of an LVM snapshot.
	Volume string `json:"volume,omitempty"`
}

// CreatedAt returns the creation time.
func (s *Snapshot) CreatedAt() time.Time {
	return time.Unix(s.Timestamp, 0)
}

// Manager manages snapshot creation, listing and revert.
type Manager struct {
	dir          string
	root         string
	runner       system.Runner
	prompter     prompt.Prompter
	logger       *zap.Logger
	out          io.Writer
	rsyncTimeout time.Duration
	preserve     []string
	now          func() time.Time
	suffix       func() uint16
}

// Option configures a Manager.
type Option func(*Manager)

func WithRunner(r system.Runner) Option { return func(m *Manager) { m.runner = r } }

func WithPrompter(p prompt.Prompter) Option { return func(m *Manager) { m.prompter = p } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithOutput sets where operator-facing instructions are printed.
func WithOutput(w io.Writer) Option { return func(m *Manager) { m.out = w } }

// WithRoot sets the live root that rsync snapshots read and restore.
func WithRoot(root string) Option { return func(m *Manager) { m.root = root } }

// WithRsyncTimeout bounds each rsync invocation.
func WithRsyncTimeout(d time.Duration) Option { return func(m *Manager) { m.rsyncTimeout = d } }

// WithPreserve names live absolute paths that rsync snapshots never capture
// and rsync reverts never overwrite. The snapshot directory is always
// preserved.
func WithPreserve(paths ...string) Option {
	return func(m *Manager) { m.preserve = append(m.preserve, paths...) }
}

// New creates a snapshot Manager storing metadata in snapshotDir.
func New(snapshotDir string, opts ...Option) *Manager {
	m := &Manager{
		dir:      snapshotDir,
		root:     "/",
		prompter: prompt.NewTerminal(nil, nil),
		logger:   zap.NewNop(),
		out:      os.Stdout,
		now:      time.Now,
		suffix:   func() uint16 { return uint16(rand.Uint32()) },
	}
	for _, o := range opts {
		o(m)
	}
	if abs, err := filepath.Abs(m.dir); err == nil {
		m.preserve = append(m.preserve, abs)
	}
	if m.runner == nil {
		m.runner = system.NewExecRunner(m.logger)
	}
	return m
}

// Dir returns the snapshot storage directory.
func (m *Manager) Dir() string {
	return m.dir
}
