// Package scanner collects the SystemState of the running host.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/util"
	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/system"
)

// Unknown is recorded for probes that produced no answer.
const Unknown = "unknown"

// Scanner inspects the host through a system.Runner and the filesystem
// under root.
type Scanner struct {
	runner  system.Runner
	root    string
	logger  *zap.Logger
	systemd func() bool
}

// Option configures a Scanner.
type Option func(*Scanner)

func WithRunner(r system.Runner) Option { return func(s *Scanner) { s.runner = r } }

// WithRoot reads /etc and /boot below root instead of /.
func WithRoot(root string) Option { return func(s *Scanner) { s.root = root } }

func WithLogger(l *zap.Logger) Option { return func(s *Scanner) { s.logger = l } }

// WithSystemdProbe replaces the check for a running systemd.
func WithSystemdProbe(probe func() bool) Option { return func(s *Scanner) { s.systemd = probe } }

// New creates a Scanner for the host.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		root:    "/",
		logger:  zap.NewNop(),
		systemd: util.IsRunningSystemd,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = system.NewExecRunner(s.logger)
	}
	return s
}

// Collect scans the host. Only distribution detection and the package
// inventory are fatal; every other probe degrades to Unknown or empty.
func (s *Scanner) Collect(ctx context.Context) (*distro.SystemState, error) {
	release, err := distro.Detect(s.root)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrUnsupportedDistro, err, "detect distribution")
	}
	s.logger.Info("detected distribution",
		zap.String("name", release.Name),
		zap.String("version", release.Version),
		zap.String("family", string(release.Family)))

	state := &distro.SystemState{
		Distro:       release,
		Kernel:       s.uname(ctx, "-r"),
		Architecture: s.uname(ctx, "-m"),
		Filesystem:   s.filesystem(ctx),
		Bootloader:   s.bootloader(),
		Init:         s.initSystem(),
	}

	state.Packages, err = s.packages(ctx, release.Family)
	if err != nil {
		return nil, err
	}

	state.Services, err = s.services(ctx, state.Init)
	if err != nil {
		s.logger.Warn("service scan failed", zap.Error(err))
	}

	state.Users, err = readUsers(s.path("etc/passwd"))
	if err != nil {
		s.logger.Warn("user scan failed", zap.Error(err))
	}

	return state, nil
}

func (s *Scanner) path(rel string) string {
	return filepath.Join(s.root, rel)
}

func (s *Scanner) uname(ctx context.Context, flag string) string {
	res, err := s.runner.Run(ctx, "uname", flag)
	if err != nil {
		s.logger.Warn("uname failed", zap.String("flag", flag), zap.Error(err))
		return Unknown
	}
	if v := strings.TrimSpace(string(res.Stdout)); v != "" {
		return v
	}
	return Unknown
}

func (s *Scanner) filesystem(ctx context.Context) string {
	fs, err := system.RootFSType(ctx, s.runner)
	if err != nil || fs == "" {
		return Unknown
	}
	return fs
}

var bootloaderProbes = []struct {
	path string
	name string
}{
	{"boot/loader/entries", "systemd-boot"},
	{"boot/grub2", "grub2"},
	{"boot/grub", "grub"},
	{"boot/syslinux", "syslinux"},
}

func (s *Scanner) bootloader() string {
	for _, p := range bootloaderProbes {
		if info, err := os.Stat(s.path(p.path)); err == nil && info.IsDir() {
			return p.name
		}
	}
	return Unknown
}

func (s *Scanner) initSystem() distro.InitSystem {
	if s.systemd() {
		return distro.Systemd
	}
	switch {
	case exists(s.path("run/openrc")), exists(s.path("sbin/openrc-run")):
		return distro.OpenRC
	case exists(s.path("run/runit")), exists(s.path("etc/runit")):
		return distro.Runit
	}
	return distro.SysVInit
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
