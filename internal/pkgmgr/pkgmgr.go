// Package pkgmgr drives a distribution's package manager from its profile
// descriptor. Package names are always passed as separate arguments.
package pkgmgr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/system"
)

// DefaultTimeout bounds a single package-manager invocation.
const DefaultTimeout = 30 * time.Minute

// Manager runs install and update commands for one profile.
type Manager struct {
	pm      distro.PackageManager
	runner  system.Runner
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

func WithTimeout(d time.Duration) Option { return func(m *Manager) { m.timeout = d } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

// New returns a Manager for pm.
func New(pm distro.PackageManager, runner system.Runner, opts ...Option) *Manager {
	m := &Manager{
		pm:      pm,
		runner:  runner,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Refresh runs the profile's update commands in order, stopping at the
// first failure.
func (m *Manager) Refresh(ctx context.Context) error {
	for _, argv := range m.pm.Update {
		if len(argv) == 0 {
			continue
		}
		if err := m.run(ctx, argv); err != nil {
			return errdefs.Wrap(errdefs.ErrPackageManager, err, "refresh package databases")
		}
	}
	return nil
}

// Install installs pkgs in a single invocation.
func (m *Manager) Install(ctx context.Context, pkgs ...string) error {
	argv, err := m.Command(m.pm.Install, pkgs...)
	if err != nil {
		return err
	}
	if err := m.run(ctx, argv); err != nil {
		return errdefs.Wrap(errdefs.ErrPackageManager, err, "install "+strings.Join(pkgs, " "))
	}
	return nil
}

// Command builds the argument vector for base applied to pkgs.
func (m *Manager) Command(base []string, pkgs ...string) ([]string, error) {
	if len(base) == 0 {
		return nil, errdefs.New(errdefs.ErrConfiguration, fmt.Sprintf("package manager %q has no command configured", m.pm.Name))
	}
	if len(pkgs) == 0 {
		return nil, errdefs.New(errdefs.ErrValidation, "no packages given")
	}
	argv := append([]string(nil), base...)
	for _, p := range pkgs {
		if err := ValidateName(p); err != nil {
			return nil, err
		}
		argv = append(argv, m.pm.PackagePrefix+p)
	}
	return argv, nil
}

func (m *Manager) run(ctx context.Context, argv []string) error {
	start := time.Now()
	_, err := system.WithTimeout(ctx, m.runner, m.timeout, argv[0], argv[1:]...)
	fields := []zap.Field{
		zap.Strings("argv", argv),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		m.logger.Warn("package manager command failed", append(fields, zap.Error(err))...)
		return err
	}
	m.logger.Info("package manager command finished", fields...)
	return nil
}

// ValidateName rejects names the package manager would parse as options or
// that cannot be a package.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errdefs.New(errdefs.ErrValidation, "empty package name")
	case strings.HasPrefix(name, "-"):
		return errdefs.New(errdefs.ErrValidation, fmt.Sprintf("invalid package name %q", name))
	case strings.ContainsAny(name, " \t\n\x00"):
		return errdefs.New(errdefs.ErrValidation, fmt.Sprintf("invalid package name %q", name))
	}
	return nil
}
