package configplan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
)

// NetworkdUnit is where a translated ifupdown configuration is written.
const NetworkdUnit = "/etc/systemd/network/20-migrated.network"

// Planner builds and applies configuration operations for one family pair.
type Planner struct {
	source distro.Family
	target distro.Family
	root   string
	logger *zap.Logger
	rules  []Rule
}

// Option configures a Planner.
type Option func(*Planner)

// WithRoot resolves every live path under root instead of /.
func WithRoot(root string) Option {
	return func(p *Planner) { p.root = root }
}

// WithLogger sets the planner's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// NewPlanner registers the rules that apply to migrating from source to target.
func NewPlanner(source, target distro.Family, opts ...Option) *Planner {
	p := &Planner{source: source, target: target, root: "/", logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	p.rules = rulesFor(source, target)
	return p
}

func rulesFor(source, target distro.Family) []Rule {
	var rules []Rule

	switch {
	case source == distro.Debian && target == distro.Arch:
		rules = append(rules, Rule{
			Name:      "network",
			Kind:      Transform,
			Source:    "/etc/network/interfaces",
			Target:    NetworkdUnit,
			Transform: InterfacesToNetworkd,
		})
	case source == distro.Arch && target == distro.Debian:
		rules = append(rules, Rule{
			Name:      "network",
			Kind:      Transform,
			Source:    "/etc/systemd/network",
			Target:    "/etc/network/interfaces",
			Transform: NetworkdToInterfaces,
		})
	}

	for _, f := range []string{"passwd", "shadow", "group"} {
		path := "/etc/" + f
		rules = append(rules, Rule{Name: "identity-" + f, Kind: Merge, Source: path, Target: path})
	}

	if source.Systemd() && target.Systemd() {
		rules = append(rules, Rule{
			Name:   "systemd-units",
			Kind:   Copy,
			Source: "/etc/systemd/system",
			Target: "/etc/systemd/system",
		})
	}

	for _, path := range packageManagerPaths(target) {
		rules = append(rules, Rule{Name: "package-manager", Kind: Skip, Source: path, Target: path})
	}

	return rules
}

// packageManagerPaths lists the target's own package-manager configuration.
func packageManagerPaths(f distro.Family) []string {
	switch f {
	case distro.Arch:
		return []string{"/etc/pacman.conf", "/etc/pacman.d"}
	case distro.Debian:
		return []string{"/etc/apt"}
	case distro.RedHat:
		return []string{"/etc/yum.repos.d", "/etc/dnf"}
	case distro.Suse:
		return []string{"/etc/zypp"}
	}
	return nil
}

// Rules returns the registered rules in registration order.
func (p *Planner) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

func (p *Planner) live(path string) string {
	return filepath.Join(p.root, path)
}

// BuildPlan returns the operations whose source exists. Merge operations
// back the live target up under backupDir. Skip rules are never emitted.
func (p *Planner) BuildPlan(backupDir string) ([]Operation, error) {
	var ops []Operation
	for _, r := range p.rules {
		if r.Kind == Skip {
			continue
		}
		if r.Kind == Transform {
			if _, ok := LookupTransform(r.Transform); !ok {
				return nil, errdefs.New(errdefs.ErrConfiguration, fmt.Sprintf("rule %s names unknown transform %q", r.Name, r.Transform))
			}
		}
		if !fsutil.Exists(p.live(r.Source)) {
			p.logger.Debug("config source absent", zap.String("rule", r.Name), zap.String("path", r.Source))
			continue
		}

		op := Operation{
			Kind:      r.Kind,
			Rule:      r.Name,
			Source:    r.Source,
			Target:    r.Target,
			Transform: r.Transform,
		}
		if r.Kind == Merge {
			op.Backup = filepath.Join(backupDir, strings.TrimPrefix(filepath.Clean(r.Target), "/"))
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Stage copies each operation's source into stageDir and returns the
// operations rewritten to read from the copies. Staging runs before target
// packages are installed so later phases can't clobber the originals.
func (p *Planner) Stage(ops []Operation, stageDir string) ([]Operation, error) {
	staged := make([]Operation, len(ops))
	for i, op := range ops {
		dst := filepath.Join(stageDir, strings.TrimPrefix(filepath.Clean(op.Source), "/"))
		if _, err := fsutil.CopyTree(p.live(op.Source), dst, fsutil.TreeOptions{}); err != nil {
			return nil, errdefs.Wrap(errdefs.ErrFileSystem, err, fmt.Sprintf("stage %s", op.Source))
		}
		op.StagedSource = dst
		staged[i] = op
	}
	return staged, nil
}

func (p *Planner) sourcePath(op Operation) string {
	if op.StagedSource != "" {
		return op.StagedSource
	}
	return p.live(op.Source)
}

// Execute applies op to the live filesystem.
func (p *Planner) Execute(op Operation) error {
	var err error
	switch op.Kind {
	case Copy:
		err = p.executeCopy(op)
	case Merge:
		err = p.executeMerge(op)
	case Transform:
		err = p.executeTransform(op)
	case Skip:
		return nil
	default:
		return errdefs.New(errdefs.ErrConfiguration, fmt.Sprintf("unknown operation kind %q", op.Kind))
	}
	if err != nil {
		return errdefs.Wrap(errdefs.ErrConfiguration, err, fmt.Sprintf("%s %s -> %s", op.Kind, op.Source, op.Target))
	}
	p.logger.Info("applied config operation",
		zap.String("kind", string(op.Kind)),
		zap.String("rule", op.Rule),
		zap.String("target", op.Target))
	return nil
}

// ExecuteAll applies ops in order and stops at the first failure.
func (p *Planner) ExecuteAll(ops []Operation) error {
	for _, op := range ops {
		if err := p.Execute(op); err != nil {
			return err
		}
	}
	return nil
}

// samePath reports whether op would read and write the same live file.
// Unstaged copies and merges of a path onto itself are no-ops.
func (p *Planner) samePath(op Operation) bool {
	return filepath.Clean(p.sourcePath(op)) == filepath.Clean(p.live(op.Target))
}

func (p *Planner) executeCopy(op Operation) error {
	if p.samePath(op) {
		return nil
	}
	_, err := fsutil.CopyTree(p.sourcePath(op), p.live(op.Target), fsutil.TreeOptions{})
	return err
}

func (p *Planner) executeMerge(op Operation) error {
	if p.samePath(op) {
		return nil
	}
	sourceInfo, err := os.Stat(p.sourcePath(op))
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	source, err := os.ReadFile(p.sourcePath(op))
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	target := p.live(op.Target)
	existing, err := os.ReadFile(target)
	switch {
	case err == nil:
		if op.Backup != "" {
			if err := fsutil.CopyFile(target, op.Backup); err != nil {
				p.logger.Warn("failed to back up merge target", zap.String("target", target), zap.Error(err))
			}
		}
	case errors.Is(err, os.ErrNotExist):
		existing = nil
	default:
		return fmt.Errorf("failed to read target: %w", err)
	}

	merged := make([]byte, 0, len(existing)+len(MergeMarker)+len(source))
	merged = append(merged, existing...)
	merged = append(merged, MergeMarker...)
	merged = append(merged, source...)

	// A new target keeps the source's permissions.
	perm := sourceInfo.Mode().Perm()
	if info, err := os.Stat(target); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, merged, perm)
}

func (p *Planner) executeTransform(op Operation) error {
	fn, ok := LookupTransform(op.Transform)
	if !ok {
		return fmt.Errorf("unknown transform %q", op.Transform)
	}

	content, err := readSource(p.sourcePath(op))
	if err != nil {
		return err
	}

	out, err := fn(content)
	if errors.Is(err, ErrNothingToTransform) {
		p.logger.Info("transform produced no output", zap.String("rule", op.Rule), zap.String("source", op.Source))
		return nil
	}
	if err != nil {
		return err
	}

	target := p.live(op.Target)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.WriteFile(target, []byte(out), 0644)
}

// readSource returns a file's content, or for a directory the content of its
// *.network files joined in name order.
func readSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read source: %w", err)
		}
		return string(data), nil
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.network"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)

	var sb strings.Builder
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", m, err)
		}
		sb.Write(data)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
