package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/catalog"
	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/scanner"
	"github.com/blackwell-systems/distroshift/internal/system"
)

// MinFreeBytes is the free space on / a migration requires.
const MinFreeBytes = 10 * system.GiB

var supportedArchitectures = []string{"x86_64", "aarch64"}

// Severity grades a validation finding.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one observation made while validating.
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Validation is the outcome of checking a migration before it starts.
type Validation struct {
	Current        distro.Release `json:"current"`
	Target         distro.Release `json:"target"`
	AvailableBytes uint64         `json:"available_bytes"`
	Findings       []Finding      `json:"findings"`
}

// OK reports whether no finding blocks the migration.
func (v *Validation) OK() bool {
	for _, f := range v.Findings {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

func (v *Validation) add(s Severity, format string, args ...any) {
	v.Findings = append(v.Findings, Finding{Severity: s, Message: fmt.Sprintf(format, args...)})
}

// Validate scans the host and checks that migrating to target is possible.
// The Validation is returned alongside a ValidationFailure so callers can
// show every finding.
func (o *Orchestrator) Validate(ctx context.Context, target string) (*Validation, error) {
	state, err := o.scanner.Collect(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := o.profiles.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	return o.check(ctx, state, entry)
}

func (o *Orchestrator) check(ctx context.Context, state *distro.SystemState, entry *catalog.Entry) (*Validation, error) {
	v := &Validation{Current: state.Distro, Target: entry.Release()}

	if state.Distro.Family == entry.Family &&
		strings.Contains(strings.ToLower(state.Distro.Name), strings.ToLower(entry.Name)) {
		v.add(SeverityError, "already running %s", entry.Name)
	}

	if state.Filesystem == "btrfs" {
		v.add(SeverityOK, "btrfs root filesystem, snapshots will be fast")
	} else {
		v.add(SeverityInfo, "%s root filesystem, snapshots will use LVM or rsync", state.Filesystem)
	}

	if !supportedArchitecture(state.Architecture) {
		v.add(SeverityError, "unsupported architecture %s (need %s)", state.Architecture, strings.Join(supportedArchitectures, " or "))
	}

	if state.Bootloader == scanner.Unknown || state.Bootloader == "" {
		v.add(SeverityWarning, "could not detect the bootloader, manual configuration may be needed")
	}

	avail, err := o.available(ctx)
	switch {
	case err != nil:
		v.add(SeverityError, "could not determine free disk space: %v", err)
	case avail < MinFreeBytes:
		v.AvailableBytes = avail
		v.add(SeverityError, "insufficient disk space: need at least %s, only %s available",
			humanize.IBytes(MinFreeBytes), humanize.IBytes(avail))
	default:
		v.AvailableBytes = avail
		v.add(SeverityOK, "%s free on /", humanize.IBytes(avail))
	}

	if !v.OK() {
		var msgs []string
		for _, f := range v.Findings {
			if f.Severity == SeverityError {
				msgs = append(msgs, f.Message)
			}
		}
		o.logger.Warn("migration validation failed", zap.Strings("errors", msgs))
		return v, errdefs.New(errdefs.ErrValidation, strings.Join(msgs, "; "))
	}
	return v, nil
}

func supportedArchitecture(arch string) bool {
	for _, a := range supportedArchitectures {
		if arch == a {
			return true
		}
	}
	return false
}
