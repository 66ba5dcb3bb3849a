package migration

import (
	"github.com/blackwell-systems/distroshift/internal/configplan"
	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/history"
	"github.com/blackwell-systems/distroshift/internal/snapshots"
	"github.com/blackwell-systems/distroshift/internal/translate"
)

// Options tune a single Shapeshift run.
type Options struct {
	// CustomISO names install media to derive the target from. Not supported.
	CustomISO string
	// DryRun stops after translation and planning.
	DryRun bool
}

// Report describes what a Shapeshift run did, or would do for a dry run.
type Report struct {
	Source       distro.Release         `json:"source"`
	Target       distro.Release         `json:"target"`
	DryRun       bool                   `json:"dry_run"`
	Validation   *Validation            `json:"validation,omitempty"`
	Snapshot     *snapshots.Snapshot    `json:"snapshot,omitempty"`
	Translation  *translate.Result      `json:"translation,omitempty"`
	Install      []string               `json:"install,omitempty"`
	Plan         []configplan.Operation `json:"plan"`
	Homes        []HomeBackup           `json:"homes,omitempty"`
	Installed    []string               `json:"installed,omitempty"`
	FailedPkgs   []string               `json:"failed_packages,omitempty"`
	FailedHooks  []string               `json:"failed_hooks,omitempty"`
	HistoryEntry *history.Record        `json:"history,omitempty"`
}

// SnapshotID returns the rollback snapshot's id, or "" when there is none.
func (r *Report) SnapshotID() string {
	if r == nil || r.Snapshot == nil {
		return ""
	}
	return r.Snapshot.ID
}

// FailureError is a fatal Shapeshift error. SnapshotID names the rollback
// point, empty when none is available.
type FailureError struct {
	Phase      string
	SnapshotID string
	Err        error
}

func (e *FailureError) Error() string {
	return e.Phase + ": " + e.Err.Error()
}

func (e *FailureError) Unwrap() error {
	return e.Err
}
