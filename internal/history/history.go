// Package history keeps the append-only log of completed transformations.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
)

// NoSnapshot is recorded when a migration ran without rollback protection.
const NoSnapshot = "no-snapshot"

// Record is one completed transformation.
type Record struct {
	FromDistro string    `json:"from_distro"`
	ToDistro   string    `json:"to_distro"`
	Timestamp  time.Time `json:"timestamp"`
	SnapshotID string    `json:"snapshot_id"`
}

// HasSnapshot reports whether the record points at a rollback snapshot.
func (r Record) HasSnapshot() bool {
	return r.SnapshotID != "" && r.SnapshotID != NoSnapshot
}

// Load reads the history at path. A missing file is an empty history.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrPersistence, err, "read history")
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrSerialization, err, fmt.Sprintf("parse %s", path))
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Append adds rec to the history at path and rewrites the whole file. An
// unreadable existing history is an error; it is never silently replaced.
func Append(path string, rec Record) error {
	records, err := Load(path)
	if err != nil {
		return err
	}
	if rec.SnapshotID == "" {
		rec.SnapshotID = NoSnapshot
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Second)
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errdefs.Wrap(errdefs.ErrSerialization, err, "encode history")
	}
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return errdefs.Wrap(errdefs.ErrPersistence, err, "write history")
	}
	return nil
}

// Last returns up to n most recent records, newest first.
func Last(records []Record, n int) []Record {
	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out
}
