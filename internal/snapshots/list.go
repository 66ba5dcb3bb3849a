package snapshots

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
)

// List returns every snapshot with readable metadata, newest first.
// Unreadable or corrupt metadata files are skipped.
func (m *Manager) List() ([]*Snapshot, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*.json"))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrFileSystem, err, "list snapshot metadata")
	}

	snaps := make([]*Snapshot, 0, len(matches))
	for _, path := range matches {
		snap, err := loadSnapshotFile(path)
		if err != nil {
			m.logger.Warn("skipping unreadable snapshot metadata", zap.String("file", path), zap.Error(err))
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Timestamp != snaps[j].Timestamp {
			return snaps[i].Timestamp > snaps[j].Timestamp
		}
		return snaps[i].ID > snaps[j].ID
	})
	return snaps, nil
}

var idPattern = regexp.MustCompile(`^snapshot_\d+_[0-9a-f]{4}$`)

// Get returns the snapshot with the given id.
func (m *Manager) Get(id string) (*Snapshot, error) {
	if !idPattern.MatchString(id) {
		return nil, errdefs.New(errdefs.ErrValidation, fmt.Sprintf("invalid snapshot id %q", id))
	}
	snap, err := loadSnapshotFile(m.metadataPath(id))
	if os.IsNotExist(err) {
		return nil, errdefs.New(errdefs.ErrNotFound, fmt.Sprintf("snapshot %s", id))
	}
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrSerialization, err, fmt.Sprintf("read snapshot %s", id))
	}
	return snap, nil
}

// PathExists reports whether the snapshot's backup root is present.
func (m *Manager) PathExists(snap *Snapshot) bool {
	return snap != nil && snap.Path != "" && fsutil.Exists(snap.Path)
}

func loadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if snap.ID == "" {
		return nil, fmt.Errorf("%s has no snapshot id", path)
	}
	return &snap, nil
}
