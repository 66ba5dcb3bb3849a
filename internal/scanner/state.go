package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
)

// ErrNoState is returned by LoadState before the first scan.
var ErrNoState = errors.New("no system state found, run 'distroshift scan' first")

// SaveState writes the state as indented JSON, replacing any previous scan.
func SaveState(path string, state *distro.SystemState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errdefs.Wrap(errdefs.ErrSerialization, err, "encode system state")
	}
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return errdefs.Wrap(errdefs.ErrPersistence, err, "write "+path)
	}
	return nil
}

// LoadState reads the state written by the last scan.
func LoadState(path string) (*distro.SystemState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, errdefs.Wrap(errdefs.ErrPersistence, err, "read "+path)
	}
	var state distro.SystemState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrSerialization, err, fmt.Sprintf("decode %s", path))
	}
	return &state, nil
}
