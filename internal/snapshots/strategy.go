package snapshots

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/system"
)

// DetectStrategy picks the snapshot mechanism for the running root: Btrfs
// when / is btrfs, LVM when / sits on a logical volume, Rsync otherwise.
func (m *Manager) DetectStrategy(ctx context.Context) (Type, error) {
	fstype, err := system.RootFSType(ctx, m.runner)
	if err != nil {
		m.logger.Warn("could not read root filesystem type", zap.Error(err))
	}
	if fstype == "btrfs" {
		return Btrfs, nil
	}

	if _, err := m.rootVolumeGroup(ctx); err == nil {
		return LVM, nil
	}
	return Rsync, nil
}

// rootVolumeGroup returns the volume group holding /. It fails when / is
// not on LVM.
func (m *Manager) rootVolumeGroup(ctx context.Context) (string, error) {
	source, err := system.RootSource(ctx, m.runner)
	if err != nil {
		return "", err
	}
	res, err := m.runner.Run(ctx, "lvs", "--noheadings", "-o", "vg_name", source)
	if err != nil {
		return "", err
	}
	vg := strings.TrimSpace(string(res.Stdout))
	if vg == "" {
		return "", fmt.Errorf("%s is not on LVM", source)
	}
	return vg, nil
}
