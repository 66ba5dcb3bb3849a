package snapshots

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
	"github.com/blackwell-systems/distroshift/internal/prompt"
	"github.com/blackwell-systems/distroshift/internal/system"
)

// Revert restores the system from snapshot id. An empty id asks the
// operator to choose from the available snapshots, newest first.
//
// Btrfs snapshots are never applied to the running root: a recovery script
// is written and the operator may opt into an rsync copy-revert instead.
// LVM reverts only schedule a merge; it completes on the next reboot.
func (m *Manager) Revert(ctx context.Context, id string) error {
	snap, err := m.resolve(id)
	if err != nil {
		return err
	}

	if !m.PathExists(snap) {
		return errdefs.Wrap(errdefs.ErrSnapshot, ErrPathMissing,
			fmt.Sprintf("%s: %s does not exist", snap.ID, snap.Path))
	}

	ok, err := m.prompter.Confirm(fmt.Sprintf("Revert to %s (%s, %s %s, taken %s)? Live files will be overwritten",
		snap.ID, snap.Type, snap.DistroName, snap.DistroVersion, snap.CreatedAt().Format("2006-01-02 15:04:05")), false)
	if err != nil {
		return err
	}
	if !ok {
		return errdefs.New(errdefs.ErrCancelled, "revert declined")
	}

	m.logger.Info("reverting snapshot", zap.String("id", snap.ID), zap.String("type", string(snap.Type)))

	switch snap.Type {
	case Btrfs:
		return m.revertBtrfs(ctx, snap)
	case LVM:
		return m.revertLVM(ctx, snap)
	case Rsync:
		return m.revertRsync(ctx, snap)
	}
	return errdefs.New(errdefs.ErrSnapshot, fmt.Sprintf("unknown snapshot type %q", snap.Type))
}

func (m *Manager) resolve(id string) (*Snapshot, error) {
	if id != "" {
		return m.Get(id)
	}

	snaps, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, errdefs.Wrap(errdefs.ErrSnapshot, ErrNoSnapshots, "")
	}

	items := make([]string, len(snaps))
	for i, s := range snaps {
		items[i] = fmt.Sprintf("%s  %-5s  %s %s  %s", s.ID, s.Type, s.DistroName, s.DistroVersion, s.Description)
	}
	idx, err := m.prompter.Select("Available snapshots (newest first):", items)
	if errors.Is(err, prompt.ErrNoChoice) {
		return nil, errdefs.Wrap(errdefs.ErrCancelled, err, "")
	}
	if err != nil {
		return nil, err
	}
	return snaps[idx], nil
}

func (m *Manager) revertBtrfs(ctx context.Context, snap *Snapshot) error {
	script, err := m.writeRecoveryScript(ctx, snap)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "\nBtrfs snapshots are not reverted on a running system.\n")
	fmt.Fprintf(m.out, "A recovery script was written to %s\n\n", script)
	fmt.Fprintf(m.out, "Option 1: boot a rescue environment and run:\n")
	fmt.Fprintf(m.out, "  sh %s <root block device>\n", script)
	fmt.Fprintf(m.out, "  then reboot into the restored subvolume\n\n")
	fmt.Fprintf(m.out, "Option 2: copy the snapshot's %s back onto the live system now\n\n", strings.Join(CriticalDirs, ", "))

	fallback, err := m.prompter.Confirm("Perform the rsync copy-revert now?", false)
	if err != nil {
		return err
	}
	if !fallback {
		return errdefs.Wrap(errdefs.ErrSnapshot, ErrManualStepsRequired, "run "+script+" from a rescue environment")
	}
	return m.revertRsync(ctx, snap)
}

// writeRecoveryScript writes <dir>/<id>-recover.sh for use from a rescue
// environment.
func (m *Manager) writeRecoveryScript(ctx context.Context, snap *Snapshot) (string, error) {
	subvol := strings.TrimPrefix(snap.Path, "/")
	if res, err := m.runner.Run(ctx, "btrfs", "subvolume", "show", snap.Path); err == nil {
		// The first line is the path relative to the top-level subvolume.
		if first, _, _ := strings.Cut(string(res.Stdout), "\n"); strings.TrimSpace(first) != "" && !strings.HasPrefix(strings.TrimSpace(first), "/") {
			subvol = strings.TrimSpace(first)
		}
	}

	device := ""
	if src, err := system.RootSource(ctx, m.runner); err == nil {
		// findmnt reports btrfs sources as /dev/sda2[/@].
		device, _, _ = strings.Cut(src, "[")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "#!/bin/sh\n")
	fmt.Fprintf(&sb, "# Restore %s (%s %s, %s).\n", snap.ID, snap.DistroName, snap.DistroVersion,
		snap.CreatedAt().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "# Run from a rescue environment, not from the system being restored.\n")
	fmt.Fprintf(&sb, "set -eu\n\n")
	fmt.Fprintf(&sb, "DEVICE=\"${1:-%s}\"\n", device)
	fmt.Fprintf(&sb, "MNT=\"${MNT:-/mnt}\"\n\n")
	fmt.Fprintf(&sb, "mount -o subvolid=5 \"$DEVICE\" \"$MNT\"\n")
	fmt.Fprintf(&sb, "btrfs subvolume set-default \"$MNT/%s\"\n", subvol)
	fmt.Fprintf(&sb, "umount \"$MNT\"\n")
	fmt.Fprintf(&sb, "echo \"Default subvolume set to %s. Reboot to start the restored system.\"\n", subvol)

	path := filepath.Join(m.dir, snap.ID+"-recover.sh")
	if err := fsutil.WriteFileAtomic(path, []byte(sb.String()), 0755); err != nil {
		return "", errdefs.Wrap(errdefs.ErrFileSystem, err, "write recovery script")
	}
	return path, nil
}

func (m *Manager) revertLVM(ctx context.Context, snap *Snapshot) error {
	volume := snap.Volume
	if volume == "" {
		vg, err := m.rootVolumeGroup(ctx)
		if err != nil {
			return errdefs.Wrap(errdefs.ErrSnapshot, err, "resolve volume group for "+snap.ID)
		}
		volume = vg + "/" + snap.ID + "_lv"
	}

	if _, err := m.runner.Run(ctx, "lvdisplay", volume); err != nil {
		return errdefs.Wrap(errdefs.ErrSnapshot, err, "snapshot volume "+volume+" not found")
	}
	if _, err := m.runner.Run(ctx, "lvconvert", "--merge", volume); err != nil {
		return errdefs.Wrap(errdefs.ErrSnapshot, err, "merge "+volume)
	}

	fmt.Fprintf(m.out, "Merge of %s scheduled. Reboot to complete the revert.\n", volume)
	m.logger.Info("lvm merge initiated", zap.String("volume", volume))
	return nil
}

// revertRsync mirrors each captured directory back onto the live root,
// deleting files the snapshot doesn't have. The first failure stops it.
func (m *Manager) revertRsync(ctx context.Context, snap *Snapshot) error {
	restored := 0
	for _, dir := range CriticalDirs {
		src := filepath.Join(snap.Path, dir)
		if !fsutil.Exists(src) {
			continue
		}

		dst := filepath.Join(m.root, dir)
		if err := os.MkdirAll(dst, 0755); err != nil {
			return errdefs.Wrap(errdefs.ErrFileSystem, err, "create /"+dir)
		}

		fmt.Fprintf(m.out, "Restoring /%s...\n", dir)
		if err := m.rsync(ctx, m.rsyncArgs(dir, "--delete", src+"/", dst+"/")); err != nil {
			return errdefs.Wrap(errdefs.ErrSnapshot, err,
				fmt.Sprintf("restore of /%s failed after %d directories", dir, restored))
		}
		restored++
	}

	if restored == 0 {
		return errdefs.New(errdefs.ErrSnapshot, fmt.Sprintf("%s contains none of the captured directories", snap.Path))
	}
	fmt.Fprintf(m.out, "Restored %d directories from %s\n", restored, snap.ID)
	return nil
}
