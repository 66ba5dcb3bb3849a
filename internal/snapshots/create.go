package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
	"github.com/blackwell-systems/distroshift/internal/system"
)

// rsyncPartialTransfer is rsync's exit status when source files vanished
// mid-copy, which is routine on a live system.
const rsyncPartialTransfer = 24

// Create takes a snapshot of the running system with the detected strategy
// and persists its metadata. Callers must still check PathExists before
// relying on the snapshot for rollback.
func (m *Manager) Create(ctx context.Context, origin distro.Release, description string) (*Snapshot, error) {
	strategy, err := m.DetectStrategy(ctx)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrSnapshot, err, "detect strategy")
	}
	m.logger.Info("creating snapshot", zap.String("strategy", string(strategy)))

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrFileSystem, err, "create snapshot directory")
	}

	if strategy == Rsync {
		if err := m.checkSpace(ctx); err != nil {
			return nil, err
		}
	}

	id, err := m.allocateID()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:            id,
		Timestamp:     m.now().Unix(),
		DistroName:    origin.Name,
		DistroVersion: origin.Version,
		Description:   description,
		Type:          strategy,
		Path:          filepath.Join(m.dir, id),
	}

	switch strategy {
	case Btrfs:
		err = m.createBtrfs(ctx, snap)
	case LVM:
		err = m.createLVM(ctx, snap)
	default:
		err = m.createRsync(ctx, snap)
	}
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrSnapshot, err, fmt.Sprintf("%s snapshot %s", strategy, id))
	}

	if strategy != Btrfs {
		if size, err := system.DirSize(ctx, m.runner, snap.Path); err == nil {
			snap.SizeBytes = size
		} else {
			m.logger.Debug("could not size snapshot", zap.String("id", id), zap.Error(err))
		}
	}

	if err := m.saveMetadata(snap); err != nil {
		return nil, err
	}

	m.logger.Info("snapshot created",
		zap.String("id", snap.ID),
		zap.String("path", snap.Path),
		zap.Uint64("size_bytes", snap.SizeBytes))
	return snap, nil
}

func (m *Manager) checkSpace(ctx context.Context) error {
	avail, err := system.AvailableBytes(ctx, m.runner, "/")
	if err != nil {
		return errdefs.Wrap(errdefs.ErrSnapshot, err, "check free space")
	}
	if avail < MinFreeBytes {
		return errdefs.Wrap(errdefs.ErrSnapshot, ErrInsufficientSpace,
			fmt.Sprintf("rsync snapshot needs %s (%d bytes) free on /, only %s (%d bytes) available",
				humanize.IBytes(MinFreeBytes), MinFreeBytes, humanize.IBytes(avail), avail))
	}
	return nil
}

// allocateID returns snapshot_<unix>_<hex16> whose path is free, trying a
// second suffix once on collision.
func (m *Manager) allocateID() (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		id := fmt.Sprintf("snapshot_%d_%04x", m.now().Unix(), m.suffix())
		if !fsutil.Exists(filepath.Join(m.dir, id)) && !fsutil.Exists(m.metadataPath(id)) {
			return id, nil
		}
		m.logger.Warn("snapshot id collision", zap.String("id", id))
	}
	return "", errdefs.Wrap(errdefs.ErrSnapshot, ErrIDCollision, "two generated identifiers already exist")
}

func (m *Manager) createBtrfs(ctx context.Context, snap *Snapshot) error {
	_, err := m.runner.Run(ctx, "btrfs", "subvolume", "snapshot", "-r", "/", snap.Path)
	if err == nil {
		return nil
	}

	stderr := system.StderrOf(err)
	if !strings.Contains(stderr, "not a subvolume") &&
		!strings.Contains(stderr, "not a btrfs") &&
		!strings.Contains(stderr, "Invalid argument") {
		return err
	}

	m.logger.Warn("read-only btrfs snapshot refused, retrying writable", zap.String("stderr", stderr))
	_, err = m.runner.Run(ctx, "btrfs", "subvolume", "snapshot", "/", snap.Path)
	return err
}

func (m *Manager) createLVM(ctx context.Context, snap *Snapshot) error {
	source, err := system.RootSource(ctx, m.runner)
	if err != nil {
		return err
	}
	vg, err := m.rootVolumeGroup(ctx)
	if err != nil {
		return err
	}

	lv := snap.ID + "_lv"
	if _, err := m.runner.Run(ctx, "lvcreate", "-L", lvmSnapshotSize, "-s", "-n", lv, source); err != nil {
		return err
	}
	snap.Volume = vg + "/" + lv

	if err := os.MkdirAll(snap.Path, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot path: %w", err)
	}
	return nil
}

// rsyncArgs builds an rsync argument vector for one critical directory.
// Preserved paths under it are excluded, which also shields them from
// --delete on the receiving side.
func (m *Manager) rsyncArgs(dir string, extra ...string) []string {
	args := []string{"-aAX", "--numeric-ids"}
	for _, e := range rsyncExcludes {
		args = append(args, "--exclude="+e)
	}
	base := "/" + dir
	for _, p := range m.preserve {
		rel, err := filepath.Rel(base, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		args = append(args, "--exclude=/"+rel+"/")
	}
	return append(args, extra...)
}

func (m *Manager) rsync(ctx context.Context, args []string) error {
	_, err := system.WithTimeout(ctx, m.runner, m.rsyncTimeout, "rsync", args...)
	var ce *system.CommandError
	if errors.As(err, &ce) && ce.ExitCode == rsyncPartialTransfer {
		m.logger.Warn("rsync reported vanished source files", zap.Strings("args", args))
		return nil
	}
	return err
}

func (m *Manager) createRsync(ctx context.Context, snap *Snapshot) error {
	if err := os.MkdirAll(snap.Path, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot path: %w", err)
	}

	for _, dir := range CriticalDirs {
		src := filepath.Join(m.root, dir)
		if !fsutil.Exists(src) {
			m.logger.Debug("skipping absent directory", zap.String("dir", src))
			continue
		}

		dst := filepath.Join(snap.Path, dir)
		if err := os.MkdirAll(dst, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dst, err)
		}
		if err := m.rsync(ctx, m.rsyncArgs(dir, src+"/", dst+"/")); err != nil {
			return fmt.Errorf("failed to copy /%s: %w", dir, err)
		}
	}
	return nil
}

func (m *Manager) metadataPath(id string) string {
	return filepath.Join(m.dir, id+".json")
}

func (m *Manager) saveMetadata(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errdefs.Wrap(errdefs.ErrSerialization, err, "encode snapshot metadata")
	}
	if err := fsutil.WriteFileAtomic(m.metadataPath(snap.ID), data, 0644); err != nil {
		return errdefs.Wrap(errdefs.ErrPersistence, err, "write snapshot metadata")
	}
	return nil
}
