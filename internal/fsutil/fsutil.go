// Package fsutil copies files and trees and writes files atomically.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary file beside path and renames it
// into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// CopyFile copies a regular file, preserving its permission bits. The
// destination's parent directories are created and an existing destination
// is overwritten.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

// TreeOptions tunes CopyTree.
type TreeOptions struct {
	// Skip reports whether a path, relative to the tree root, is left out.
	// Skipping a directory skips its contents.
	Skip func(rel string, d fs.DirEntry) bool
	// OnError decides what happens when one entry fails. Returning nil
	// continues with the next entry. A nil OnError aborts on the first error.
	OnError func(path string, err error) error
}

// CopyStats counts what CopyTree did.
type CopyStats struct {
	Files  int
	Dirs   int
	Links  int
	Failed int
}

// CopyTree copies src into dst. A regular file src is copied as a file.
// Symlinks are recreated, not followed.
func CopyTree(src, dst string, opts TreeOptions) (CopyStats, error) {
	var stats CopyStats

	fail := func(path string, err error) error {
		stats.Failed++
		if opts.OnError == nil {
			return err
		}
		return opts.OnError(path, err)
	}

	info, err := os.Lstat(src)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		if err := CopyFile(src, dst); err != nil {
			return stats, err
		}
		stats.Files++
		return stats, nil
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if err := fail(path, walkErr); err != nil {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && opts.Skip != nil && opts.Skip(rel, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			mode := fs.FileMode(0755)
			if fi, err := d.Info(); err == nil {
				mode = fi.Mode().Perm()
			}
			if err := os.MkdirAll(target, mode); err != nil {
				return fail(path, err)
			}
			stats.Dirs++
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fail(path, err)
			}
			os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return fail(path, err)
			}
			stats.Links++
		case d.Type().IsRegular():
			if err := CopyFile(path, target); err != nil {
				return fail(path, err)
			}
			stats.Files++
		}
		// Sockets, devices and pipes are not copied.
		return nil
	})
	return stats, err
}

// Exists reports whether path exists. Permission errors count as existing.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
