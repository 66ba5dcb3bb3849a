package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatal(err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")

	if err := WriteFileAtomic(path, []byte("[]"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte("[1]"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() second error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "[1]" {
		t.Errorf("content = %q, want %q", got, "[1]")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), ".history.json.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestCopyFile_PreservesMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "a", "b", "dst")
	writeFile(t, src, "secret")

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeFile(t, filepath.Join(src, "a.service"), "[Unit]")
	writeFile(t, filepath.Join(src, "multi-user.target.wants", "a.service"), "[Unit]")
	writeFile(t, filepath.Join(src, ".cache", "junk"), "x")
	if err := os.Symlink("../a.service", filepath.Join(src, "link.service")); err != nil {
		t.Fatal(err)
	}

	stats, err := CopyTree(src, dst, TreeOptions{
		Skip: func(rel string, d fs.DirEntry) bool { return rel == ".cache" },
	})
	if err != nil {
		t.Fatalf("CopyTree() error = %v", err)
	}
	if stats.Files != 2 || stats.Links != 1 {
		t.Errorf("stats = %+v, want 2 files and 1 link", stats)
	}
	if _, err := os.Stat(filepath.Join(dst, "multi-user.target.wants", "a.service")); err != nil {
		t.Errorf("nested file not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, ".cache")); !os.IsNotExist(err) {
		t.Error("skipped directory was copied")
	}
	if link, err := os.Readlink(filepath.Join(dst, "link.service")); err != nil || link != "../a.service" {
		t.Errorf("symlink = %q, %v", link, err)
	}
}

func TestCopyTree_OnErrorContinues(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "ok"), "fine")
	writeFile(t, filepath.Join(src, "locked"), "nope")
	if err := os.Chmod(filepath.Join(src, "locked"), 0); err != nil {
		t.Fatal(err)
	}

	var failed []string
	stats, err := CopyTree(src, filepath.Join(t.TempDir(), "out"), TreeOptions{
		OnError: func(path string, err error) error {
			failed = append(failed, filepath.Base(path))
			return nil
		},
	})
	if err != nil {
		t.Fatalf("CopyTree() error = %v", err)
	}
	if stats.Files != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 copied and 1 failed", stats)
	}
	if len(failed) != 1 || failed[0] != "locked" {
		t.Errorf("failed = %v, want [locked]", failed)
	}
}

func TestCopyTree_MissingSource(t *testing.T) {
	_, err := CopyTree(filepath.Join(t.TempDir(), "missing"), t.TempDir(), TreeOptions{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("CopyTree() error = %v, want fs.ErrNotExist", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !Exists(dir) {
		t.Error("Exists(tempdir) = false")
	}
	if Exists(filepath.Join(dir, "nope")) {
		t.Error("Exists(missing) = true")
	}
}
