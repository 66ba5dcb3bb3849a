package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/blackwell-systems/distroshift/internal/distro"
)

func TestLoadMappingOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings")
	content := `# operator overrides
Debian:fd-find = Arch:fd
debian:bat = redhat:bat 0.9

not a mapping
Debian:ripgrep = Arch:ripgrep 1.7
Unknown:foo = Arch:foo
Arch: = Debian:empty
Debian:a = Arch:b c d
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write mappings: %v", err)
	}

	got, err := LoadMappingOverrides(path)
	if err != nil {
		t.Fatalf("LoadMappingOverrides() error = %v", err)
	}

	want := []MappingOverride{
		{SourceFamily: distro.Debian, SourcePackage: "fd-find", TargetFamily: distro.Arch, TargetPackage: "fd", Confidence: 1.0},
		{SourceFamily: distro.Debian, SourcePackage: "bat", TargetFamily: distro.RedHat, TargetPackage: "bat", Confidence: 0.9},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMappingOverrides_Missing(t *testing.T) {
	got, err := LoadMappingOverrides(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no overrides, got %v", got)
	}
}
