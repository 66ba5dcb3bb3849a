package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
)

func TestNew_CuratedProfiles(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var keys []string
	for _, e := range c.Entries() {
		keys = append(keys, e.Key)
		if e.Source != SourceCurated {
			t.Errorf("%s: Source = %s, want curated", e.Key, e.Source)
		}
		if err := Validate(&e.Profile); err != nil {
			t.Errorf("%s: invalid curated profile: %v", e.Key, err)
		}
	}
	want := []string{"arch", "ubuntu", "debian", "fedora", "opensuse", "kali", "hyprland", "garuda", "nixos", "pop-cosmic"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("curated keys mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_AnchorsExpand(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e, ok := c.Lookup("ubuntu")
	if !ok {
		t.Fatal("ubuntu not found")
	}
	want := distro.PackageManager{
		Name:    "apt",
		Install: []string{"apt-get", "install", "-y"},
		Remove:  []string{"apt-get", "remove", "-y"},
		Update:  [][]string{{"apt-get", "update"}, {"apt-get", "upgrade", "-y"}},
		Search:  []string{"apt-cache", "search"},
		List:    []string{"dpkg-query", "-W"},
	}
	if diff := cmp.Diff(want, e.PackageManager); diff != "" {
		t.Errorf("package manager mismatch (-want +got):\n%s", diff)
	}
	if e.Family != distro.Debian {
		t.Errorf("Family = %s, want Debian", e.Family)
	}
}

func TestLookup(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"arch", "Arch Linux", true},
		{"Arch Linux", "Arch Linux", true},
		{"FEDORA", "Fedora", true},
		{"pop", "Pop!_OS COSMIC", true},
		{"dragon", "Garuda Dragonized", true},
		{"nixos", "NixOS", true},
		{"gentoo", "", false},
		{"  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e, ok := c.Lookup(tt.query)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if ok && e.Name != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.query, e.Name, tt.want)
			}
		})
	}
}

const voidProfile = `
name: Void Linux
version: rolling
family: void
init_system: runit
package_manager:
  name: xbps
  install: [xbps-install, -y]
  list: [xbps-query, -l]
base_packages: [base-system]
`

func TestNew_LocalOverlay(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "void.yaml"), []byte(voidProfile), 0644); err != nil {
		t.Fatal(err)
	}
	override := "name: Debian\nversion: \"13\"\nfamily: Debian\npackage_manager:\n  name: apt\n  install: [apt-get, install, -y]\n"
	if err := os.WriteFile(filepath.Join(dir, "debian.yaml"), []byte(override), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [oops"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := New(WithProfileDir(dir))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	void, ok := c.Lookup("void")
	if !ok {
		t.Fatal("overlay profile not found")
	}
	if void.Source != SourceLocal || void.Family != distro.Void || void.Init != distro.Runit {
		t.Errorf("unexpected overlay entry: %+v", void)
	}

	deb, ok := c.Lookup("debian")
	if !ok || deb.Version != "13" || deb.Source != SourceLocal {
		t.Errorf("local debian should replace the curated one, got %+v", deb)
	}
	if got := len(c.Entries()); got != 11 {
		t.Errorf("len(Entries()) = %d, want 11", got)
	}
}

func TestResolve_RemoteFetchAndCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/void-linux.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(voidProfile))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	c, err := New(WithRepository(srv.URL+"/"), WithCacheDir(cacheDir))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	e, err := c.Resolve(context.Background(), "Void Linux")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if e.Source != SourceRemote || e.Key != "void-linux" {
		t.Errorf("Resolve() = %+v", e)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "profiles", "void-linux.yaml")); err != nil {
		t.Errorf("profile was not cached: %v", err)
	}

	e, err = c.Resolve(context.Background(), "void-linux")
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if e.Source != SourceCache {
		t.Errorf("second Resolve() Source = %s, want cache", e.Source)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
}

func TestResolve_RemoteErrors(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		if r.URL.Path == "/missing.yaml" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(WithRepository(srv.URL), WithRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Resolve(context.Background(), "missing")
	if !errors.Is(err, errdefs.ErrUnsupportedDistro) {
		t.Errorf("404 should be UnsupportedDistro, got %v", err)
	}
	_, err = c.Resolve(context.Background(), "flaky")
	if !errors.Is(err, errdefs.ErrNetwork) {
		t.Errorf("500 should be a network failure, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits["/missing.yaml"] != 1 {
		t.Errorf("404 fetched %d times, want 1", hits["/missing.yaml"])
	}
	if hits["/flaky.yaml"] != 3 {
		t.Errorf("500 fetched %d times, want 3", hits["/flaky.yaml"])
	}
}

func TestResolve_RetriesTransientFailure(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(voidProfile))
	}))
	defer srv.Close()

	c, err := New(WithRepository(srv.URL), WithRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e, err := c.Resolve(context.Background(), "void-linux")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if e.Name != "Void Linux" || hits != 2 {
		t.Errorf("Resolve() = %q after %d hits, want Void Linux after 2", e.Name, hits)
	}
}

func TestResolve_HTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(
		WithRepository(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}),
		WithRetry(1, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Resolve(context.Background(), "void-linux"); !errors.Is(err, errdefs.ErrNetwork) {
		t.Errorf("Resolve() error = %v, want a network failure", err)
	}
}

func TestResolve_NoRepository(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Resolve(context.Background(), "gentoo"); !errors.Is(err, errdefs.ErrUnsupportedDistro) {
		t.Errorf("Resolve() error = %v, want UnsupportedDistro", err)
	}
	if _, err := c.Resolve(context.Background(), "../etc/passwd"); !errors.Is(err, errdefs.ErrUnsupportedDistro) {
		t.Errorf("path-like names should be rejected, got %v", err)
	}
}
