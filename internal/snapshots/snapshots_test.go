package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/prompt"
	"github.com/blackwell-systems/distroshift/internal/system/systemtest"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var origin = distro.Release{Name: "Ubuntu", Version: "24.04", Family: distro.Debian}

// scriptedPrompter answers confirmations in order and always selects index
// selection.
type scriptedPrompter struct {
	answers   []bool
	selection int
	questions []string
	items     []string
}

func (p *scriptedPrompter) Confirm(q string, def bool) (bool, error) {
	p.questions = append(p.questions, q)
	if len(p.answers) == 0 {
		return false, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Select(q string, items []string) (int, error) {
	p.items = items
	if p.selection < 0 || p.selection >= len(items) {
		return -1, prompt.ErrNoChoice
	}
	return p.selection, nil
}

type fixture struct {
	m      *Manager
	runner *systemtest.Runner
	prompt *scriptedPrompter
	dir    string
	root   string
	out    *bytes.Buffer
}

func newFixture(t *testing.T, answers ...bool) *fixture {
	t.Helper()
	f := &fixture{
		runner: systemtest.New(),
		prompt: &scriptedPrompter{answers: answers},
		dir:    filepath.Join(t.TempDir(), "snapshots"),
		root:   t.TempDir(),
		out:    &bytes.Buffer{},
	}
	f.m = New(f.dir,
		WithRunner(f.runner),
		WithPrompter(f.prompt),
		WithRoot(f.root),
		WithOutput(f.out),
	)
	f.m.now = func() time.Time { return testNow }

	var n uint16
	f.m.suffix = func() uint16 { n++; return n }
	return f
}

func (f *fixture) plentyOfSpace() {
	f.runner.On("df -B1 /", systemtest.Response{Stdout: "Filesystem 1B-blocks Used Available Use% Mounted on\n/dev/sda2 1 1 999999999999 1% /\n"})
}

func (f *fixture) mkdirRoot(t *testing.T, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(f.root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func rsyncCalls(r *systemtest.Runner) []string {
	var out []string
	for _, c := range r.Commands() {
		if strings.HasPrefix(c, "rsync ") {
			out = append(out, c)
		}
	}
	return out
}

func TestDetectStrategy_BtrfsSkipsLVMProbe(t *testing.T) {
	f := newFixture(t)
	f.runner.On("findmnt -n -o FSTYPE /", systemtest.Response{Stdout: "btrfs\n"})

	got, err := f.m.DetectStrategy(context.Background())
	if err != nil {
		t.Fatalf("DetectStrategy() error = %v", err)
	}
	if got != Btrfs {
		t.Errorf("DetectStrategy() = %s, want %s", got, Btrfs)
	}
	if f.runner.Ran("lvs") {
		t.Error("DetectStrategy() probed LVM on a btrfs root")
	}
}

func TestDetectStrategy_LVMAndRsync(t *testing.T) {
	tests := []struct {
		name string
		lvs  systemtest.Response
		want Type
	}{
		{"logical volume", systemtest.Response{Stdout: "  vg0\n"}, LVM},
		{"not a logical volume", systemtest.Response{ExitCode: 5, Stderr: "Failed to find logical volume"}, Rsync},
		{"empty answer", systemtest.Response{Stdout: "\n"}, Rsync},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.On("findmnt -n -o FSTYPE /", systemtest.Response{Stdout: "ext4\n"})
			f.runner.On("findmnt -n -o SOURCE /", systemtest.Response{Stdout: "/dev/mapper/vg0-root\n"})
			f.runner.On("lvs --noheadings -o vg_name /dev/mapper/vg0-root", tt.lvs)

			got, err := f.m.DetectStrategy(context.Background())
			if err != nil {
				t.Fatalf("DetectStrategy() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectStrategy() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCreate_RsyncSpaceGate(t *testing.T) {
	tests := []struct {
		name    string
		avail   uint64
		wantErr bool
	}{
		{"one byte short", MinFreeBytes - 1, true},
		{"exactly enough", MinFreeBytes, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.On("findmnt -n -o FSTYPE /", systemtest.Response{Stdout: "ext4\n"})
			f.runner.On("df -B1 /", systemtest.Response{
				Stdout: "Filesystem 1B-blocks Used Available Use% Mounted on\n/dev/sda2 1 1 " + uitoa(tt.avail) + " 1% /\n",
			})

			_, err := f.m.Create(context.Background(), origin, "pre-migration")
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Create() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInsufficientSpace) || !errors.Is(err, errdefs.ErrSnapshot) {
				t.Fatalf("Create() error = %v, want ErrInsufficientSpace", err)
			}
			for _, want := range []string{"20 GiB", uitoa(MinFreeBytes), uitoa(tt.avail)} {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q should mention %q", err, want)
				}
			}
			if rsyncCalls(f.runner) != nil {
				t.Error("rsync ran despite insufficient space")
			}
		})
	}
}

func uitoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func TestCreate_Rsync(t *testing.T) {
	f := newFixture(t)
	f.plentyOfSpace()
	f.mkdirRoot(t, "etc", "home", "opt")
	f.runner.OnPrefix("du -sb ", systemtest.Response{Stdout: "4096\t/x\n"})

	snap, err := f.m.Create(context.Background(), origin, "Before migrating to Arch Linux")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	wantID := "snapshot_1772366400_0001"
	want := &Snapshot{
		ID:            wantID,
		Timestamp:     testNow.Unix(),
		DistroName:    "Ubuntu",
		DistroVersion: "24.04",
		Description:   "Before migrating to Arch Linux",
		Type:          Rsync,
		SizeBytes:     4096,
		Path:          filepath.Join(f.dir, wantID),
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("Create() mismatch (-want +got):\n%s", diff)
	}
	if !f.m.PathExists(snap) {
		t.Error("PathExists() = false after rsync create")
	}

	calls := rsyncCalls(f.runner)
	if len(calls) != 3 {
		t.Fatalf("rsync ran %d times, want 3 (etc, opt, home):\n%s", len(calls), strings.Join(calls, "\n"))
	}
	for i, dir := range []string{"etc", "opt", "home"} {
		suffix := " " + filepath.Join(f.root, dir) + "/ " + filepath.Join(snap.Path, dir) + "/"
		if !strings.HasSuffix(calls[i], suffix) {
			t.Errorf("rsync call %d = %q, want suffix %q", i, calls[i], suffix)
		}
		if !strings.HasPrefix(calls[i], "rsync -aAX --numeric-ids --exclude=/dev --exclude=/proc") {
			t.Errorf("rsync call %d missing archive flags or excludes: %q", i, calls[i])
		}
	}

	onDisk, err := f.m.Get(wantID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(snap, onDisk); diff != "" {
		t.Errorf("metadata round trip mismatch (-created +loaded):\n%s", diff)
	}
}

func TestCreate_RsyncCopyFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.plentyOfSpace()
	f.mkdirRoot(t, "etc", "home")
	f.runner.OnPrefix("rsync ", systemtest.Response{ExitCode: 23, Stderr: "rsync error: some files could not be transferred"})

	_, err := f.m.Create(context.Background(), origin, "x")
	if !errors.Is(err, errdefs.ErrSnapshot) {
		t.Fatalf("Create() error = %v, want ErrSnapshot", err)
	}
	if !strings.Contains(err.Error(), "/etc") {
		t.Errorf("error %q should name /etc", err)
	}
	if n := len(rsyncCalls(f.runner)); n != 1 {
		t.Errorf("rsync ran %d times after first failure, want 1", n)
	}
	if snaps, _ := f.m.List(); len(snaps) != 0 {
		t.Errorf("metadata persisted for failed snapshot: %v", snaps)
	}
}

func TestCreate_RsyncVanishedFilesTolerated(t *testing.T) {
	f := newFixture(t)
	f.plentyOfSpace()
	f.mkdirRoot(t, "var/lib")
	f.runner.OnPrefix("rsync ", systemtest.Response{ExitCode: 24, Stderr: "file has vanished"})

	if _, err := f.m.Create(context.Background(), origin, "x"); err != nil {
		t.Errorf("Create() error = %v, want exit 24 tolerated", err)
	}
}

func TestCreate_IDsDistinct(t *testing.T) {
	f := newFixture(t)
	f.plentyOfSpace()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		snap, err := f.m.Create(context.Background(), origin, "x")
		if err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
		if seen[snap.ID] {
			t.Fatalf("duplicate id %s", snap.ID)
		}
		seen[snap.ID] = true
	}
}

func TestCreate_IDCollisionRetriedOnce(t *testing.T) {
	f := newFixture(t)
	f.plentyOfSpace()
	if err := os.MkdirAll(filepath.Join(f.dir, "snapshot_1772366400_0001"), 0755); err != nil {
		t.Fatal(err)
	}

	snap, err := f.m.Create(context.Background(), origin, "x")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if snap.ID != "snapshot_1772366400_0002" {
		t.Errorf("ID = %s, want the second suffix", snap.ID)
	}
}

func TestCreate_IDCollisionTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.plentyOfSpace()
	f.m.suffix = func() uint16 { return 0xbeef }
	if err := os.MkdirAll(filepath.Join(f.dir, "snapshot_1772366400_beef"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := f.m.Create(context.Background(), origin, "x")
	if !errors.Is(err, ErrIDCollision) {
		t.Errorf("Create() error = %v, want ErrIDCollision", err)
	}
}

func TestCreate_BtrfsRetriesWritable(t *testing.T) {
	f := newFixture(t)
	f.runner.On("findmnt -n -o FSTYPE /", systemtest.Response{Stdout: "btrfs\n"})
	path := filepath.Join(f.dir, "snapshot_1772366400_0001")
	f.runner.On("btrfs subvolume snapshot -r / "+path, systemtest.Response{ExitCode: 1, Stderr: "ERROR: '/' is not a subvolume"})
	f.runner.On("btrfs subvolume snapshot / "+path, systemtest.Response{Do: func() { os.MkdirAll(path, 0755) }})

	snap, err := f.m.Create(context.Background(), origin, "x")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if snap.Type != Btrfs || !f.m.PathExists(snap) {
		t.Errorf("snap = %+v, want existing Btrfs snapshot", snap)
	}
	if f.runner.Ran("df") {
		t.Error("btrfs snapshot ran the rsync space check")
	}
}

func TestCreate_BtrfsOtherFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.runner.On("findmnt -n -o FSTYPE /", systemtest.Response{Stdout: "btrfs\n"})
	f.runner.OnPrefix("btrfs subvolume snapshot -r", systemtest.Response{ExitCode: 1, Stderr: "ERROR: Read-only file system"})

	_, err := f.m.Create(context.Background(), origin, "x")
	if !errors.Is(err, errdefs.ErrSnapshot) {
		t.Fatalf("Create() error = %v, want ErrSnapshot", err)
	}
	for _, c := range f.runner.Commands() {
		if strings.HasPrefix(c, "btrfs subvolume snapshot / ") {
			t.Error("writable retry attempted for unrelated failure")
		}
	}
}

func TestCreate_LVM(t *testing.T) {
	f := newFixture(t)
	f.runner.On("findmnt -n -o FSTYPE /", systemtest.Response{Stdout: "xfs\n"})
	f.runner.On("findmnt -n -o SOURCE /", systemtest.Response{Stdout: "/dev/mapper/vg0-root\n"})
	f.runner.On("lvs --noheadings -o vg_name /dev/mapper/vg0-root", systemtest.Response{Stdout: "  vg0\n"})

	snap, err := f.m.Create(context.Background(), origin, "x")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !f.runner.Ran("lvcreate -L 10G -s -n snapshot_1772366400_0001_lv /dev/mapper/vg0-root") {
		t.Errorf("lvcreate not run as expected:\n%s", strings.Join(f.runner.Commands(), "\n"))
	}
	if snap.Volume != "vg0/snapshot_1772366400_0001_lv" || snap.Type != LVM {
		t.Errorf("snap = %+v", snap)
	}
}

func writeMeta(t *testing.T, dir string, s *Snapshot) {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	os.MkdirAll(dir, 0755)
	if err := os.WriteFile(filepath.Join(dir, s.ID+".json"), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestList_SortedAndSkipsCorrupt(t *testing.T) {
	f := newFixture(t)
	older := &Snapshot{ID: "snapshot_100_0001", Timestamp: 100, DistroName: "Debian", DistroVersion: "12", Type: Rsync, Path: "/x/1", SizeBytes: 10}
	newer := &Snapshot{ID: "snapshot_200_0002", Timestamp: 200, DistroName: "Fedora", DistroVersion: "40", Type: LVM, Path: "/x/2", Volume: "vg/l"}
	writeMeta(t, f.dir, older)
	writeMeta(t, f.dir, newer)
	os.WriteFile(filepath.Join(f.dir, "broken.json"), []byte("{not json"), 0644)
	os.WriteFile(filepath.Join(f.dir, "empty.json"), []byte("{}"), 0644)

	got, err := f.m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]*Snapshot{newer, older}, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestList_RoundTripsDiskJSON(t *testing.T) {
	f := newFixture(t)
	raw := `{"id":"snapshot_1_abcd","timestamp":1,"distro_name":"Arch Linux","distro_version":"rolling","description":"d","snapshot_type":"Btrfs","size_bytes":0,"path":"/s"}`
	os.MkdirAll(f.dir, 0755)
	os.WriteFile(filepath.Join(f.dir, "snapshot_1_abcd.json"), []byte(raw), 0644)

	got, err := f.m.List()
	if err != nil || len(got) != 1 {
		t.Fatalf("List() = %v, %v", got, err)
	}
	out, err := json.Marshal(got[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != raw {
		t.Errorf("re-serialized = %s\nwant           %s", out, raw)
	}
}

func TestList_MissingDir(t *testing.T) {
	f := newFixture(t)
	got, err := f.m.List()
	if err != nil || len(got) != 0 {
		t.Errorf("List() on missing dir = %v, %v", got, err)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.m.Get("snapshot_0_0000"); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGet_RejectsMalformedID(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(filepath.Dir(f.dir), "x.json")
	if err := os.WriteFile(outside, []byte(`{"id":"snapshot_1_0001"}`), 0644); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"../x", "snapshot_1_0001/../../x", "snapshot_1", "snapshot_1_00zz", ""} {
		if _, err := f.m.Get(id); !errors.Is(err, errdefs.ErrValidation) {
			t.Errorf("Get(%q) error = %v, want ErrValidation", id, err)
		}
	}
}

func TestRevert_PathMissingRunsNothing(t *testing.T) {
	f := newFixture(t, true, true)
	writeMeta(t, f.dir, &Snapshot{ID: "snapshot_1_0001", Timestamp: 1, Type: Rsync, Path: filepath.Join(f.dir, "gone")})

	err := f.m.Revert(context.Background(), "snapshot_1_0001")
	if !errors.Is(err, ErrPathMissing) {
		t.Fatalf("Revert() error = %v, want ErrPathMissing", err)
	}
	if cmds := f.runner.Commands(); len(cmds) != 0 {
		t.Errorf("commands ran for missing path: %v", cmds)
	}
	if len(f.prompt.questions) != 0 {
		t.Errorf("operator prompted for missing path: %v", f.prompt.questions)
	}
}

func newRsyncSnapshot(t *testing.T, f *fixture, dirs ...string) *Snapshot {
	t.Helper()
	s := &Snapshot{ID: "snapshot_5_0005", Timestamp: 5, Type: Rsync, Path: filepath.Join(f.dir, "snapshot_5_0005")}
	for _, d := range dirs {
		os.MkdirAll(filepath.Join(s.Path, d), 0755)
	}
	writeMeta(t, f.dir, s)
	return s
}

func TestRevert_Declined(t *testing.T) {
	f := newFixture(t, false)
	s := newRsyncSnapshot(t, f, "etc")

	err := f.m.Revert(context.Background(), s.ID)
	if !errors.Is(err, errdefs.ErrCancelled) {
		t.Fatalf("Revert() error = %v, want ErrCancelled", err)
	}
	if rsyncCalls(f.runner) != nil {
		t.Error("rsync ran after operator declined")
	}
}

func TestRevert_Rsync(t *testing.T) {
	f := newFixture(t, true)
	s := newRsyncSnapshot(t, f, "etc", "home")

	if err := f.m.Revert(context.Background(), s.ID); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}

	calls := rsyncCalls(f.runner)
	if len(calls) != 2 {
		t.Fatalf("rsync calls = %v, want 2", calls)
	}
	for i, dir := range []string{"etc", "home"} {
		suffix := " --delete " + filepath.Join(s.Path, dir) + "/ " + filepath.Join(f.root, dir) + "/"
		if !strings.HasSuffix(calls[i], suffix) {
			t.Errorf("rsync call %d = %q, want suffix %q", i, calls[i], suffix)
		}
	}
}

func TestRevert_RsyncStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, true)
	s := newRsyncSnapshot(t, f, "etc", "home")
	f.runner.OnPrefix("rsync ", systemtest.Response{ExitCode: 11, Stderr: "error in file IO"})

	err := f.m.Revert(context.Background(), s.ID)
	if err == nil {
		t.Fatal("Revert() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "/etc") || !strings.Contains(err.Error(), "error in file IO") {
		t.Errorf("error %q should name /etc and carry stderr", err)
	}
	if n := len(rsyncCalls(f.runner)); n != 1 {
		t.Errorf("rsync ran %d times, want 1", n)
	}
}

func newBtrfsSnapshot(t *testing.T, f *fixture) *Snapshot {
	t.Helper()
	s := &Snapshot{ID: "snapshot_7_0007", Timestamp: 7, DistroName: "Arch Linux", Type: Btrfs, Path: filepath.Join(f.dir, "snapshot_7_0007")}
	os.MkdirAll(filepath.Join(s.Path, "etc"), 0755)
	writeMeta(t, f.dir, s)
	f.runner.On("btrfs subvolume show "+s.Path, systemtest.Response{Stdout: "@/var/lib/distroshift/snapshots/snapshot_7_0007\n\tName: snapshot_7_0007\n"})
	f.runner.On("findmnt -n -o SOURCE /", systemtest.Response{Stdout: "/dev/nvme0n1p2[/@]\n"})
	return s
}

func TestRevert_BtrfsManualSteps(t *testing.T) {
	f := newFixture(t, true, false)
	s := newBtrfsSnapshot(t, f)

	err := f.m.Revert(context.Background(), s.ID)
	if !errors.Is(err, ErrManualStepsRequired) {
		t.Fatalf("Revert() error = %v, want ErrManualStepsRequired", err)
	}
	if rsyncCalls(f.runner) != nil {
		t.Error("rsync ran although fallback was declined")
	}

	script, err := os.ReadFile(filepath.Join(f.dir, s.ID+"-recover.sh"))
	if err != nil {
		t.Fatalf("recovery script not written: %v", err)
	}
	for _, want := range []string{
		`DEVICE="${1:-/dev/nvme0n1p2}"`,
		`mount -o subvolid=5 "$DEVICE" "$MNT"`,
		`btrfs subvolume set-default "$MNT/@/var/lib/distroshift/snapshots/snapshot_7_0007"`,
	} {
		if !strings.Contains(string(script), want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
	if !strings.Contains(f.out.String(), "recovery script was written") {
		t.Errorf("instructions not printed:\n%s", f.out.String())
	}
}

func TestRevert_BtrfsRsyncFallback(t *testing.T) {
	f := newFixture(t, true, true)
	s := newBtrfsSnapshot(t, f)

	if err := f.m.Revert(context.Background(), s.ID); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	calls := rsyncCalls(f.runner)
	if len(calls) != 1 || !strings.HasSuffix(calls[0], filepath.Join(s.Path, "etc")+"/ "+filepath.Join(f.root, "etc")+"/") {
		t.Errorf("rsync calls = %v, want a single etc restore", calls)
	}
}

func TestRevert_LVM(t *testing.T) {
	f := newFixture(t, true)
	s := &Snapshot{ID: "snapshot_9_0009", Timestamp: 9, Type: LVM, Path: filepath.Join(f.dir, "snapshot_9_0009"), Volume: "vg0/snapshot_9_0009_lv"}
	os.MkdirAll(s.Path, 0755)
	writeMeta(t, f.dir, s)

	if err := f.m.Revert(context.Background(), s.ID); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	want := []string{"lvdisplay vg0/snapshot_9_0009_lv", "lvconvert --merge vg0/snapshot_9_0009_lv"}
	if diff := cmp.Diff(want, f.runner.Commands()); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(f.out.String(), "Reboot") {
		t.Errorf("reboot notice missing: %q", f.out.String())
	}
}

func TestRevert_LVMMissingVolume(t *testing.T) {
	f := newFixture(t, true)
	s := &Snapshot{ID: "snapshot_9_0009", Timestamp: 9, Type: LVM, Path: filepath.Join(f.dir, "snapshot_9_0009"), Volume: "vg0/snapshot_9_0009_lv"}
	os.MkdirAll(s.Path, 0755)
	writeMeta(t, f.dir, s)
	f.runner.On("lvdisplay vg0/snapshot_9_0009_lv", systemtest.Response{ExitCode: 5, Stderr: "Failed to find logical volume"})

	err := f.m.Revert(context.Background(), s.ID)
	if !errors.Is(err, errdefs.ErrSnapshot) || !strings.Contains(err.Error(), "Failed to find logical volume") {
		t.Fatalf("Revert() error = %v", err)
	}
	if f.runner.Ran("lvconvert") {
		t.Error("lvconvert ran for a missing volume")
	}
}

func TestRevert_LVMRootNotOnLVM(t *testing.T) {
	f := newFixture(t, true)
	s := &Snapshot{ID: "snapshot_9_0009", Timestamp: 9, Type: LVM, Path: filepath.Join(f.dir, "snapshot_9_0009")}
	os.MkdirAll(s.Path, 0755)
	writeMeta(t, f.dir, s)
	f.runner.On("findmnt -n -o SOURCE /", systemtest.Response{Stdout: "/dev/sda2\n"})
	f.runner.On("lvs --noheadings -o vg_name /dev/sda2", systemtest.Response{Stdout: "\n"})

	err := f.m.Revert(context.Background(), s.ID)
	if !errors.Is(err, errdefs.ErrSnapshot) || !strings.Contains(err.Error(), "not on LVM") {
		t.Fatalf("Revert() error = %v, want a volume group failure", err)
	}
	if f.runner.Ran("lvdisplay") || f.runner.Ran("lvconvert") {
		t.Errorf("commands = %v, want no merge attempt", f.runner.Commands())
	}
}

func TestRevert_InteractiveSelection(t *testing.T) {
	f := newFixture(t, true)
	f.prompt.selection = 1
	for _, ts := range []int64{10, 30, 20} {
		s := &Snapshot{ID: "snapshot_" + uitoa(uint64(ts)) + "_0000", Timestamp: ts, Type: Rsync, Path: filepath.Join(f.dir, "p"+uitoa(uint64(ts)))}
		os.MkdirAll(filepath.Join(s.Path, "opt"), 0755)
		writeMeta(t, f.dir, s)
	}

	if err := f.m.Revert(context.Background(), ""); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if len(f.prompt.items) != 3 || !strings.HasPrefix(f.prompt.items[0], "snapshot_30_0000") {
		t.Errorf("menu = %v, want newest first", f.prompt.items)
	}
	calls := rsyncCalls(f.runner)
	if len(calls) != 1 || !strings.Contains(calls[0], filepath.Join(f.dir, "p20", "opt")) {
		t.Errorf("reverted wrong snapshot: %v", calls)
	}
}

func TestRevert_NoSnapshots(t *testing.T) {
	f := newFixture(t, true)
	if err := f.m.Revert(context.Background(), ""); !errors.Is(err, ErrNoSnapshots) {
		t.Errorf("Revert() error = %v, want ErrNoSnapshots", err)
	}
}
