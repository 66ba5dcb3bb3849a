package migration

import (
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/fsutil"
)

// homeSkips are per-user directories that are never preserved.
var homeSkips = map[string]bool{
	".cache":             true,
	".thumbnails":        true,
	".local/share/Trash": true,
}

// HomeBackup summarizes the preservation of one home directory.
type HomeBackup struct {
	User    string `json:"user"`
	Source  string `json:"source"`
	Dest    string `json:"dest,omitempty"`
	Files   int    `json:"files"`
	Failed  int    `json:"failed"`
	Skipped string `json:"skipped,omitempty"`
}

// preserveHomes copies each regular user's home into backupDir/home_<name>.
// Missing or unreadable homes and individual file failures are reported,
// never fatal.
func (o *Orchestrator) preserveHomes(users []distro.User, backupDir string) []HomeBackup {
	var out []HomeBackup
	for _, u := range users {
		if !u.Regular() {
			continue
		}
		hb := HomeBackup{User: u.Name, Source: o.live(u.Home)}

		if _, err := os.ReadDir(hb.Source); err != nil {
			hb.Skipped = err.Error()
			o.printf("  Skipping %s: %v\n", u.Name, err)
			out = append(out, hb)
			continue
		}

		hb.Dest = filepath.Join(backupDir, "home_"+u.Name)
		stats, err := fsutil.CopyTree(hb.Source, hb.Dest, fsutil.TreeOptions{
			Skip: func(rel string, d fs.DirEntry) bool {
				return d.IsDir() && homeSkips[filepath.ToSlash(rel)]
			},
			OnError: func(path string, err error) error {
				o.logger.Warn("failed to preserve file", zap.String("path", path), zap.Error(err))
				return nil
			},
		})
		hb.Files, hb.Failed = stats.Files, stats.Failed
		if err != nil {
			hb.Skipped = err.Error()
		}

		if hb.Failed > 0 || err != nil {
			o.printf("  Partial backup for %s: %d files copied, %d failed\n", u.Name, hb.Files, hb.Failed)
		} else {
			o.printf("  Preserved home directory for %s (%d files)\n", u.Name, hb.Files)
		}
		out = append(out, hb)
	}

	if len(out) == 0 {
		o.printf("  No user home directories to preserve\n")
	}
	return out
}

// live resolves an absolute host path under the orchestrator's root.
func (o *Orchestrator) live(path string) string {
	return filepath.Join(o.root, path)
}
