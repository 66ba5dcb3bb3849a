package scanner

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/blackwell-systems/distroshift/internal/distro"
)

func (s *Scanner) services(ctx context.Context, init distro.InitSystem) ([]distro.Service, error) {
	if init != distro.Systemd {
		return s.initScripts()
	}

	files, err := s.runner.Run(ctx, "systemctl", "list-unit-files", "--type=service", "--no-pager", "--no-legend")
	if err != nil {
		return nil, err
	}
	running := make(map[string]bool)
	if units, err := s.runner.Run(ctx, "systemctl", "list-units", "--type=service", "--state=running", "--no-pager", "--no-legend", "--plain"); err == nil {
		for _, line := range strings.Split(string(units.Stdout), "\n") {
			if fields := strings.Fields(line); len(fields) > 0 {
				running[strings.TrimSuffix(fields[0], ".service")] = true
			}
		}
	}
	return parseUnitFiles(string(files.Stdout), running), nil
}

// parseUnitFiles reads "name.service state [preset]" lines. Template units
// are skipped since they are never enabled directly.
func parseUnitFiles(out string, running map[string]bool) []distro.Service {
	var svcs []distro.Service
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasSuffix(fields[0], ".service") || strings.HasSuffix(fields[0], "@.service") {
			continue
		}
		name := strings.TrimSuffix(fields[0], ".service")
		svcs = append(svcs, distro.Service{
			Name:    name,
			Enabled: fields[1] == "enabled",
			Running: running[name],
		})
	}
	return svcs
}

func (s *Scanner) initScripts() ([]distro.Service, error) {
	entries, err := os.ReadDir(s.path("etc/init.d"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var svcs []distro.Service
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		svcs = append(svcs, distro.Service{Name: e.Name()})
	}
	sort.Slice(svcs, func(i, j int) bool { return svcs[i].Name < svcs[j].Name })
	return svcs, nil
}
