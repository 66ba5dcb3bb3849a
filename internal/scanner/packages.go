package scanner

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
)

type lister struct {
	name  string
	args  []string
	parse func(string) []distro.InstalledPackage
}

var listers = map[distro.Family]lister{
	distro.Arch:   {"pacman", []string{"-Q"}, parsePacman},
	distro.Debian: {"dpkg-query", []string{"-W", "--showformat=" + dpkgFormat}, parseDpkg},
	distro.RedHat: {"rpm", []string{"-qa", "--queryformat", rpmFormat}, parseRPM},
	distro.Suse:   {"rpm", []string{"-qa", "--queryformat", rpmFormat}, parseRPM},
	distro.Alpine: {"apk", []string{"info", "-v"}, parseAPK},
}

// Both tools expand the backslash escapes themselves.
const (
	dpkgFormat = `${db:Status-Abbrev}\t${Package}\t${Version}\t${binary:Summary}\n`
	rpmFormat  = `%{NAME}\t%{VERSION}-%{RELEASE}\t%{SUMMARY}\n`
)

func (s *Scanner) packages(ctx context.Context, family distro.Family) ([]distro.InstalledPackage, error) {
	l, ok := listers[family]
	if !ok {
		s.logger.Warn("no package inventory for family", zap.String("family", string(family)))
		return nil, nil
	}
	res, err := s.runner.Run(ctx, l.name, l.args...)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrPackageManager, err, "list installed packages")
	}
	pkgs := l.parse(string(res.Stdout))
	s.logger.Info("collected package inventory", zap.Int("count", len(pkgs)))
	return pkgs, nil
}

// parsePacman reads "name version" lines.
func parsePacman(out string) []distro.InstalledPackage {
	var pkgs []distro.InstalledPackage
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pkgs = append(pkgs, distro.InstalledPackage{Name: fields[0], Version: fields[1]})
	}
	return pkgs
}

// parseDpkg reads status, name, version and summary separated by tabs,
// keeping only fully installed packages.
func parseDpkg(out string) []distro.InstalledPackage {
	var pkgs []distro.InstalledPackage
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 || !strings.HasPrefix(fields[0], "ii") {
			continue
		}
		p := distro.InstalledPackage{Name: fields[1], Version: fields[2]}
		if len(fields) > 3 {
			p.Description = strings.TrimSpace(fields[3])
		}
		pkgs = append(pkgs, p)
	}
	return pkgs
}

func parseRPM(out string) []distro.InstalledPackage {
	var pkgs []distro.InstalledPackage
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, "\t")
		// gpg-pubkey entries are imported signing keys, not software.
		if len(fields) < 2 || fields[0] == "" || fields[0] == "gpg-pubkey" {
			continue
		}
		p := distro.InstalledPackage{Name: fields[0], Version: fields[1]}
		if len(fields) > 2 {
			p.Description = strings.TrimSpace(fields[2])
		}
		pkgs = append(pkgs, p)
	}
	return pkgs
}

// parseAPK splits "name-version-rN" on the last two hyphens.
func parseAPK(out string) []distro.InstalledPackage {
	var pkgs []distro.InstalledPackage
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		rel := strings.LastIndex(line, "-")
		if rel <= 0 {
			continue
		}
		ver := strings.LastIndex(line[:rel], "-")
		if ver <= 0 {
			continue
		}
		pkgs = append(pkgs, distro.InstalledPackage{Name: line[:ver], Version: line[ver+1:]})
	}
	return pkgs
}
