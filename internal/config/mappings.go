package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/blackwell-systems/distroshift/internal/distro"
)

// MappingOverride is one operator-supplied package translation.
type MappingOverride struct {
	SourceFamily  distro.Family
	SourcePackage string
	TargetFamily  distro.Family
	TargetPackage string
	Confidence    float64
}

// LoadMappingOverrides reads lines of the form
//
//	Debian:fd-find = Arch:fd 0.9
//
// The confidence is optional and defaults to 1.0. A missing file yields no
// overrides. Malformed lines are skipped.
func LoadMappingOverrides(path string) ([]MappingOverride, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []MappingOverride
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if o, ok := parseOverride(scanner.Text()); ok {
			out = append(out, o)
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func parseOverride(line string) (MappingOverride, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return MappingOverride{}, false
	}

	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return MappingOverride{}, false
	}

	srcFamily, srcPkg, ok := splitQualified(lhs)
	if !ok {
		return MappingOverride{}, false
	}

	fields := strings.Fields(rhs)
	if len(fields) == 0 || len(fields) > 2 {
		return MappingOverride{}, false
	}
	tgtFamily, tgtPkg, ok := splitQualified(fields[0])
	if !ok {
		return MappingOverride{}, false
	}

	confidence := 1.0
	if len(fields) == 2 {
		c, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || c < 0 || c > 1 {
			return MappingOverride{}, false
		}
		confidence = c
	}

	return MappingOverride{
		SourceFamily:  srcFamily,
		SourcePackage: srcPkg,
		TargetFamily:  tgtFamily,
		TargetPackage: tgtPkg,
		Confidence:    confidence,
	}, true
}

// splitQualified parses "Family:package".
func splitQualified(s string) (distro.Family, string, bool) {
	fam, pkg, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return "", "", false
	}
	family, err := distro.ParseFamily(fam)
	pkg = strings.TrimSpace(pkg)
	if err != nil || pkg == "" || strings.ContainsAny(pkg, " \t") {
		return "", "", false
	}
	return family, pkg, true
}
