package distro

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// familyByID maps os-release ID values to their family.
var familyByID = map[string]Family{
	"arch":        Arch,
	"manjaro":     Arch,
	"endeavouros": Arch,
	"garuda":      Arch,
	"artix":       Arch,
	"ubuntu":      Debian,
	"debian":      Debian,
	"linuxmint":   Debian,
	"pop":         Debian,
	"elementary":  Debian,
	"kali":        Debian,
	"zorin":       Debian,
	"fedora":      RedHat,
	"rhel":        RedHat,
	"centos":      RedHat,
	"rocky":       RedHat,
	"almalinux":   RedHat,
	"opensuse":    Suse,
	"sles":        Suse,
	"gentoo":      Gentoo,
	"alpine":      Alpine,
	"void":        Void,
	"nixos":       NixOS,
}

// FamilyForID resolves an os-release ID, then each ID_LIKE entry in turn.
func FamilyForID(id string, like ...string) Family {
	for _, candidate := range append([]string{id}, like...) {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if f, ok := familyByID[candidate]; ok {
			return f
		}
		if strings.HasPrefix(candidate, "opensuse") {
			return Suse
		}
	}
	return Other
}

// ParseOSRelease reads KEY=value pairs in os-release(5) format.
func ParseOSRelease(r io.Reader) (map[string]string, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read os-release: %w", err)
	}
	return fields, nil
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// Detect identifies the distribution rooted at root ("/" for the host).
// /etc/os-release is preferred; legacy release files are tried after it.
func Detect(root string) (Release, error) {
	for _, p := range []string{"etc/os-release", "usr/lib/os-release"} {
		f, err := os.Open(filepath.Join(root, p))
		if err != nil {
			continue
		}
		fields, err := ParseOSRelease(f)
		f.Close()
		if err != nil {
			return Release{}, err
		}
		name := fields["NAME"]
		if name == "" {
			name = fields["ID"]
		}
		if name == "" {
			continue
		}
		return Release{
			Name:    name,
			Version: firstNonEmpty(fields["VERSION_ID"], fields["BUILD_ID"]),
			Family:  FamilyForID(fields["ID"], strings.Fields(fields["ID_LIKE"])...),
		}, nil
	}

	if data, err := os.ReadFile(filepath.Join(root, "etc/lsb-release")); err == nil {
		fields, _ := ParseOSRelease(strings.NewReader(string(data)))
		if id := fields["DISTRIB_ID"]; id != "" {
			return Release{
				Name:    id,
				Version: fields["DISTRIB_RELEASE"],
				Family:  FamilyForID(id),
			}, nil
		}
	}

	if _, err := os.Stat(filepath.Join(root, "etc/arch-release")); err == nil {
		return Release{Name: "Arch Linux", Version: "rolling", Family: Arch}, nil
	}
	if data, err := os.ReadFile(filepath.Join(root, "etc/debian_version")); err == nil {
		return Release{Name: "Debian", Version: strings.TrimSpace(string(data)), Family: Debian}, nil
	}
	if data, err := os.ReadFile(filepath.Join(root, "etc/redhat-release")); err == nil {
		return Release{Name: strings.TrimSpace(string(data)), Family: RedHat}, nil
	}

	return Release{}, fmt.Errorf("no release information found under %s", root)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
