// Package distro holds the distribution data model.
package distro

import (
	"fmt"
	"strings"
)

// Family groups distributions that share a package ecosystem.
type Family string

const (
	Debian Family = "Debian"
	RedHat Family = "RedHat"
	Arch   Family = "Arch"
	Suse   Family = "Suse"
	Gentoo Family = "Gentoo"
	Alpine Family = "Alpine"
	Void   Family = "Void"
	Nix    Family = "Nix"
	NixOS  Family = "NixOS"
	Other  Family = "Other"
)

var families = []Family{Debian, RedHat, Arch, Suse, Gentoo, Alpine, Void, Nix, NixOS, Other}

// ParseFamily resolves a family name case-insensitively.
func ParseFamily(s string) (Family, error) {
	for _, f := range families {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown distribution family %q", s)
}

// Systemd reports whether the family's mainstream releases boot with systemd.
func (f Family) Systemd() bool {
	switch f {
	case Debian, Arch, RedHat:
		return true
	}
	return false
}

// InitSystem identifies the service manager.
type InitSystem string

const (
	Systemd  InitSystem = "systemd"
	OpenRC   InitSystem = "openrc"
	Runit    InitSystem = "runit"
	SysVInit InitSystem = "sysvinit"
)

// Release names a distribution release.
type Release struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Family  Family `json:"family"`
}

func (r Release) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + " " + r.Version
}

// InstalledPackage is one package reported by the package manager.
type InstalledPackage struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Service is a service unit known to the init system.
type Service struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
}

// User is a local account from /etc/passwd.
type User struct {
	Name  string `json:"name"`
	UID   int    `json:"uid"`
	GID   int    `json:"gid"`
	Home  string `json:"home"`
	Shell string `json:"shell"`
}

// Regular reports whether the account belongs to a person rather than a
// system service.
func (u User) Regular() bool {
	return u.UID >= 1000 && u.UID != 65534
}

// SystemState is what a scan observed on the running host.
type SystemState struct {
	Distro       Release            `json:"distro"`
	Kernel       string             `json:"kernel"`
	Architecture string             `json:"architecture"`
	Packages     []InstalledPackage `json:"installed_packages"`
	Services     []Service          `json:"services"`
	Users        []User             `json:"users"`
	Filesystem   string             `json:"filesystem_type"`
	Bootloader   string             `json:"bootloader"`
	Init         InitSystem         `json:"init_system"`
}

// PackageManager describes how a distribution installs software. Every
// command is an argument vector; package names are appended as separate
// arguments, each prefixed with PackagePrefix when set (nix attribute paths).
type PackageManager struct {
	Name          string     `json:"name" yaml:"name"`
	Install       []string   `json:"install" yaml:"install"`
	Remove        []string   `json:"remove" yaml:"remove"`
	Update        [][]string `json:"update" yaml:"update"`
	Search        []string   `json:"search" yaml:"search"`
	List          []string   `json:"list" yaml:"list"`
	PackagePrefix string     `json:"package_prefix,omitempty" yaml:"package_prefix,omitempty"`
}

// Profile is the reference description of a target distribution.
type Profile struct {
	Name           string            `json:"name" yaml:"name"`
	Version        string            `json:"version" yaml:"version"`
	Family         Family            `json:"family" yaml:"family"`
	PackageManager PackageManager    `json:"package_manager" yaml:"package_manager"`
	Init           InitSystem        `json:"init_system" yaml:"init_system"`
	BasePackages   []string          `json:"base_packages" yaml:"base_packages"`
	PreHooks       []string          `json:"pre_migration_hooks" yaml:"pre_migration_hooks"`
	PostHooks      []string          `json:"post_migration_hooks" yaml:"post_migration_hooks"`
	Configs        map[string]string `json:"config_files,omitempty" yaml:"config_files,omitempty"`
}

// Release returns the profile's identity.
func (p *Profile) Release() Release {
	return Release{Name: p.Name, Version: p.Version, Family: p.Family}
}
