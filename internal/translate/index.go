// Package translate maps installed package names between distribution
// families.
package translate

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/errdefs"
	"github.com/blackwell-systems/distroshift/internal/store"
)

const (
	// ExactConfidence marks a direct table hit.
	ExactConfidence = 1.0
	// FuzzyConfidence marks a pattern match. It is advisory only.
	FuzzyConfidence = 0.7
)

// systemCritical lists substrings that identify packages owned by the base
// system. Matching packages are never migrated.
var systemCritical = []string{
	"base",
	"linux",
	"linux-firmware",
	"grub",
	"udev",
	"kernel",
	"initramfs",
	"base-files",
	"dpkg",
	"apt",
	"pacman",
	"dnf",
	"rpm",
}

// IsSystemCritical reports whether name contains a denylisted substring.
func IsSystemCritical(name string) bool {
	for _, s := range systemCritical {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// Mapping is a resolved translation for one package.
type Mapping struct {
	SourcePackage string  `json:"source_package"`
	TargetPackage string  `json:"target_package"`
	Confidence    float64 `json:"confidence"`
	Fuzzy         bool    `json:"fuzzy,omitempty"`
}

// Translated pairs an installed package with its mapping.
type Translated struct {
	Package distro.InstalledPackage `json:"package"`
	Mapping Mapping                 `json:"mapping"`
}

// Result partitions an installed-package list. Each partition keeps the
// relative order of the input.
type Result struct {
	Translated   []Translated              `json:"translated"`
	Untranslated []distro.InstalledPackage `json:"untranslated"`
	Skipped      []distro.InstalledPackage `json:"skipped"`
}

// Installable returns the distinct target packages whose confidence is
// strictly above min, in first-seen order.
func (r *Result) Installable(min float64) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.Translated {
		if t.Mapping.Confidence <= min || seen[t.Mapping.TargetPackage] {
			continue
		}
		seen[t.Mapping.TargetPackage] = true
		out = append(out, t.Mapping.TargetPackage)
	}
	return out
}

// Index is the persistent package translation table.
type Index struct {
	store  *store.Store
	logger *zap.Logger
}

// New returns an Index over st. The schema is created if missing.
func New(st *store.Store, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := st.CreateSchema(); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrPersistence, err, "initialize mapping table")
	}
	return &Index{store: st, logger: logger}, nil
}

// Seed loads the curated table, leaving existing rows untouched.
func (ix *Index) Seed() (int, error) {
	mappings, err := seedMappings()
	if err != nil {
		return 0, errdefs.Wrap(errdefs.ErrSerialization, err, "")
	}
	n, err := ix.store.SeedMappings(mappings)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.ErrPersistence, err, "")
	}
	if n > 0 {
		ix.logger.Info("seeded package mappings", zap.Int("inserted", n))
	}
	return n, nil
}

// Lookup returns the best exact mapping, or nil when the table has none.
func (ix *Index) Lookup(source, target distro.Family, name string) (*Mapping, error) {
	m, err := ix.store.LookupMapping(string(source), name, string(target))
	if errors.Is(err, store.ErrMappingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrPersistence, err, "")
	}
	return &Mapping{
		SourcePackage: name,
		TargetPackage: m.TargetPackage,
		Confidence:    m.Confidence,
	}, nil
}

// Mappings returns every stored row for a family pair ordered by source
// package.
func (ix *Index) Mappings(source, target distro.Family) ([]*store.Mapping, error) {
	rows, err := ix.store.ListMappings(string(source), string(target))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrPersistence, err, "")
	}
	return rows, nil
}

// Count returns the number of stored mappings across all family pairs.
func (ix *Index) Count() (int, error) {
	n, err := ix.store.CountMappings()
	if err != nil {
		return 0, errdefs.Wrap(errdefs.ErrPersistence, err, "")
	}
	return n, nil
}

// TranslatePackage returns the exact translation of name, if any.
func (ix *Index) TranslatePackage(source, target distro.Family, name string) (string, bool, error) {
	m, err := ix.Lookup(source, target, name)
	if err != nil || m == nil {
		return "", false, err
	}
	return m.TargetPackage, true, nil
}

// fuzzyCandidates returns the search patterns tried for name, in order,
// without duplicates or empty strings.
func fuzzyCandidates(name string) []string {
	candidates := []string{name}
	if s, ok := strings.CutSuffix(name, "-dev"); ok {
		candidates = append(candidates, s)
	}
	if s, ok := strings.CutPrefix(name, "lib"); ok {
		candidates = append(candidates, s)
	}
	if s, ok := strings.CutPrefix(name, "python3-"); ok {
		candidates = append(candidates, "python-"+s)
	} else if s, ok := strings.CutPrefix(name, "python-"); ok {
		candidates = append(candidates, "python3-"+s)
	}

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// FuzzyMatch searches the target family's rows for a pattern derived from
// name. It returns nil when no candidate hits.
func (ix *Index) FuzzyMatch(name string, target distro.Family) (*Mapping, error) {
	for _, pattern := range fuzzyCandidates(name) {
		m, err := ix.store.SearchMappings(string(target), pattern)
		if errors.Is(err, store.ErrMappingNotFound) {
			continue
		}
		if err != nil {
			return nil, errdefs.Wrap(errdefs.ErrPersistence, err, "")
		}
		ix.logger.Debug("fuzzy package match",
			zap.String("package", name),
			zap.String("pattern", pattern),
			zap.String("target_package", m.TargetPackage))
		return &Mapping{
			SourcePackage: name,
			TargetPackage: m.TargetPackage,
			Confidence:    FuzzyConfidence,
			Fuzzy:         true,
		}, nil
	}
	return nil, nil
}

// TranslatePackages partitions pkgs into translated, untranslated and
// skipped. Exact mappings always win over fuzzy ones.
func (ix *Index) TranslatePackages(source, target distro.Family, pkgs []distro.InstalledPackage) (*Result, error) {
	res := &Result{
		Translated:   []Translated{},
		Untranslated: []distro.InstalledPackage{},
		Skipped:      []distro.InstalledPackage{},
	}

	for _, pkg := range pkgs {
		if IsSystemCritical(pkg.Name) {
			res.Skipped = append(res.Skipped, pkg)
			continue
		}

		m, err := ix.Lookup(source, target, pkg.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to translate %s: %w", pkg.Name, err)
		}
		if m == nil {
			m, err = ix.FuzzyMatch(pkg.Name, target)
			if err != nil {
				return nil, fmt.Errorf("failed to fuzzy match %s: %w", pkg.Name, err)
			}
		}

		if m == nil {
			res.Untranslated = append(res.Untranslated, pkg)
			continue
		}
		res.Translated = append(res.Translated, Translated{Package: pkg, Mapping: *m})
	}

	ix.logger.Info("translated packages",
		zap.String("source", string(source)),
		zap.String("target", string(target)),
		zap.Int("translated", len(res.Translated)),
		zap.Int("untranslated", len(res.Untranslated)),
		zap.Int("skipped", len(res.Skipped)))

	return res, nil
}

// AddMapping records an operator correction. The last write for a key wins.
func (ix *Index) AddMapping(source distro.Family, sourcePkg string, target distro.Family, targetPkg string, confidence float64) error {
	if strings.TrimSpace(sourcePkg) == "" || strings.TrimSpace(targetPkg) == "" {
		return errdefs.New(errdefs.ErrValidation, "package names must not be empty")
	}
	if confidence < 0 || confidence > 1 {
		return errdefs.New(errdefs.ErrValidation, fmt.Sprintf("confidence %.2f outside [0,1]", confidence))
	}

	err := ix.store.UpsertMapping(&store.Mapping{
		SourceFamily:  string(source),
		SourcePackage: sourcePkg,
		TargetFamily:  string(target),
		TargetPackage: targetPkg,
		Confidence:    confidence,
		Origin:        store.OriginOperator,
	})
	if err != nil {
		return errdefs.Wrap(errdefs.ErrPersistence, err, "")
	}
	ix.logger.Info("added package mapping",
		zap.String("source", string(source)+":"+sourcePkg),
		zap.String("target", string(target)+":"+targetPkg),
		zap.Float64("confidence", confidence))
	return nil
}
