package translate

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/distroshift/internal/store"
)

//go:embed seed_mappings.yaml
var seedYAML []byte

type seedGroup struct {
	Source   string            `yaml:"source"`
	Target   string            `yaml:"target"`
	Packages map[string]string `yaml:"packages"`
}

// seedMappings decodes the curated table. Rows within a group are sorted by
// source package so insertion order, and therefore fuzzy tie-breaking, is
// stable.
func seedMappings() ([]store.Mapping, error) {
	var groups []seedGroup
	if err := yaml.Unmarshal(seedYAML, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode seed mappings: %w", err)
	}

	var out []store.Mapping
	for _, g := range groups {
		names := make([]string, 0, len(g.Packages))
		for name := range g.Packages {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, store.Mapping{
				SourceFamily:  g.Source,
				SourcePackage: name,
				TargetFamily:  g.Target,
				TargetPackage: g.Packages[name],
				Confidence:    ExactConfidence,
				Origin:        store.OriginSeed,
			})
		}
	}
	return out, nil
}
