package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/output"
	"github.com/blackwell-systems/distroshift/internal/translate"
)

var mappingFlagConfidence float64

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Inspect and correct package translations",
	Long: `Package translations map a package name in one distribution family to
its equivalent in another. The table is seeded with curated equivalents;
corrections added here take precedence and survive reseeding.`,
}

var mappingAddCmd = &cobra.Command{
	Use:   "add <source-family> <package> <target-family> <package>",
	Short: "Add or replace a package translation",
	Example: `  distroshift mapping add Debian fd-find Arch fd
  distroshift mapping add Debian bat RedHat bat --confidence 0.9`,
	Args: cobra.ExactArgs(4),
	RunE: runMappingAdd,
}

var mappingListCmd = &cobra.Command{
	Use:     "list <source-family> <target-family>",
	Short:   "List stored translations for a family pair",
	Example: `  distroshift mapping list Debian Arch`,
	Args:    cobra.ExactArgs(2),
	RunE:    runMappingList,
}

var mappingLookupCmd = &cobra.Command{
	Use:     "lookup <source-family> <target-family> <package>",
	Short:   "Show how a package translates",
	Example: `  distroshift mapping lookup Debian Arch python3-requests`,
	Args:    cobra.ExactArgs(3),
	RunE:    runMappingLookup,
}

func init() {
	mappingAddCmd.Flags().Float64Var(&mappingFlagConfidence, "confidence", translate.ExactConfidence, "confidence of the translation, 0 to 1")

	mappingCmd.AddCommand(mappingAddCmd)
	mappingCmd.AddCommand(mappingListCmd)
	mappingCmd.AddCommand(mappingLookupCmd)
	RootCmd.AddCommand(mappingCmd)
}

func parseFamilies(names ...string) ([]distro.Family, error) {
	families := make([]distro.Family, len(names))
	for i, n := range names {
		f, err := distro.ParseFamily(n)
		if err != nil {
			return nil, err
		}
		families[i] = f
	}
	return families, nil
}

func runMappingAdd(cmd *cobra.Command, args []string) error {
	families, err := parseFamilies(args[0], args[2])
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.lock(); err != nil {
		return err
	}
	ix, err := rt.index()
	if err != nil {
		return err
	}
	if err := ix.AddMapping(families[0], args[1], families[1], args[3], mappingFlagConfidence); err != nil {
		return err
	}

	fmt.Fprintf(rt.out, "%s:%s → %s:%s (confidence %s)\n",
		families[0], args[1], families[1], args[3], strconv.FormatFloat(mappingFlagConfidence, 'f', 2, 64))
	return nil
}

func runMappingList(cmd *cobra.Command, args []string) error {
	families, err := parseFamilies(args[0], args[1])
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	ix, err := rt.index()
	if err != nil {
		return err
	}
	rows, err := ix.Mappings(families[0], families[1])
	if err != nil {
		return err
	}
	fmt.Fprint(rt.out, output.RenderMappings(rows))
	return nil
}

func runMappingLookup(cmd *cobra.Command, args []string) error {
	families, err := parseFamilies(args[0], args[1])
	if err != nil {
		return err
	}
	src, tgt, name := families[0], families[1], args[2]

	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close()

	ix, err := rt.index()
	if err != nil {
		return err
	}

	if translate.IsSystemCritical(name) {
		fmt.Fprintf(rt.out, "%s is part of the base system and is never migrated\n", name)
	}

	m, err := ix.Lookup(src, tgt, name)
	if err != nil {
		return err
	}
	if m == nil {
		if m, err = ix.FuzzyMatch(name, tgt); err != nil {
			return err
		}
	}
	if m == nil {
		fmt.Fprintf(rt.out, "No %s translation for %s:%s\n", tgt, src, name)
		return nil
	}

	kind := "exact"
	if m.Fuzzy {
		kind = "fuzzy"
	}
	fmt.Fprintf(rt.out, "%s:%s → %s:%s (%s, confidence %.2f)\n", src, name, tgt, m.TargetPackage, kind, m.Confidence)
	return nil
}
