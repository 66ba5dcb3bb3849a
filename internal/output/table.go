// Package output renders distroshift's terminal output.
//
// Tables are plain fixed-width text with box-drawing separators. Color is
// only emitted when stdout is a terminal and NO_COLOR is unset. Progress
// bars and spinners redraw in place on a terminal and degrade to single
// lines elsewhere.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/distroshift/internal/catalog"
	"github.com/blackwell-systems/distroshift/internal/configplan"
	"github.com/blackwell-systems/distroshift/internal/distro"
	"github.com/blackwell-systems/distroshift/internal/history"
	"github.com/blackwell-systems/distroshift/internal/snapshots"
	"github.com/blackwell-systems/distroshift/internal/store"
	"github.com/blackwell-systems/distroshift/internal/translate"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled reports whether ANSI colors should be emitted.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

func colorize(color, text string) string {
	if !IsColorEnabled() {
		return text
	}
	return color + text + colorReset
}

func rule(n int) string {
	return strings.Repeat("─", n) + "\n"
}

// RenderSnapshotTable lists snapshots newest first.
func RenderSnapshotTable(snaps []*snapshots.Snapshot, now time.Time) string {
	if len(snaps) == 0 {
		return "No snapshots found.\n"
	}

	sorted := make([]*snapshots.Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-28s %-15s %-7s %-9s %-20s %s\n",
		"ID", "Created", "Type", "Size", "Distro", "Description"))
	sb.WriteString(rule(100))
	for _, s := range sorted {
		size := "-"
		if s.SizeBytes > 0 {
			size = humanize.IBytes(s.SizeBytes)
		}
		sb.WriteString(fmt.Sprintf("%-28s %-15s %-7s %-9s %-20s %s\n",
			s.ID,
			formatRelativeTime(s.CreatedAt(), now),
			s.Type,
			size,
			truncate(strings.TrimSpace(s.DistroName+" "+s.DistroVersion), 20),
			truncate(s.Description, 40)))
	}
	return sb.String()
}

// RenderSystemState summarizes a scan.
func RenderSystemState(state *distro.SystemState) string {
	var sb strings.Builder
	line := func(label, value string) {
		sb.WriteString(fmt.Sprintf("  %-14s %s\n", label+":", value))
	}

	sb.WriteString("Distribution\n")
	line("Name", state.Distro.Name)
	line("Version", state.Distro.Version)
	line("Family", string(state.Distro.Family))

	sb.WriteString("\nSystem\n")
	line("Kernel", state.Kernel)
	line("Architecture", state.Architecture)
	line("Filesystem", state.Filesystem)
	line("Bootloader", state.Bootloader)
	line("Init", string(state.Init))

	enabled, running := 0, 0
	for _, s := range state.Services {
		if s.Enabled {
			enabled++
		}
		if s.Running {
			running++
		}
	}
	sb.WriteString("\nPackages\n")
	line("Installed", humanize.Comma(int64(len(state.Packages))))

	sb.WriteString("\nServices\n")
	line("Total", fmt.Sprint(len(state.Services)))
	line("Enabled", fmt.Sprint(enabled))
	line("Running", fmt.Sprint(running))

	sb.WriteString("\nUsers\n")
	if len(state.Users) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, u := range state.Users {
		sb.WriteString(fmt.Sprintf("  %-14s uid %-6d %s\n", u.Name, u.UID, u.Home))
	}
	return sb.String()
}

// RenderTranslation shows the translated packages and the partition counts.
// At most limit rows are listed; limit <= 0 lists all of them.
func RenderTranslation(res *translate.Result, limit int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Translated: %d  Untranslated: %d  Skipped: %d\n\n",
		len(res.Translated), len(res.Untranslated), len(res.Skipped)))

	if len(res.Translated) > 0 {
		sb.WriteString(fmt.Sprintf("%-32s %-32s %s\n", "Source", "Target", "Confidence"))
		sb.WriteString(rule(78))
		for i, t := range res.Translated {
			if limit > 0 && i == limit {
				sb.WriteString(fmt.Sprintf("... and %d more\n", len(res.Translated)-limit))
				break
			}
			sb.WriteString(fmt.Sprintf("%-32s %-32s %s\n",
				truncate(t.Package.Name, 32),
				truncate(t.Mapping.TargetPackage, 32),
				formatConfidence(t.Mapping)))
		}
	}

	if len(res.Untranslated) > 0 {
		sb.WriteString("\nUntranslated:\n")
		for i, p := range res.Untranslated {
			if limit > 0 && i == limit {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(res.Untranslated)-limit))
				break
			}
			sb.WriteString("  - " + p.Name + "\n")
		}
	}
	return sb.String()
}

func formatConfidence(m translate.Mapping) string {
	label := fmt.Sprintf("%.2f", m.Confidence)
	if m.Fuzzy {
		label += " (fuzzy)"
	}
	switch {
	case m.Confidence >= translate.ExactConfidence:
		return colorize(colorGreen, label)
	case m.Confidence > 0.5:
		return colorize(colorYellow, label)
	default:
		return colorize(colorRed, label)
	}
}

// RenderPlan lists configuration operations in execution order.
func RenderPlan(ops []configplan.Operation) string {
	if len(ops) == 0 {
		return "No configuration operations.\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s %-18s %-36s %s\n", "Kind", "Rule", "Source", "Target"))
	sb.WriteString(rule(100))
	for _, op := range ops {
		target := op.Target
		if op.Transform != "" {
			target += colorize(colorGray, " ["+op.Transform+"]")
		}
		sb.WriteString(fmt.Sprintf("%-10s %-18s %-36s %s\n",
			op.Kind, truncate(op.Rule, 18), truncate(op.Source, 36), target))
	}
	return sb.String()
}

// RenderProfiles lists the available target distributions.
func RenderProfiles(entries []catalog.Entry) string {
	if len(entries) == 0 {
		return "No distributions available.\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-12s %-20s %-11s %-8s %-8s %s\n",
		"Key", "Name", "Version", "Family", "Manager", "Init"))
	sb.WriteString(rule(72))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%-12s %-20s %-11s %-8s %-8s %s\n",
			e.Key, truncate(e.Name, 20), truncate(e.Version, 11), e.Family, e.PackageManager.Name, e.Init))
	}
	return sb.String()
}

// RenderMappings lists stored package translations for one family pair.
func RenderMappings(rows []*store.Mapping) string {
	if len(rows) == 0 {
		return "No mappings found.\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-30s %-30s %-10s %s\n", "Source", "Target", "Confidence", "Origin"))
	sb.WriteString(rule(80))
	for _, m := range rows {
		origin := string(m.Origin)
		if m.Origin == store.OriginOperator {
			origin = colorize(colorGreen, origin)
		}
		sb.WriteString(fmt.Sprintf("%-30s %-30s %-10.2f %s\n",
			truncate(m.SourcePackage, 30), truncate(m.TargetPackage, 30), m.Confidence, origin))
	}
	sb.WriteString(fmt.Sprintf("\n%d mappings\n", len(rows)))
	return sb.String()
}

// RenderHistory lists transformation records in the order given.
func RenderHistory(records []history.Record) string {
	if len(records) == 0 {
		return "No transformations recorded.\n"
	}
	var sb strings.Builder
	for _, r := range records {
		snap := r.SnapshotID
		if !r.HasSnapshot() {
			snap = colorize(colorYellow, "no snapshot")
		}
		sb.WriteString(fmt.Sprintf("  %s → %s  (%s, %s)\n",
			r.FromDistro, r.ToDistro, r.Timestamp.UTC().Format(time.RFC3339), snap))
	}
	return sb.String()
}

// formatRelativeTime describes t relative to now ("3 hours ago").
func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
