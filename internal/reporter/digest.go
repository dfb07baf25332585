package reporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/setevik/communicatord/internal/history"
)

// DigestSummary holds aggregated transition counts for a digest period.
type DigestSummary struct {
	Since time.Time
	Until time.Time

	Raises int
	Clears int

	// RaisesByFlag maps "unit/section/name" to its raise count.
	RaisesByFlag map[string]int
	// MaxPriority is the highest priority seen among raises.
	MaxPriority int
	// StillManual lists flags raised with manual clearance required.
	StillManual []string
}

// BuildDigest aggregates transitions into a DigestSummary.
func BuildDigest(transitions []*history.Transition, since, until time.Time) *DigestSummary {
	d := &DigestSummary{
		Since:        since,
		Until:        until,
		RaisesByFlag: make(map[string]int),
	}

	for _, tr := range transitions {
		id := fmt.Sprintf("%s/%s/%s", tr.Unit, tr.Section, tr.Name)
		switch tr.Action {
		case history.ActionRaise:
			d.Raises++
			d.RaisesByFlag[id]++
			if tr.Priority > d.MaxPriority {
				d.MaxPriority = tr.Priority
			}
		case history.ActionClear:
			d.Clears++
		}
	}

	return d
}

// FormatDigest formats a DigestSummary as human-readable text suitable for
// ntfy or stdout output.
func FormatDigest(d *DigestSummary) string {
	var b strings.Builder

	dateRange := fmt.Sprintf("%s - %s",
		d.Since.Local().Format("Jan 02"),
		d.Until.Local().Format("Jan 02"))

	fmt.Fprintf(&b, "=== flag activity ===\n")
	fmt.Fprintf(&b, "Period: %s\n\n", dateRange)

	fmt.Fprintf(&b, "Raised:  %d", d.Raises)
	if d.Raises > 0 {
		fmt.Fprintf(&b, " (%s)", formatBreakdown(d.RaisesByFlag))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Cleared: %d\n", d.Clears)

	if d.Raises > 0 {
		fmt.Fprintf(&b, "Highest priority raised: %d\n", d.MaxPriority)
	}

	return b.String()
}

// FormatDigestTitle generates the ntfy title for a digest notification.
func FormatDigestTitle(since, until time.Time) string {
	return fmt.Sprintf("\U0001f4ca communicatord flag digest (%s-%s)",
		since.Local().Format("Jan 02"),
		until.Local().Format("Jan 02"))
}

// formatBreakdown turns a map[string]int into "foo x2, bar x1" sorted by count desc.
func formatBreakdown(m map[string]int) string {
	type entry struct {
		name  string
		count int
	}

	entries := make([]entry, 0, len(m))
	for name, count := range m {
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s ×%d", e.name, e.count)
	}
	return strings.Join(parts, ", ")
}
