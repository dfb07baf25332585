// Package reporter renders raised flags for operators: tabular listings
// for the CLI, ntfy push notifications for high-priority flags, and
// periodic digests built from the transition history.
package reporter

import (
	"fmt"
	"strings"
	"time"

	"github.com/setevik/communicatord/internal/flags"
	"github.com/setevik/communicatord/internal/format"
)

// priorityEmoji picks the ntfy title emoji for a flag priority band.
func priorityEmoji(priority int) string {
	switch {
	case priority >= 90:
		return "\U0001f6a8" // rotating light
	case priority >= 70:
		return "\U0001f534" // red circle
	default:
		return "\U0001f6a9" // triangular flag
	}
}

// FormatTitle builds the ntfy notification title for a flag.
func FormatTitle(f *flags.Flag) string {
	return fmt.Sprintf("%s [%s/%s] %s", priorityEmoji(f.Priority()), f.Unit(), f.Section(), f.Name())
}

// FormatBody builds the ntfy notification body for a flag.
func FormatBody(f *flags.Flag) string {
	var b strings.Builder

	b.WriteString(f.Message())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Priority: %d\n", f.Priority())
	if f.Hostname() != "" {
		fmt.Fprintf(&b, "Host: %s\n", f.Hostname())
	}
	if f.Count() > 1 {
		fmt.Fprintf(&b, "Raised %d times since %s\n", f.Count(), format.Epoch(f.Date()))
	} else if f.Date() != 0 {
		fmt.Fprintf(&b, "First raised: %s\n", format.Epoch(f.Date()))
	}
	if f.ManualDown() {
		b.WriteString("Requires manual clearance.\n")
	}
	if f.SourceFile() != "" {
		fmt.Fprintf(&b, "Source: %s:%d (%s)\n", f.SourceFile(), f.Line(), f.Function())
	}

	return b.String()
}

// NtfyTags builds the ntfy tags header for a flag: a fixed marker plus the
// flag's own tags.
func NtfyTags(f *flags.Flag) string {
	tags := append([]string{"triangular_flag_on_post"}, f.Tags()...)
	return strings.Join(tags, ",")
}

// FormatTable renders flags as an aligned operator listing.
func FormatTable(list []*flags.Flag) string {
	if len(list) == 0 {
		return "No flags raised.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-3s %-5s %-9s %-40s %s\n", "PRI", "COUNT", "AGE", "FLAG", "MESSAGE")
	for _, f := range list {
		age := "-"
		if f.Date() != 0 {
			age = format.Age(time.Since(time.Unix(f.Date(), 0)))
		}
		id := fmt.Sprintf("%s/%s/%s", f.Unit(), f.Section(), f.Name())
		message := strings.SplitN(f.Message(), "\n", 2)[0]
		fmt.Fprintf(&b, "%-3d %-5d %-9s %-40s %s\n", f.Priority(), f.Count(), age, id, message)
		if len(f.Tags()) > 0 {
			fmt.Fprintf(&b, "%-20s tags: %s\n", "", strings.Join(f.Tags(), ", "))
		}
	}
	fmt.Fprintf(&b, "\nTotal: %d flag(s)\n", len(list))
	return b.String()
}
