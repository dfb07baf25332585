package flags

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/setevik/communicatord/internal/version"
)

// now is swapped in tests to control the date/modified stamps.
var now = time.Now

// Save persists the flag according to its state and reports success.
//
// With state UP the flag file is created or merged: all fields are written,
// "date" keeps the value already on disk (first raise) or is set to now,
// "modified" is always set to now, "count" is the on-disk count plus one
// (or 1 for a fresh file), and "hostname"/"version" are refreshed from the
// current environment. The write uses a backup-then-replace discipline.
//
// With state DOWN the flag file is deleted; deleting a file that does not
// exist counts as success, so clearing is idempotent.
//
// Save returns false, never an error, when the filename cannot be resolved
// or on any I/O failure; "could not save" is an expected daemon condition,
// not a programming error. Failures are logged.
//
// Save does not check ManualDown: callers clearing flags automatically must
// skip manual-down flags themselves. There is also no cross-process lock on
// the flag file; two processes saving the same triple can interleave the
// read-modify-write of count/date. Processes are expected to own disjoint
// triples.
func (f *Flag) Save() bool {
	filename := f.Filename()
	if filename == "" {
		slog.Warn("cannot save flag, flags directory unresolved",
			"unit", f.unit, "section", f.section, "name", f.name)
		return false
	}

	if f.state == StateDown {
		if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
			slog.Error("could not delete flag file", "file", filename, "error", err)
			return false
		}
		return true
	}

	// Merge pass: pick up date and count from a previous raise of the
	// same triple before overwriting the file.
	date := strconv.FormatInt(now().Unix(), 10)
	modified := date
	count := 1
	if prior, err := parseRecord(filename); err == nil {
		if v, ok := prior["date"]; ok {
			date = v
		}
		if v, ok := prior["count"]; ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				count = n + 1
			}
		}
	} else if !os.IsNotExist(err) {
		slog.Warn("could not read previous flag file, saving fresh",
			"file", filename, "error", err)
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}

	content := formatRecord([]recordField{
		{"unit", f.unit},
		{"section", f.section},
		{"name", f.name},
		{"source_file", f.sourceFile},
		{"function", f.function},
		{"line", strconv.Itoa(f.line)},
		{"message", f.message},
		{"priority", strconv.Itoa(f.priority)},
		{"manual_down", yesNo(f.manualDown)},
		{"date", date},
		{"modified", modified},
		{"tags", strings.Join(f.Tags(), ",")},
		{"hostname", hostname},
		{"count", strconv.Itoa(count)},
		{"version", version.Current()},
	})

	if err := replaceRecord(filename, content); err != nil {
		slog.Error("could not save flag file", "file", filename, "error", err)
		return false
	}
	return true
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
