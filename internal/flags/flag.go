// Package flags implements the persistent health-flag registry of the
// communicator daemon.
//
// A flag records a standing, recoverable-but-unattended problem ("clamav
// not installed") so that operators or peer services can discover it and
// eventually clear it, across process restarts and reboots. Each flag is
// identified by a (unit, section, name) triple and backed by exactly one
// key=value file at <flags-dir>/<unit>_<section>_<name>.flag. Raising a
// flag (state UP) creates or merges the file; clearing it (state DOWN)
// deletes the file.
package flags

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// State tells whether a flag is raised or cleared.
type State int

const (
	// StateUp means the problem is present; Save persists the flag file.
	StateUp State = iota
	// StateDown means the problem is gone; Save deletes the flag file.
	StateDown
)

func (s State) String() string {
	if s == StateDown {
		return "down"
	}
	return "up"
}

// DefaultPriority is assigned to new flags. Priorities range 0..100; a
// priority of 50 or more gets the flag pushed to operators (see the
// reporter package).
const DefaultPriority = 5

// Flag is a mutable value object describing one raised (or about to be
// cleared) problem. The (unit, section, name) identity is immutable after
// construction; everything else is set through the fluent setters. A Flag
// only touches durable storage inside Save and the first Filename call.
//
// A Flag is owned by the caller holding it and is not safe for concurrent
// use.
type Flag struct {
	unit    string
	section string
	name    string

	sourceFile string
	function   string
	line       int

	message  string
	priority int

	state      State
	manualDown bool

	date     int64
	modified int64

	tags map[string]struct{}

	hostname string
	version  string
	count    int

	filename string
}

// New creates a flag in memory. The three identity names must satisfy the
// grammar enforced by ValidName; they are normalized (lowercased) in the
// process. The flag starts UP with the default priority; the occurrence
// count becomes 1 on the first successful Save.
func New(unit, section, name string) (*Flag, error) {
	var err error
	if unit, err = ValidName(unit); err != nil {
		return nil, err
	}
	if section, err = ValidName(section); err != nil {
		return nil, err
	}
	if name, err = ValidName(name); err != nil {
		return nil, err
	}

	return &Flag{
		unit:     unit,
		section:  section,
		name:     name,
		priority: DefaultPriority,
		state:    StateUp,
		tags:     make(map[string]struct{}),
	}, nil
}

// Load reconstructs a flag from its file. The unit, section, name, and
// message fields are mandatory; everything else keeps its default when
// absent. Malformed optional numeric fields are skipped with a logged
// warning rather than rejecting the whole record.
//
// The identity names are trusted as stored (they were validated when the
// file was written) and are not re-validated here.
func Load(filename string) (*Flag, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: the filename must not be empty when loading a flag from file", ErrInvalidParameter)
	}

	rec, err := parseRecord(filename)
	if err != nil {
		return nil, fmt.Errorf("reading flag file %s: %w", filename, err)
	}

	for _, field := range [...]string{"unit", "section", "name", "message"} {
		if _, ok := rec[field]; !ok {
			return nil, fmt.Errorf("%w: flag file %s is missing the mandatory %q field", ErrInvalidParameter, filename, field)
		}
	}

	f := &Flag{
		unit:     rec["unit"],
		section:  rec["section"],
		name:     rec["name"],
		message:  rec["message"],
		priority: DefaultPriority,
		state:    StateUp,
		tags:     make(map[string]struct{}),
		filename: filename,
	}

	f.sourceFile = rec["source_file"]
	f.function = rec["function"]
	f.hostname = rec["hostname"]
	f.version = rec["version"]

	if v, ok := rec["line"]; ok {
		f.line = recordInt(filename, "line", v, 0)
	}
	if v, ok := rec["priority"]; ok {
		f.priority = recordInt(filename, "priority", v, DefaultPriority)
	}
	if v, ok := rec["manual_down"]; ok {
		f.manualDown = v == "yes"
	}
	if v, ok := rec["date"]; ok {
		f.date = recordInt64(filename, "date", v, 0)
	}
	if v, ok := rec["modified"]; ok {
		f.modified = recordInt64(filename, "modified", v, 0)
	}
	if v, ok := rec["count"]; ok {
		f.count = recordInt(filename, "count", v, 0)
	}
	if v, ok := rec["tags"]; ok {
		for _, tag := range strings.Split(v, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				f.tags[tag] = struct{}{}
			}
		}
	}

	return f, nil
}

// recordInt parses a numeric record field, falling back to def on garbage.
func recordInt(filename, field, value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("ignoring malformed numeric field in flag file",
			"file", filename, "field", field, "value", value)
		return def
	}
	return n
}

func recordInt64(filename, field, value string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		slog.Warn("ignoring malformed numeric field in flag file",
			"file", filename, "field", field, "value", value)
		return def
	}
	return n
}

// SetState raises (StateUp) or clears (StateDown) the flag. The change only
// reaches durable storage on the next Save.
func (f *Flag) SetState(state State) *Flag {
	f.state = state
	return f
}

// SetSourceFile records the source file raising the flag.
func (f *Flag) SetSourceFile(sourceFile string) *Flag {
	f.sourceFile = sourceFile
	return f
}

// SetFunction records the function raising the flag.
func (f *Flag) SetFunction(function string) *Flag {
	f.function = function
	return f
}

// SetLine records the line number at which the flag is raised. Zero means
// no line number was provided.
func (f *Flag) SetLine(line int) *Flag {
	f.line = line
	return f
}

// SetMessage sets the human-readable explanation of why the flag is raised.
func (f *Flag) SetMessage(message string) *Flag {
	f.message = message
	return f
}

// SetPriority sets the flag priority, clamped to 0..100.
func (f *Flag) SetPriority(priority int) *Flag {
	switch {
	case priority < 0:
		f.priority = 0
	case priority > 100:
		f.priority = 100
	default:
		f.priority = priority
	}
	return f
}

// SetManualDown marks the flag as requiring an explicit manual action to be
// cleared; automated detection logic must never flip such a flag to DOWN.
func (f *Flag) SetManualDown(manual bool) *Flag {
	f.manualDown = manual
	return f
}

// AddTag adds a tag to the flag's tag set. Tags follow the same grammar as
// the unit, section, and name; duplicates are ignored.
func (f *Flag) AddTag(tag string) (*Flag, error) {
	tag, err := ValidName(tag)
	if err != nil {
		return f, err
	}
	f.tags[tag] = struct{}{}
	return f, nil
}

// State returns the current lifecycle state.
func (f *Flag) State() State { return f.state }

// Unit returns the unit name, the top of the identity hierarchy.
func (f *Flag) Unit() string { return f.unit }

// Section returns the section name.
func (f *Flag) Section() string { return f.section }

// Name returns the flag name, the most specific part of the identity.
func (f *Flag) Name() string { return f.name }

// SourceFile returns the source file recorded for debugging.
func (f *Flag) SourceFile() string { return f.sourceFile }

// Function returns the function name recorded for debugging.
func (f *Flag) Function() string { return f.function }

// Line returns the recorded line number, zero when unset.
func (f *Flag) Line() int { return f.line }

// Message returns the human-readable explanation.
func (f *Flag) Message() string { return f.message }

// Priority returns the flag priority (0..100).
func (f *Flag) Priority() int { return f.priority }

// ManualDown reports whether the flag may only be cleared manually.
func (f *Flag) ManualDown() bool { return f.manualDown }

// Date returns the epoch seconds of the first raise, as stored on disk.
// Zero until the flag has been saved and loaded back.
func (f *Flag) Date() int64 { return f.date }

// Modified returns the epoch seconds of the most recent raise, as stored on
// disk. Zero until the flag has been saved and loaded back.
func (f *Flag) Modified() int64 { return f.modified }

// Tags returns the flag's tags, sorted.
func (f *Flag) Tags() []string {
	tags := make([]string, 0, len(f.tags))
	for tag := range f.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// HasTag reports whether the flag carries the given tag.
func (f *Flag) HasTag(tag string) bool {
	_, ok := f.tags[tag]
	return ok
}

// Hostname returns the host that last saved the flag file.
func (f *Flag) Hostname() string { return f.hostname }

// Count returns the number of times the flag was raised, as stored on
// disk. It starts at 1 on the first save.
func (f *Flag) Count() int { return f.count }

// Version returns the software version that last saved the flag file.
func (f *Flag) Version() string { return f.version }

// Filename returns the path of the file backing this flag. For a loaded
// flag this is the filename given to Load. For a new flag it is derived
// from the flags directory and the identity triple:
//
//	<flags-dir>/<unit>_<section>_<name>.flag
//
// The result is memoized on the first successful computation and reused for
// the life of the object. Returns "" when the flags directory cannot be
// resolved.
func (f *Flag) Filename() string {
	if f.filename == "" {
		dir := Directory()
		if dir != "" {
			f.filename = filepath.Join(dir, f.unit+"_"+f.section+"_"+f.name+".flag")
		}
	}
	return f.filename
}
