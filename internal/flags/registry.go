package flags

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// DefaultLimit caps how many flags LoadAll returns. An unbounded number of
// raised flags indicates a systemic problem (a runaway detector, usually);
// the cap keeps enumeration bounded while the overflow itself surfaces as
// an ordinary flag.
const DefaultLimit = 100

var loadLimit = DefaultLimit

// SetLimit overrides the LoadAll ceiling; values below 1 restore the
// default. The daemon bootstrap applies the configured [flags] limit here.
func SetLimit(limit int) {
	if limit < 1 {
		limit = DefaultLimit
	}
	loadLimit = limit
}

// LoadAll reads every flag file from the flags directory and returns the
// reconstructed flags. An unresolved directory yields an empty result, not
// an error. A file that fails to parse is skipped with a logged diagnostic;
// partial results beat total failure.
//
// The result order is whatever the directory enumeration happens to return;
// callers must not depend on ordering between runs.
//
// At most the configured limit of flags is returned. When more files exist,
// the last slot is taken by a synthesized "too-many-flags" flag describing
// the overflow; it is persisted through the normal Save path so it stays
// discoverable on the next load, and no further files are read.
func LoadAll() []*Flag {
	dir := Directory()
	if dir == "" {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.flag"))
	if err != nil {
		slog.Error("could not enumerate flag files", "dir", dir, "error", err)
		return nil
	}

	var result []*Flag
	for i, filename := range matches {
		if len(result) == loadLimit-1 && i < len(matches)-1 {
			overflow := tooManyFlags(dir, loadLimit)
			overflow.Save()
			result = append(result, overflow)
			break
		}

		f, err := Load(filename)
		if err != nil {
			slog.Warn("skipping unreadable flag file", "file", filename, "error", err)
			continue
		}
		result = append(result, f)
	}

	return result
}

// tooManyFlags builds the overflow flag. It goes through the ordinary
// constructor and Save path; in particular it never calls back into
// LoadAll, so the self-report cannot recurse.
func tooManyFlags(dir string, limit int) *Flag {
	f, err := New("communicatord", "flag", "too-many-flags")
	if err != nil {
		// The identity is a compile-time constant; New cannot fail on it.
		panic(err)
	}
	f.SetMessage(fmt.Sprintf(
		"too many flags were raised, showing only the first %d, others can be viewed on this system at %q",
		limit, dir))
	f.SetPriority(97)
	f.SetSourceFile("internal/flags/registry.go")
	f.SetFunction("LoadAll")
	f.AddTag("flag")
	f.AddTag("too-many")
	return f
}
