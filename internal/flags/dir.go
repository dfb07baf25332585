package flags

import (
	"log/slog"
	"os"
	"sync"

	"github.com/setevik/communicatord/internal/config"
)

// DefaultDirectory is where flag files live when the daemon configuration
// does not say otherwise. The daemon creates it at startup; this package
// never does.
const DefaultDirectory = "/var/lib/communicatord/flags"

// The flags directory is process-wide state resolved exactly once, on
// first use. If resolution fails (directory missing), the cache stays in
// the unresolved state ("" with attempted set) and every later Save or
// LoadAll cheaply fails or returns empty instead of re-probing; a
// directory created after the fact is only noticed on process restart.
var dirCache struct {
	sync.Mutex
	attempted bool
	path      string // "" while unresolved
	override  string // from SetDirectory, consulted before the config
}

// Directory returns the flags directory, resolving it on the first call.
// Resolution order: an explicit SetDirectory value, then the [flags] path
// of the daemon configuration, then DefaultDirectory. The directory must
// already exist; otherwise "" is returned, now and for the rest of the
// process's life.
func Directory() string {
	dirCache.Lock()
	defer dirCache.Unlock()

	if dirCache.attempted {
		return dirCache.path
	}
	dirCache.attempted = true

	path := dirCache.override
	if path == "" {
		path = configuredDirectory()
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Error("could not find the flags directory; has the communicator daemon been started yet? (it creates it)",
			"path", path, "error", err)
		return ""
	}
	if !info.IsDir() {
		slog.Error("flags path exists but is not a directory", "path", path)
		return ""
	}

	dirCache.path = path
	return dirCache.path
}

// SetDirectory primes the directory cache before its first use. The daemon
// bootstrap calls it with the configured path; tests call it with a temp
// directory. Calling it after the first Directory resolution has no effect
// on flags that already memoized their filename.
func SetDirectory(path string) {
	dirCache.Lock()
	defer dirCache.Unlock()
	dirCache.override = path
	dirCache.attempted = false
	dirCache.path = ""
}

// resetDirectory clears all directory state. Tests only.
func resetDirectory() {
	dirCache.Lock()
	defer dirCache.Unlock()
	dirCache.attempted = false
	dirCache.path = ""
	dirCache.override = ""
}

// configuredDirectory reads the [flags] path from the daemon configuration,
// falling back to DefaultDirectory when unconfigured or unreadable.
func configuredDirectory() string {
	cfg, err := config.Load("")
	if err != nil {
		slog.Warn("could not read daemon configuration, using default flags directory",
			"error", err, "path", DefaultDirectory)
		return DefaultDirectory
	}
	if cfg.Flags.Path != "" {
		return cfg.Flags.Path
	}
	return DefaultDirectory
}
