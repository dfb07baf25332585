// Package config handles TOML configuration loading with sensible defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for the communicator daemon's
// flag registry and its sibling subsystems.
type Config struct {
	Flags   FlagsConfig   `toml:"flags"`
	Cache   CacheConfig   `toml:"cache"`
	History HistoryConfig `toml:"history"`
	Ntfy    NtfyConfig    `toml:"ntfy"`
	Log     LogConfig     `toml:"log"`
}

// FlagsConfig locates the flag-file directory and caps bulk loads.
type FlagsConfig struct {
	Path  string `toml:"path"`
	Limit int    `toml:"limit"`
}

// CacheConfig controls the deferred-message cache.
type CacheConfig struct {
	DefaultTTL    Duration `toml:"default_ttl"`
	MinTTL        Duration `toml:"min_ttl"`
	MaxTTL        Duration `toml:"max_ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// HistoryConfig controls the flag transition history database.
type HistoryConfig struct {
	Path      string   `toml:"path"`
	Retention Duration `toml:"retention"`
}

// NtfyConfig controls the ntfy notification target for high-priority flags.
type NtfyConfig struct {
	URL      string `toml:"url"`
	NotifyAt int    `toml:"notify_at"`
	HighAt   int    `toml:"high_at"`
	UrgentAt int    `toml:"urgent_at"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps time.Duration for TOML string parsing (e.g. "5m", "1h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Flags: FlagsConfig{
			Path:  "/var/lib/communicatord/flags",
			Limit: 100,
		},
		Cache: CacheConfig{
			DefaultTTL:    Duration{time.Minute},
			MinTTL:        Duration{10 * time.Second},
			MaxTTL:        Duration{24 * time.Hour},
			SweepInterval: Duration{time.Minute},
		},
		History: HistoryConfig{
			Path:      "/var/lib/communicatord/history.db",
			Retention: Duration{90 * 24 * time.Hour},
		},
		Ntfy: NtfyConfig{
			NotifyAt: 50,
			HighAt:   70,
			UrgentAt: 90,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return "/etc/communicatord/communicatord.toml"
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// ShouldNotify returns true if a flag of the given priority is pushed to
// operators.
func (c *Config) ShouldNotify(priority int) bool {
	return priority >= c.Ntfy.NotifyAt
}

// NtfyPriority maps a flag priority (0..100) to an ntfy priority string.
func (c *Config) NtfyPriority(priority int) string {
	switch {
	case priority >= c.Ntfy.UrgentAt:
		return "urgent"
	case priority >= c.Ntfy.HighAt:
		return "high"
	default:
		return "default"
	}
}
