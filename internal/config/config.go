// Package config loads the sigtrace.toml configuration file.
//
// Example:
//
//	[trace]
//	mode = "merged"
//	output = "trace.txt"
//
//	[store]
//	path = "runs.db"
//
//	[log]
//	level = "debug"
//
// Every section and key is optional. Command-line flags override the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/sigtrace/internal/trace"
)

// FileName is the configuration file looked up from the working directory
// upwards.
const FileName = "sigtrace.toml"

// Config is the merged configuration.
type Config struct {
	Trace TraceConfig `toml:"trace"`
	Store StoreConfig `toml:"store"`
	Log   LogConfig   `toml:"log"`

	// Path is the file the configuration was read from; empty for defaults.
	Path string `toml:"-"`
}

// TraceConfig holds recorder defaults.
type TraceConfig struct {
	// Mode is used when neither the command line nor the scenario picks one.
	Mode string `toml:"mode"`
	// Output is the trace file; empty writes to stdout.
	Output string `toml:"output"`
}

// StoreConfig holds the run database location.
type StoreConfig struct {
	// Path of the SQLite database; empty disables persistence.
	Path string `toml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Trace: TraceConfig{Mode: trace.ModeFull.String()},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Unknown keys are an error so typos do
// not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("trace", "mode") {
		if _, err := trace.ParseMode(cfg.Trace.Mode); err != nil {
			return Config{}, fmt.Errorf("%s: [trace].mode: %w", path, err)
		}
	}
	if meta.IsDefined("log", "level") {
		if _, err := ParseLevel(cfg.Log.Level); err != nil {
			return Config{}, fmt.Errorf("%s: [log].level: %w", path, err)
		}
	}
	cfg.Path = path
	return cfg, nil
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Resolve loads explicit when set (a missing file is then an error),
// otherwise the nearest FileName above startDir, otherwise the defaults.
func Resolve(explicit, startDir string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// TraceMode parses the configured trace mode.
func (c Config) TraceMode() (trace.Mode, error) {
	return trace.ParseMode(c.Trace.Mode)
}

// LogLevel parses the configured log level.
func (c Config) LogLevel() (slog.Level, error) {
	return ParseLevel(c.Log.Level)
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q (expected: debug|info|warn|error)", s)
	}
}
