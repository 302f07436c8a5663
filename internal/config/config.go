// Package config resolves dart-context's runtime configuration: cache
// directory locations, the watcher debounce window, and query pagination
// defaults. Grounded on the teacher's driven/config/file pattern but
// adapted to this domain's surface, with precedence flag > env > file >
// default, matching custodia-labs-sercha-cli's loader.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved runtime configuration. Every field has a
// sensible default so a caller can use Default() directly in tests
// without touching the filesystem (spec.md §9: the global cache path must
// be dependency-injected, never a hard-coded singleton).
type Config struct {
	GlobalCacheDir    string        `yaml:"globalCacheDir"`
	WorkspaceCacheDir string        `yaml:"workspaceCacheDir"`
	WatchDebounce     time.Duration `yaml:"watchDebounce"`
	QueryPageSize     int           `yaml:"queryPageSize"`
}

// Default returns the baseline configuration before file/env/flag
// overrides are layered on.
func Default() Config {
	return Config{
		GlobalCacheDir:    defaultGlobalCacheDir(),
		WorkspaceCacheDir: ".dart_context",
		WatchDebounce:     100 * time.Millisecond,
		QueryPageSize:     100,
	}
}

func defaultGlobalCacheDir() string {
	if dir := os.Getenv("PACKAGE_CACHE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".dart-context", "cache")
}

// fileConfig mirrors the optional dart-context.yaml schema; zero values
// mean "not set", so Load only overrides fields the file actually names.
type fileConfig struct {
	GlobalCacheDir    string `yaml:"globalCacheDir"`
	WorkspaceCacheDir string `yaml:"workspaceCacheDir"`
	WatchDebounceMS   int    `yaml:"watchDebounceMs"`
	QueryPageSize     int    `yaml:"queryPageSize"`
}

// Load resolves configuration with precedence flag > env > file > default.
// projectRoot is searched for dart-context.yaml; envOverrides and
// flagOverrides are applied, in that order, on top of the file (and
// default) values. Passing a zero-value Config for either override means
// "no override at that layer".
func Load(projectRoot string, envOverrides, flagOverrides Config) (Config, error) {
	cfg := Default()

	var fc fileConfig
	b, err := os.ReadFile(filepath.Join(projectRoot, "dart-context.yaml"))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return Config{}, err
		}
		applyFile(&cfg, fc)
	case os.IsNotExist(err):
		// no file: defaults stand
	default:
		return Config{}, err
	}

	applyOverride(&cfg, envOverrides)
	applyOverride(&cfg, flagOverrides)

	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.GlobalCacheDir != "" {
		cfg.GlobalCacheDir = fc.GlobalCacheDir
	}
	if fc.WorkspaceCacheDir != "" {
		cfg.WorkspaceCacheDir = fc.WorkspaceCacheDir
	}
	if fc.WatchDebounceMS > 0 {
		cfg.WatchDebounce = time.Duration(fc.WatchDebounceMS) * time.Millisecond
	}
	if fc.QueryPageSize > 0 {
		cfg.QueryPageSize = fc.QueryPageSize
	}
}

func applyOverride(cfg *Config, o Config) {
	if o.GlobalCacheDir != "" {
		cfg.GlobalCacheDir = o.GlobalCacheDir
	}
	if o.WorkspaceCacheDir != "" {
		cfg.WorkspaceCacheDir = o.WorkspaceCacheDir
	}
	if o.WatchDebounce > 0 {
		cfg.WatchDebounce = o.WatchDebounce
	}
	if o.QueryPageSize > 0 {
		cfg.QueryPageSize = o.QueryPageSize
	}
}
