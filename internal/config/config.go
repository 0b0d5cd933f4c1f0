// Package config loads the optional tscore.yaml engine configuration:
// console color mode, compiled-module cache location, and the execution
// limits the embedding surface exposes.
package config

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Config is the engine's ambient settings surface.
type Config struct {
	// Color selects diagnostic coloring: "auto" (default), "always", "never".
	Color string `yaml:"color"`
	// CacheDir overrides the compiled-module cache location; empty means
	// $XDG_CACHE_HOME/tscore (or the platform cache dir).
	CacheDir string `yaml:"cache_dir"`
	// NoCache disables the compiled-module cache entirely.
	NoCache bool `yaml:"no_cache"`
	// MaxCallDepth bounds recursion in emitted code; 0 means the default.
	MaxCallDepth int `yaml:"max_call_depth"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{Color: "auto", MaxCallDepth: 10000}
}

// Load reads path, layering it over the defaults. A missing file is not an
// error — callers get the defaults back.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Color == "" {
		cfg.Color = "auto"
	}
	if cfg.MaxCallDepth == 0 {
		cfg.MaxCallDepth = 10000
	}
	return cfg, nil
}

// Discover looks for tscore.yaml in dir and its ancestors, falling back to
// the defaults when none exists.
func Discover(dir string) (*Config, error) {
	for {
		candidate := filepath.Join(dir, "tscore.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// DefaultCacheDir resolves the compiled-module cache directory, honoring
// CacheDir when set.
func (c *Config) DefaultCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "tscore")
}
