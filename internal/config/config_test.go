package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Color != "auto" || cfg.MaxCallDepth != 10000 || cfg.NoCache {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Color != "auto" {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tscore.yaml")
	content := "color: never\ncache_dir: /tmp/tsc-cache\nno_cache: true\nmax_call_depth: 256\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Color != "never" || cfg.CacheDir != "/tmp/tsc-cache" || !cfg.NoCache || cfg.MaxCallDepth != 256 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.DefaultCacheDir() != "/tmp/tsc-cache" {
		t.Errorf("DefaultCacheDir = %q", cfg.DefaultCacheDir())
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tscore.yaml")
	if err := os.WriteFile(path, []byte("color: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml must fail to load")
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "tscore.yaml"), []byte("color: always\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Color != "always" {
		t.Errorf("Discover found %+v", cfg)
	}
}
