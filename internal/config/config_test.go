package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "musicnerd" {
		t.Errorf("expected Name=musicnerd, got %s", cfg.Name)
	}
	if cfg.Assets.CoverSize != 250 {
		t.Errorf("expected CoverSize=250, got %d", cfg.Assets.CoverSize)
	}
	if cfg.UI.Title != "Electronic Music Recommender" {
		t.Errorf("unexpected title %q", cfg.UI.Title)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("MUSICNERD_RULES", "")
	t.Setenv("MUSICNERD_COVERS", "")

	path := filepath.Join(t.TempDir(), ".musicnerd", "config.yaml")

	cfg := DefaultConfig()
	cfg.Rules.Path = "custom.mg"
	cfg.Rules.Watch = true
	cfg.Assets.CoversDir = "/srv/covers"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Rules.Path != "custom.mg" || !loaded.Rules.Watch {
		t.Errorf("rules section not round-tripped: %+v", loaded.Rules)
	}
	if loaded.Assets.CoversDir != "/srv/covers" {
		t.Errorf("expected CoversDir=/srv/covers, got %s", loaded.Assets.CoversDir)
	}
	if loaded.Assets.CoverSize != 250 {
		t.Errorf("expected CoverSize=250, got %d", loaded.Assets.CoverSize)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Assets.CoversDir == "" {
		t.Error("expected default covers dir")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ui:\n  dark_mode: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.UI.DarkMode {
		t.Error("expected dark_mode from file")
	}
	if cfg.Assets.CoverSize != 250 {
		t.Errorf("expected default CoverSize, got %d", cfg.Assets.CoverSize)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("rules: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MUSICNERD_RULES", "/etc/musicnerd/rules.mg")
	t.Setenv("MUSICNERD_COVERS", "/srv/covers")
	t.Setenv("MUSICNERD_IMAGE_TABLE", "/srv/images.yaml")
	t.Setenv("MUSICNERD_DEBUG", "1")
	t.Setenv("MUSICNERD_DARK_MODE", "1")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Rules.Path != "/etc/musicnerd/rules.mg" {
		t.Errorf("expected rules path override, got %s", cfg.Rules.Path)
	}
	if cfg.Assets.CoversDir != "/srv/covers" || cfg.Assets.ImageTable != "/srv/images.yaml" {
		t.Errorf("assets overrides not applied: %+v", cfg.Assets)
	}
	if !cfg.Logging.DebugMode || cfg.Logging.Level != "debug" {
		t.Errorf("debug override not applied: %+v", cfg.Logging)
	}
	if !cfg.UI.DarkMode {
		t.Error("dark mode override not applied")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"watch without path", func(c *Config) { c.Rules.Watch = true }},
		{"negative fact limit", func(c *Config) { c.Rules.FactLimit = -1 }},
		{"zero cover size", func(c *Config) { c.Assets.CoverSize = 0 }},
		{"zero cover columns", func(c *Config) { c.Assets.CoverColumns = 0 }},
		{"bad debounce", func(c *Config) { c.Rules.WatchDebounce = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetWatchDebounce(t *testing.T) {
	cfg := DefaultConfig()
	if d := cfg.GetWatchDebounce(); d != 300*time.Millisecond {
		t.Errorf("expected 300ms, got %v", d)
	}
	cfg.Rules.WatchDebounce = "1s"
	if d := cfg.GetWatchDebounce(); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	if lc.IsCategoryEnabled("engine") {
		t.Error("production mode should disable all categories")
	}
	lc.DebugMode = true
	lc.Categories = map[string]bool{"ui": false}
	if lc.IsCategoryEnabled("ui") {
		t.Error("ui should be disabled")
	}
	if !lc.IsCategoryEnabled("engine") {
		t.Error("unlisted category should be enabled")
	}
}
