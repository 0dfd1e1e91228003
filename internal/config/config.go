package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all musicnerd configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Rule session
	Rules RulesConfig `yaml:"rules"`

	// Image table and cover art
	Assets AssetsConfig `yaml:"assets"`

	// Terminal window
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RulesConfig configures the rule session.
type RulesConfig struct {
	// Path to a .mg rules file. Empty uses the bundled rules.
	Path string `yaml:"path"`
	// Watch reloads Path when it changes on disk.
	Watch bool `yaml:"watch"`
	// FactLimit caps facts created by one evaluation.
	FactLimit int `yaml:"fact_limit"`
	// MaxAnswers caps working memory.
	MaxAnswers int `yaml:"max_answers"`
	// Debounce for file change events.
	WatchDebounce string `yaml:"watch_debounce"`
}

// AssetsConfig configures image resolution.
type AssetsConfig struct {
	// ImageTable is an external key->filename table (.xml or .yaml). Empty uses the bundled images.xml.
	ImageTable string `yaml:"image_table"`
	// CoversDir holds the cover art files.
	CoversDir string `yaml:"covers_dir"`
	// CoverSize is the edge length covers are scaled to, in pixels.
	CoverSize int `yaml:"cover_size"`
	// CoverColumns is the width of the rendered cover panel in terminal cells.
	CoverColumns int `yaml:"cover_columns"`
}

// UIConfig configures the terminal window.
type UIConfig struct {
	Title    string `yaml:"title"`
	DarkMode bool   `yaml:"dark_mode"`
	// Width used for word wrapping before the terminal reports its size.
	Width int `yaml:"width"`
	// AltScreen runs the program in the alternate screen buffer.
	AltScreen bool `yaml:"alt_screen"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "musicnerd",
		Version: "1.0.0",

		Rules: RulesConfig{
			FactLimit:     100000,
			MaxAnswers:    1000,
			WatchDebounce: "300ms",
		},

		Assets: AssetsConfig{
			CoversDir:    "covers",
			CoverSize:    250,
			CoverColumns: 32,
		},

		UI: UIConfig{
			Title:     "Electronic Music Recommender",
			Width:     75,
			AltScreen: true,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the config path inside a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".musicnerd", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MUSICNERD_RULES"); path != "" {
		c.Rules.Path = path
	}
	if dir := os.Getenv("MUSICNERD_COVERS"); dir != "" {
		c.Assets.CoversDir = dir
	}
	if table := os.Getenv("MUSICNERD_IMAGE_TABLE"); table != "" {
		c.Assets.ImageTable = table
	}
	if os.Getenv("MUSICNERD_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
	if os.Getenv("MUSICNERD_DARK_MODE") == "1" {
		c.UI.DarkMode = true
	}
}

// GetWatchDebounce returns the rules watcher debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Rules.WatchDebounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Rules.Watch && c.Rules.Path == "" {
		return fmt.Errorf("rules.watch requires rules.path")
	}
	if c.Rules.FactLimit < 0 {
		return fmt.Errorf("rules.fact_limit must not be negative")
	}
	if c.Rules.MaxAnswers < 0 {
		return fmt.Errorf("rules.max_answers must not be negative")
	}
	if c.Assets.CoverSize <= 0 {
		return fmt.Errorf("assets.cover_size must be positive")
	}
	if c.Assets.CoverColumns <= 0 {
		return fmt.Errorf("assets.cover_columns must be positive")
	}
	if c.Rules.WatchDebounce != "" {
		if _, err := time.ParseDuration(c.Rules.WatchDebounce); err != nil {
			return fmt.Errorf("invalid rules.watch_debounce: %w", err)
		}
	}
	return nil
}
