package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all align configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	LLM         LLMConfig         `yaml:"llm"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	Provider     string `yaml:"provider"` // "claude-cli", "anthropic", "ollama"
	Model        string `yaml:"model"`
	OllamaURL    string `yaml:"ollama_url"`
	OllamaModel  string `yaml:"ollama_model"`
	AnthropicKey string `yaml:"anthropic_key"`
	Timeout      int    `yaml:"timeout"` // seconds per inference call
}

// ScoringConfig is the category registry plus the engine constants that go with it.
type ScoringConfig struct {
	TimeZone        string           `yaml:"time_zone"`
	DecayFactor     float64          `yaml:"decay_factor"`
	Categories      []CategoryConfig `yaml:"categories"`
	CoreLevers      []string         `yaml:"core_levers"` // tie-break order
	DefaultPriority string           `yaml:"default_priority"`
}

type CategoryConfig struct {
	ID          string   `yaml:"id"`
	Unit        string   `yaml:"unit"`
	Description string   `yaml:"description"`
	Target      float64  `yaml:"target"` // 0 means 1.0
	Weight      float64  `yaml:"weight"`
	DerivedFrom []string `yaml:"derived_from,omitempty"`
}

type MaintenanceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // robfig/cron expression
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "claude-cli",
			Model:    "haiku",
			Timeout:  60,
		},
		Scoring:     DefaultScoring(),
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "@daily",
		},
	}
}

// DefaultScoring returns the reference category registry.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		TimeZone:    "UTC",
		DecayFactor: 0.9,
		Categories: []CategoryConfig{
			{ID: "sleep", Unit: "hours", Description: "hours slept last night", Target: 8},
			{ID: "movement", Unit: "minutes", Description: "minutes of exercise or walking", Target: 30},
			{ID: "nutrition", Unit: "rating", Description: "quality of eating today, 0 (poor) to 1 (great)", Target: 1},
			{ID: "vitality", Unit: "composite", Description: "overall physical energy", Target: 1, Weight: 0.35,
				DerivedFrom: []string{"sleep", "movement", "nutrition"}},
			{ID: "mindfulness", Unit: "minutes", Description: "minutes of meditation, journaling or reflection", Target: 15, Weight: 0.20},
			{ID: "connection", Unit: "interactions", Description: "meaningful conversations with other people", Target: 3, Weight: 0.20},
			{ID: "focus", Unit: "minutes", Description: "minutes of uninterrupted deep work", Target: 120, Weight: 0.15},
			{ID: "savings", Unit: "currency", Description: "money set aside or not spent on impulse", Target: 20, Weight: 0.10},
		},
		CoreLevers:      []string{"vitality", "mindfulness", "connection"},
		DefaultPriority: "vitality",
	}
}

// DefaultPath returns the default config path: ~/.align/align.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".align", "align.yaml"), nil
}

// Load reads the YAML file at path over Default() and applies env overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	default:
		// A categories list in the file replaces the reference set wholesale.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.AnthropicKey = key
	}
	if p := os.Getenv("ALIGN_DB"); p != "" {
		cfg.Database.Path = p
	}
	if tz := os.Getenv("ALIGN_TZ"); tz != "" {
		cfg.Scoring.TimeZone = tz
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
