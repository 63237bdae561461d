package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models lodgeline.yml.
type Config struct {
	Store struct {
		Backend   string `yaml:"backend"` // s3 or sqlite
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		Endpoint  string `yaml:"endpoint"`
		Workspace string `yaml:"workspace"`
	} `yaml:"store"`
	Catalog struct {
		Path              string `yaml:"path"`
		ApplicabilityPath string `yaml:"applicability_path"`
	} `yaml:"catalog"`
	History struct {
		Cap int `yaml:"cap"`
	} `yaml:"history"`
	Scoring struct {
		GraceDays   int `yaml:"grace_days"`
		Concurrency int `yaml:"concurrency"`
	} `yaml:"scoring"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Hotels []Hotel `yaml:"hotels"`
}

// Hotel is one property in the portfolio directory.
type Hotel struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "lodgeline.yml")
}

// Load reads config from the workspace, falling back to defaults when
// no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
	case "s3":
		if c.Store.Bucket == "" {
			return fmt.Errorf("config.store.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config.store.backend must be s3 or sqlite")
	}
	if c.History.Cap <= 0 {
		return fmt.Errorf("config.history.cap must be positive")
	}
	if c.Scoring.GraceDays < 0 {
		return fmt.Errorf("config.scoring.grace_days cannot be negative")
	}
	seen := map[string]bool{}
	for _, h := range c.Hotels {
		if h.ID == "" {
			return fmt.Errorf("config.hotels contains an entry without id")
		}
		if seen[h.ID] {
			return fmt.Errorf("duplicate hotel id %s", h.ID)
		}
		seen[h.ID] = true
	}
	return nil
}

// HotelIDs flattens the portfolio directory.
func (c *Config) HotelIDs() []string {
	ids := make([]string, 0, len(c.Hotels))
	for _, h := range c.Hotels {
		ids = append(ids, h.ID)
	}
	return ids
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Store.Backend = "sqlite"
	cfg.Store.Workspace = "."
	cfg.History.Cap = 50
	cfg.Scoring.GraceDays = 30
	cfg.Scoring.Concurrency = 8
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v0"
	return &cfg
}
