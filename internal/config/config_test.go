package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.History.Cap != 50 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	yml := `store:
  backend: s3
  bucket: compliance-docs
  region: eu-west-2
history:
  cap: 25
hotels:
  - id: h1
    name: Harbour View
  - id: h2
    name: Old Mill
`
	if err := os.WriteFile(filepath.Join(dir, "lodgeline.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Backend != "s3" || cfg.Store.Bucket != "compliance-docs" {
		t.Fatalf("store not loaded: %+v", cfg.Store)
	}
	if cfg.History.Cap != 25 {
		t.Fatalf("cap not loaded: %d", cfg.History.Cap)
	}
	// Unset fields keep defaults.
	if cfg.Scoring.GraceDays != 30 || cfg.Server.BasePath != "/v0" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if ids := cfg.HotelIDs(); len(ids) != 2 || ids[0] != "h1" {
		t.Fatalf("hotels not loaded: %v", ids)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"unknown backend":   func(c *Config) { c.Store.Backend = "gcs" },
		"s3 without bucket": func(c *Config) { c.Store.Backend = "s3"; c.Store.Bucket = "" },
		"zero cap":          func(c *Config) { c.History.Cap = 0 },
		"duplicate hotels": func(c *Config) {
			c.Hotels = []Hotel{{ID: "h1"}, {ID: "h1"}}
		},
		"hotel without id": func(c *Config) {
			c.Hotels = []Hotel{{Name: "Nameless"}}
		},
	} {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
