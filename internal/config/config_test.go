package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-digitaltwin/go-thingmodel/typeresolve"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
source:
  bucket_url: "mem://"
  base_url: "https://models.example.com/"
resolver:
  placeholders:
    VENDOR: acme
  strict_overrides: true
generation:
  strategy: inline
logging:
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		Source: SourceConfig{BucketURL: "mem://", BaseURL: "https://models.example.com/"},
		Resolver: ResolverConfig{
			Placeholders:    map[string]string{"VENDOR": "acme"},
			StrictOverrides: true,
			Prefetch:        true,
		},
		Generation: GenerationConfig{Strategy: "inline"},
		Catalog:    CatalogConfig{URI: "neo4j://localhost:7687", Database: "neo4j"},
		Logging:    LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	strategy, err := cfg.Strategy()
	if err != nil || strategy != typeresolve.Inline {
		t.Errorf("Strategy() = %v, %v; want %v", strategy, err, typeresolve.Inline)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(defaultConfig(), cfg); diff != "" {
		t.Errorf("Load(\"\") differs from the defaults (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_IgnoresEnvironment(t *testing.T) {
	t.Setenv("TMRESOLVE_GENERATION_STRATEGY", "inline")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Generation.Strategy != "separate" {
		t.Errorf("Generation.Strategy = %q, want the default %q", cfg.Generation.Strategy, "separate")
	}
}

func TestConfig_Set(t *testing.T) {
	cfg, err := Load(writeConfig(t, "source:\n  bucket_url: file:///srv/models\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, kv := range [][2]string{
		{"source-bucket-url", "mem://"},
		{"source-base-url", "https://models.example.com/"},
		{"generation-strategy", "inline"},
		{"catalog-uri", "neo4j://catalog:7687"},
		{"catalog-username", "neo4j"},
		{"catalog-password", "secret"},
		{"logging-level", "debug"},
	} {
		if err := cfg.Set(kv[0], kv[1]); err != nil {
			t.Fatalf("Set(%q) error = %v", kv[0], err)
		}
	}

	want := defaultConfig()
	want.Source = SourceConfig{BucketURL: "mem://", BaseURL: "https://models.example.com/"}
	want.Generation.Strategy = "inline"
	want.Catalog.URI = "neo4j://catalog:7687"
	want.Catalog.Username = "neo4j"
	want.Catalog.Password = "secret"
	want.Logging.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Set() mismatch (-want +got):\n%s", diff)
	}

	if err := cfg.Set("catalog-enabled", "true"); err == nil {
		t.Error("Set() expected error for an unknown key, got nil")
	}
	for _, key := range Overrides {
		if err := cfg.Set(key, "x"); err != nil {
			t.Errorf("Set(%q) error = %v", key, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty bucket", func(c *Config) { c.Source.BucketURL = "" }, "source.bucket_url"},
		{"unknown strategy", func(c *Config) { c.Generation.Strategy = "shared" }, "generation.strategy"},
		{"catalog without uri", func(c *Config) {
			c.Catalog.Enabled = true
			c.Catalog.URI = ""
		}, "catalog.uri"},
		{"catalog user without password", func(c *Config) {
			c.Catalog.Enabled = true
			c.Catalog.Username = "neo4j"
		}, "catalog.password"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		cfg := defaultConfig()
		tt.modify(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: Validate() = %v, want an error naming %s", tt.name, err, tt.want)
		}
	}

	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("dropped")
	logger.Warn("kept", "ref", "tm://lamp")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("logged %d lines, want 1:\n%s", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("not a JSON record: %v", err)
	}
	if record["msg"] != "kept" || record["ref"] != "tm://lamp" {
		t.Errorf("record = %v", record)
	}
}
