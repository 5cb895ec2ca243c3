// Package config loads the configuration of the tmresolve command from YAML
// over defaults. Individual settings are overridden with Set.
//
// Example configuration:
//
//	source:
//	  bucket_url: "file:///srv/models"
//	  base_url: "https://models.example.com/"
//	resolver:
//	  placeholders:
//	    VENDOR: "acme"
//	  strict_overrides: true
//	  prefetch: true
//	generation:
//	  strategy: "separate"
//	catalog:
//	  enabled: true
//	  uri: "neo4j://localhost:7687"
//	  database: "thingmodels"
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-digitaltwin/go-thingmodel/typeresolve"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of the tmresolve command.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Generation GenerationConfig `yaml:"generation"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SourceConfig locates the Thing Model documents.
type SourceConfig struct {
	// BucketURL opens the bucket holding the documents, e.g. "file:///srv/models"
	// or "mem://".
	BucketURL string `yaml:"bucket_url"`
	// BaseURL is the reference prefix mapped onto the bucket root. References
	// outside it map to "host/path" keys.
	BaseURL string `yaml:"base_url"`
}

// ResolverConfig tunes model resolution.
type ResolverConfig struct {
	Placeholders    map[string]string `yaml:"placeholders"`
	StrictOverrides bool              `yaml:"strict_overrides"`
	// Prefetch warms the document cache concurrently before resolving.
	Prefetch bool `yaml:"prefetch"`
}

// GenerationConfig tunes type resolution.
type GenerationConfig struct {
	// Strategy is "inline" or "separate".
	Strategy string `yaml:"strategy"`
}

// CatalogConfig connects to the Neo4j model catalog.
type CatalogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr
}

// Load reads the configuration from the YAML file at path over the defaults.
// An empty path skips the file. Callers apply their overrides with Set and
// then Validate the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BucketURL: "file://.",
		},
		Resolver: ResolverConfig{
			Prefetch: true,
		},
		Generation: GenerationConfig{
			Strategy: typeresolve.Separate.String(),
		},
		Catalog: CatalogConfig{
			URI:      "neo4j://localhost:7687",
			Database: "neo4j",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Overrides lists the keys accepted by Set. The command binds each to a flag
// of the same name, and so to a TMRESOLVE_* environment variable.
var Overrides = []string{
	"source-bucket-url",
	"source-base-url",
	"generation-strategy",
	"catalog-uri",
	"catalog-username",
	"catalog-password",
	"logging-level",
}

// Set overrides the setting named by key, one of Overrides.
func (c *Config) Set(key, value string) error {
	switch key {
	case "source-bucket-url":
		c.Source.BucketURL = value
	case "source-base-url":
		c.Source.BaseURL = value
	case "generation-strategy":
		c.Generation.Strategy = value
	case "catalog-uri":
		c.Catalog.URI = value
	case "catalog-username":
		c.Catalog.Username = value
	case "catalog-password":
		c.Catalog.Password = value
	case "logging-level":
		c.Logging.Level = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Source.BucketURL == "" {
		errs = append(errs, "source.bucket_url is required")
	}
	if _, err := c.Strategy(); err != nil {
		errs = append(errs, "generation.strategy must be inline or separate")
	}
	if c.Catalog.Enabled {
		if c.Catalog.URI == "" {
			errs = append(errs, "catalog.uri is required when the catalog is enabled")
		}
		if c.Catalog.Database == "" {
			errs = append(errs, "catalog.database is required when the catalog is enabled")
		}
		if c.Catalog.Username != "" && c.Catalog.Password == "" {
			errs = append(errs, "catalog.password is required with catalog.username (set -catalog-password or TMRESOLVE_CATALOG_PASSWORD)")
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Strategy returns the parsed type registration strategy.
func (c *Config) Strategy() (typeresolve.Strategy, error) {
	return typeresolve.ParseStrategy(c.Generation.Strategy)
}
