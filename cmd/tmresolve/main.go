// Command tmresolve resolves a Thing Model and prints its effective model,
// named types and twin paths as JSON.
//
// Usage:
//
//	tmresolve [-config file] [-generation-strategy inline|separate] [-publish] ref
//
// Documents are read from the bucket named in the configuration; ref is a
// reference under source.base_url, or a key of the bucket. The settings in
// config.Overrides have flags of the same name, and every flag may also be
// given as a TMRESOLVE_* environment variable, e.g. TMRESOLVE_CATALOG_PASSWORD.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/danielorbach/go-component"
	"github.com/go-digitaltwin/go-thingmodel"
	"github.com/go-digitaltwin/go-thingmodel/fetch"
	"github.com/go-digitaltwin/go-thingmodel/internal/config"
	"github.com/go-digitaltwin/go-thingmodel/neo4jcatalog"
	"github.com/go-digitaltwin/go-thingmodel/typeresolve"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/peterbourgon/ff/v3"
)

// bucketBase prefixes bare bucket keys, so that relative links between
// documents resolve like URLs.
const bucketBase = "bucket:///"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "tmresolve:", err)
		}
		os.Exit(1)
	}
}

// run executes the command. A nil logs writer selects the configured output.
func run(ctx context.Context, args []string, stdout, logs io.Writer) error {
	fs := flag.NewFlagSet("tmresolve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path of the YAML configuration file")
	publish := fs.Bool("publish", false, "publish the model lineage to the catalog, overriding catalog.enabled")
	for _, key := range config.Overrides {
		fs.String(key, "", "overrides "+settingName(key))
	}
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("TMRESOLVE")); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one model reference, got %d", fs.NArg())
	}
	ref := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// Visit sees flags given on the command line or by the environment.
	fs.Visit(func(f *flag.Flag) {
		if err == nil && slices.Contains(config.Overrides, f.Name) {
			err = cfg.Set(f.Name, f.Value.String())
		}
	})
	if err != nil {
		return err
	}
	if *publish {
		cfg.Catalog.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s, _ := cfg.Strategy()

	logger := config.NewLogger(cfg.Logging, logs).With(slog.String("command", "tmresolve"))
	ctx = component.InjectLogger(ctx, logger)

	bucket, err := fetch.OpenBucket(ctx, cfg.Source.BucketURL)
	if err != nil {
		return err
	}
	defer func() { _ = bucket.Close() }()

	if cfg.Source.BaseURL == "" {
		ref = bucketBase + ref
		cfg.Source.BaseURL = bucketBase
	}
	docs := fetch.NewCache(&fetch.BlobFetcher{Bucket: bucket, Base: cfg.Source.BaseURL})
	if cfg.Resolver.Prefetch {
		warmed, err := fetch.Warm(ctx, docs, ref)
		if err != nil {
			return err
		}
		logger.Debug("Warmed document cache", slog.Int("documents", len(warmed)))
	}

	resolver := &thingmodel.Resolver{
		Fetcher:         docs,
		Placeholders:    cfg.Resolver.Placeholders,
		StrictOverrides: cfg.Resolver.StrictOverrides,
	}
	eff, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	res, err := typeresolve.Run(ctx, eff, s)
	if err != nil {
		return err
	}

	if cfg.Catalog.Enabled {
		if err := publishLineage(ctx, cfg.Catalog, eff); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(newReport(eff, res))
}

// settingName maps a flag name such as "source-bucket-url" to the YAML setting
// it overrides, "source.bucket_url".
func settingName(key string) string {
	section, name, _ := strings.Cut(key, "-")
	return section + "." + strings.ReplaceAll(name, "-", "_")
}

func publishLineage(ctx context.Context, cfg config.CatalogConfig, eff *thingmodel.Effective) error {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = driver.Close(ctx) }()

	if err := neo4jcatalog.Bootstrap(ctx, driver, cfg.Database); err != nil {
		return fmt.Errorf("bootstrap catalog: %w", err)
	}
	return neo4jcatalog.New(driver, cfg.Database).Publish(ctx, eff)
}
