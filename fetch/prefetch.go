package fetch

import (
	"context"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/go-digitaltwin/go-thingmodel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// concurrency bounds the fetches Prefetch runs at once.
const concurrency = 8

// Prefetch fetches the given references into the cache concurrently. It
// returns the first fetch error, after the remaining fetches are cancelled.
func Prefetch(ctx context.Context, c *Cache, refs ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, ref := range refs {
		g.Go(func() error {
			_, err := c.Fetch(ctx, ref)
			return err
		})
	}
	return g.Wait()
}

// Warm fetches the document of root and, breadth-first, every document it
// depends on, so that a later resolution through the cache never blocks on the
// network. Each level of the dependency graph is fetched concurrently. It
// returns the references it fetched.
//
// Documents that do not decode are cached but not followed; the resolution
// reports them.
func Warm(ctx context.Context, c *Cache, root string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Warm", trace.WithAttributes(
		attribute.String("thingmodel.ref", root),
	))
	defer span.End()

	logger := component.Logger(ctx)
	seen := map[string]bool{root: true}
	visited := []string{root}
	level := []string{root}
	for len(level) > 0 {
		if err := Prefetch(ctx, c, level...); err != nil {
			return visited, err
		}

		var next []string
		for _, ref := range level {
			data, err := c.Fetch(ctx, ref)
			if err != nil {
				return visited, err
			}
			doc, err := thingmodel.Decode(data)
			if err != nil {
				logger.Warn("Skipping dependencies of an undecodable document", slog.String("ref", ref), slog.Any("error", err))
				continue
			}
			deps, err := doc.Dependencies(ref)
			if err != nil {
				logger.Warn("Skipping dependencies of a document with invalid links", slog.String("ref", ref), slog.Any("error", err))
				continue
			}
			for _, dep := range deps {
				if !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
					visited = append(visited, dep)
				}
			}
		}
		level = next
	}

	prefetchedDocuments.Add(ctx, int64(len(visited)))
	return visited, nil
}
