package fetch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/danielorbach/go-component"
	"github.com/go-digitaltwin/go-thingmodel"
	"golang.org/x/sync/singleflight"
)

// A Cache memoizes the documents of an underlying Fetcher. Concurrent fetches
// of one reference share a single call to the Fetcher. Failures are not
// cached, so a later Fetch retries them.
//
// A Cache is safe for concurrent use.
type Cache struct {
	fetcher thingmodel.Fetcher
	group   singleflight.Group

	mu   sync.RWMutex
	docs map[string][]byte
}

// NewCache returns an empty Cache in front of f.
func NewCache(f thingmodel.Fetcher) *Cache {
	return &Cache{fetcher: f, docs: make(map[string][]byte)}
}

func (c *Cache) Fetch(ctx context.Context, ref string) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.docs[ref]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, shared := c.group.Do(ref, func() (any, error) {
		data, err := c.fetcher.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.docs[ref] = data
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		component.Logger(ctx).Debug("Shared an in-flight fetch", slog.String("ref", ref))
	}
	return v.([]byte), nil
}

// Cached reports whether the document of ref is cached.
func (c *Cache) Cached(ref string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.docs[ref]
	return ok
}

// Forget evicts the document of ref, e.g. after it changed.
func (c *Cache) Forget(ref string) {
	c.mu.Lock()
	delete(c.docs, ref)
	c.mu.Unlock()
	c.group.Forget(ref)
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
