package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // Register the file:// bucket opener.
	_ "gocloud.dev/blob/memblob"  // Register the mem:// bucket opener.
	"gocloud.dev/gcerrors"
)

// ErrNotFound is returned by BlobFetcher when no document is stored under the
// key of a reference.
var ErrNotFound = errors.New("thing model not found")

// OpenBucket opens the bucket at the given URL, e.g. "file:///srv/models" or
// "mem://". Only the file and mem schemes are linked in; programs link further
// drivers (s3blob, gcsblob, ...) with a blank import.
func OpenBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return b, nil
}

// A BlobFetcher reads Thing Model documents from a bucket. References are
// mapped to object keys by trimming Base from them; references outside Base
// map to the host and path of their URL.
//
// For example, with Base "https://models.example/", the reference
// "https://models.example/lamps/lamp.tm.json" reads the key
// "lamps/lamp.tm.json".
type BlobFetcher struct {
	Bucket *blob.Bucket
	Base   string
}

func (f *BlobFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key, err := f.Key(ref)
	if err != nil {
		return nil, err
	}
	data, err := f.Bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: key %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read key %s: %w", key, err)
	}
	return data, nil
}

// Key returns the object key a reference maps to.
func (f *BlobFetcher) Key(ref string) (string, error) {
	ref, _, _ = strings.Cut(ref, "#")
	if f.Base != "" && strings.HasPrefix(ref, f.Base) {
		return strings.TrimPrefix(strings.TrimPrefix(ref, f.Base), "/"), nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	key := strings.TrimPrefix(u.Host+u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("reference %q maps to no key", ref)
	}
	return key, nil
}
