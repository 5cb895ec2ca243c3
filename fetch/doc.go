// Package fetch provides thingmodel.Fetcher implementations: a BlobFetcher
// reading documents from gocloud.dev buckets, and a Cache that memoizes any
// Fetcher and can be warmed concurrently ahead of a resolution.
package fetch
