package fetch

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-thingmodel/fetch")
var meter = otel.Meter("github.com/go-digitaltwin/go-thingmodel/fetch")

// prefetchedDocuments counts the documents warmed into caches.
var prefetchedDocuments metric.Int64Counter

func init() {
	var err error
	prefetchedDocuments, err = meter.Int64Counter(
		"thingmodel.prefetch.documents",
		metric.WithDescription("The number of Thing Model documents warmed into a cache ahead of resolution."),
	)
	if err != nil {
		panic("fetch: failed to init 'thingmodel.prefetch.documents' instrument")
	}
}
