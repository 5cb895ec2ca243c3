package thingmodel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-thingmodel")
var meter = otel.Meter("github.com/go-digitaltwin/go-thingmodel")

// ---- resolver.go ----

const (
	// rootRefKey is the attribute key associating each record with the root
	// document of the resolution, so that slow or failing models stand out.
	rootRefKey = "thingmodel.ref"
)

var (
	// resolutionDuration measures a single successful Resolve call, including
	// every fetch it performed.
	//
	// Each record is associated with the rootRefKey.
	resolutionDuration metric.Float64Histogram
	// resolutionFailures counts failed Resolve calls.
	//
	// Each record is associated with the rootRefKey.
	resolutionFailures metric.Int64Counter
	// fetchFailures counts documents the Fetcher failed to deliver.
	fetchFailures metric.Int64Counter
	// cyclesDetected counts resolutions aborted on a link cycle.
	cyclesDetected metric.Int64Counter
)

func init() {
	var err error
	resolutionDuration, err = meter.Float64Histogram(
		"thingmodel.resolution.duration",
		metric.WithDescription("The duration of a single Thing Model resolution, including the fetch of every linked document."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("thingmodel: failed to init 'thingmodel.resolution.duration' instrument")
	}

	resolutionFailures, err = meter.Int64Counter(
		"thingmodel.resolution.failures",
		metric.WithDescription("The number of Thing Model resolutions that have failed."),
	)
	if err != nil {
		panic("thingmodel: failed to init 'thingmodel.resolution.failures' instrument")
	}

	fetchFailures, err = meter.Int64Counter(
		"thingmodel.fetch.failures",
		metric.WithDescription("The number of Thing Model documents that could not be fetched."),
	)
	if err != nil {
		panic("thingmodel: failed to init 'thingmodel.fetch.failures' instrument")
	}

	cyclesDetected, err = meter.Int64Counter(
		"thingmodel.resolution.cycles",
		metric.WithDescription("The number of resolutions aborted because a model reached itself through its links."),
	)
	if err != nil {
		panic("thingmodel: failed to init 'thingmodel.resolution.cycles' instrument")
	}
}

// measureResolution records the duration of a successful resolution, or counts
// a failed one. Records are labelled with the root document's reference.
func measureResolution(ctx context.Context, root string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(rootRefKey, root))
	if succeeded {
		// Floating-point division keeps sub-millisecond precision.
		duration := float64(d) / float64(time.Millisecond)
		resolutionDuration.Record(ctx, duration, metric.WithAttributeSet(attrs))
	} else {
		resolutionFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
