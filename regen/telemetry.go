package regen

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-thingmodel/regen")
var meter = otel.Meter("github.com/go-digitaltwin/go-thingmodel/regen")

// triggerKey labels records with the model whose change triggered them.
const triggerKey = "regen.trigger"

var (
	// regenerationDuration measures the handling of one ModelChanged message,
	// across every run it caused.
	regenerationDuration metric.Float64Histogram
	// regenerationFailures counts ModelChanged messages that could not be
	// handled.
	regenerationFailures metric.Int64Counter
)

func init() {
	var err error
	regenerationDuration, err = meter.Float64Histogram(
		"modelChanged.regeneration.duration",
		metric.WithDescription("The duration of handling a single ModelChanged message, including every generation run it caused."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("regen: failed to init 'modelChanged.regeneration.duration' instrument")
	}

	regenerationFailures, err = meter.Int64Counter(
		"modelChanged.regeneration.failures",
		metric.WithDescription("The number of ModelChanged messages that could not be handled."),
	)
	if err != nil {
		panic("regen: failed to init 'modelChanged.regeneration.failures' instrument")
	}
}

func measureRegeneration(ctx context.Context, trigger string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(triggerKey, trigger))
	if succeeded {
		regenerationDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributeSet(attrs))
	} else {
		regenerationFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
