package typeresolve

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-thingmodel/typeresolve")
var meter = otel.Meter("github.com/go-digitaltwin/go-thingmodel/typeresolve")

const (
	modelRefKey = "thingmodel.ref"
	strategyKey = "typeresolve.strategy"
)

// declaredTypes measures how many named types a run declares, labelled with the
// strategy, to tell how much the shared namespace deduplicates.
var declaredTypes metric.Int64Histogram

func init() {
	var err error
	declaredTypes, err = meter.Int64Histogram(
		"typeresolve.declarations",
		metric.WithDescription("The number of named types declared by a single type resolution run."),
	)
	if err != nil {
		panic("typeresolve: failed to init 'typeresolve.declarations' instrument")
	}
}
