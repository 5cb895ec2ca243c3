package neo4jcatalog

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/go-digitaltwin/go-thingmodel/neo4jcatalog")
