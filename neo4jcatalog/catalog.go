package neo4jcatalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/go-digitaltwin/go-thingmodel"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// A Catalog records the link graph of resolved Thing Models in Neo4j: every
// model is a (:ThingModel {ref}) node, connected to its bases by :EXTENDS and
// to its submodels by :SUBMODEL {instanceName} relationships.
//
// The catalog answers which models depend on a given one, so that a change to
// a base model can trigger regeneration of everything built on top of it.
//
// A Catalog is safe for concurrent use.
type Catalog struct {
	driver   neo4j.DriverWithContext
	database string
}

// New returns a Catalog stored in the given, bootstrapped, database.
func New(driver neo4j.DriverWithContext, database string) *Catalog {
	return &Catalog{driver: driver, database: database}
}

// Publish records the lineage of an effective model. The outgoing links of
// every model taking part in the resolution are replaced, so links removed
// from a document disappear from the catalog.
func (c *Catalog) Publish(ctx context.Context, eff *thingmodel.Effective) (err error) {
	ctx, span := tracer.Start(ctx, "Publish", trace.WithAttributes(
		attribute.String("neo4j.database", c.database),
		attribute.String("thingmodel.ref", eff.Ref),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	refs := []string{eff.Ref}
	for _, e := range eff.Lineage {
		refs = append(refs, e.To)
	}
	extends, submodels := splitEdges(eff.Lineage)

	s := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database, AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := s.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "write")
		}
	}()

	_, err = s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			UNWIND $refs AS ref
			MERGE (m:ThingModel {ref: ref})
			WITH m
			OPTIONAL MATCH (m)-[r:EXTENDS|SUBMODEL]->()
			DELETE r
		`, map[string]any{"refs": refs}); err != nil {
			return nil, fmt.Errorf("reset links: %w", err)
		}
		if _, err := tx.Run(ctx, `
			MATCH (m:ThingModel {ref: $ref})
			SET m.title = $title, m.publishedAt = datetime($publishedAt)
		`, map[string]any{
			"ref":         eff.Ref,
			"title":       eff.Title,
			"publishedAt": time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return nil, fmt.Errorf("annotate root: %w", err)
		}
		if _, err := tx.Run(ctx, `
			UNWIND $edges AS e
			MATCH (a:ThingModel {ref: e.from}), (b:ThingModel {ref: e.to})
			MERGE (a)-[:EXTENDS]->(b)
		`, map[string]any{"edges": extends}); err != nil {
			return nil, fmt.Errorf("merge extends links: %w", err)
		}
		if _, err := tx.Run(ctx, `
			UNWIND $edges AS e
			MATCH (a:ThingModel {ref: e.from}), (b:ThingModel {ref: e.to})
			MERGE (a)-[:SUBMODEL {instanceName: e.instanceName}]->(b)
		`, map[string]any{"edges": submodels}); err != nil {
			return nil, fmt.Errorf("merge submodel links: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eff.Ref, err)
	}

	component.Logger(ctx).Debug("Published model lineage",
		slog.String("thingmodel.ref", eff.Ref),
		slog.Int("links", len(eff.Lineage)),
	)
	return nil
}

func splitEdges(lineage []thingmodel.Edge) (extends, submodels []map[string]any) {
	extends, submodels = []map[string]any{}, []map[string]any{}
	for _, e := range lineage {
		m := map[string]any{"from": e.From, "to": e.To, "instanceName": e.InstanceName}
		switch e.Relation {
		case thingmodel.RelationExtends:
			extends = append(extends, m)
		case thingmodel.RelationSubmodel:
			submodels = append(submodels, m)
		}
	}
	return extends, submodels
}

// Dependents returns, in lexical order, the references of every model that
// reaches the given model through one or more links.
func (c *Catalog) Dependents(ctx context.Context, ref string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Dependents", trace.WithAttributes(
		attribute.String("neo4j.database", c.database),
		attribute.String("thingmodel.ref", ref),
	))
	defer span.End()

	return c.readRefs(ctx, `
		MATCH (d:ThingModel)-[:EXTENDS|SUBMODEL*1..]->(:ThingModel {ref: $ref})
		RETURN DISTINCT d.ref AS ref
		ORDER BY ref
	`, ref)
}

// Links returns the lineage edges leaving the given model, ordered by target.
func (c *Catalog) Links(ctx context.Context, ref string) ([]thingmodel.Edge, error) {
	s := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database, AccessMode: neo4j.AccessModeRead})
	defer func() { _ = s.Close(ctx) }()

	edges, err := s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (:ThingModel {ref: $ref})-[r:EXTENDS|SUBMODEL]->(b:ThingModel)
			RETURN type(r) AS rel, b.ref AS target, coalesce(r.instanceName, '') AS instanceName
			ORDER BY target, rel
		`, map[string]any{"ref": ref})
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		edges := make([]thingmodel.Edge, 0, len(records))
		for _, record := range records {
			rel, err := recordValue[string](record, "rel")
			if err != nil {
				return nil, err
			}
			to, err := recordValue[string](record, "target")
			if err != nil {
				return nil, err
			}
			name, err := recordValue[string](record, "instanceName")
			if err != nil {
				return nil, err
			}
			e := thingmodel.Edge{From: ref, To: to, InstanceName: name}
			switch rel {
			case "EXTENDS":
				e.Relation = thingmodel.RelationExtends
			case "SUBMODEL":
				e.Relation = thingmodel.RelationSubmodel
			}
			edges = append(edges, e)
		}
		return edges, nil
	})
	if err != nil {
		return nil, fmt.Errorf("links of %s: %w", ref, err)
	}
	return edges.([]thingmodel.Edge), nil
}

func (c *Catalog) readRefs(ctx context.Context, query, ref string) ([]string, error) {
	s := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database, AccessMode: neo4j.AccessModeRead})
	defer func() {
		if err := s.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "read")
		}
	}()

	refs, err := s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"ref": ref})
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		refs := make([]string, 0, len(records))
		for _, record := range records {
			dependent, err := recordValue[string](record, "ref")
			if err != nil {
				return nil, err
			}
			refs = append(refs, dependent)
		}
		return refs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dependents of %s: %w", ref, err)
	}
	return refs.([]string), nil
}

// recordValue reads a typed value of a result record.
func recordValue[T any](record *neo4j.Record, key string) (value T, err error) {
	v, ok := record.Get(key)
	if !ok {
		return value, fmt.Errorf("record has no %q", key)
	}
	value, ok = v.(T)
	if !ok {
		return value, fmt.Errorf("record %q is a %T, not a %T", key, v, value)
	}
	return value, nil
}
