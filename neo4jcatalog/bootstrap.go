package neo4jcatalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrReservedDatabase is returned for database names Neo4j reserves for
// internal use.
var ErrReservedDatabase = errors.New("reserved database name")

// Bootstrap prepares the given database to hold a catalog. It creates the
// database unless it is the default "neo4j" database, which requires the
// enterprise edition, and constrains model references to be unique so that
// concurrent publications never duplicate a model.
//
// This function is idempotent.
func Bootstrap(ctx context.Context, d neo4j.DriverWithContext, database string) error {
	if database != "neo4j" {
		if err := createDatabase(ctx, d, database); err != nil {
			return fmt.Errorf("create database: %w", err)
		}
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database, AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = s.Close(ctx) }()

	_, err := s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			CREATE CONSTRAINT thingmodel_ref IF NOT EXISTS
			FOR (m:ThingModel)
			REQUIRE m.ref IS UNIQUE
		`, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("create constraints: %w", err)
	}
	return s.Close(ctx)
}

func createDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if name == "" || strings.HasPrefix(name, "system") || strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: %q", ErrReservedDatabase, name)
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = s.Close(ctx) }()

	_, err := s.Run(ctx, `CREATE DATABASE $name IF NOT EXISTS WAIT`, map[string]any{
		"name": name,
	})
	return err
}
