/*
Package dbtest spins up disposable database containers for tests, on top of
testcontainers-go.

Each call to SetupNeo4j gives the calling test its own server and a database
name nobody else uses. Tests that need a specific Neo4j configuration should use
the testcontainers-go modules directly.

Developing locally with Docker, you may want to inspect the graph after a test
failure:

	go test -dbtest.inspect ./neo4jcatalog

This package is intended to be used in tests only.
*/
package dbtest
