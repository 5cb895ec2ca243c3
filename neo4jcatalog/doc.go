// Package neo4jcatalog keeps the link graph of resolved Thing Models in Neo4j,
// so that the models affected by a change can be found without refetching
// every document.
package neo4jcatalog
