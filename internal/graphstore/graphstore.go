// Package graphstore implements the typed property graph (§4.1): Passage,
// Node, and Concept vertices connected by RELATES, MENTIONS, and HAS_CONCEPT
// edges, exposing exactly the traversal operations the retrievers need.
package graphstore

import (
	"context"

	"contractrisk/internal/model"
)

// Stats summarizes the store's current contents for operational endpoints.
type Stats struct {
	Nodes    int
	Passages int
	Concepts int
	Edges    int
}

// GraphStore is the read surface the retrievers depend on, plus the write
// surface used by ingestion (external to this module) and by test fixtures.
// Guarantees: read-consistent snapshot per operation; the analyzer never
// calls a write method. Read methods fail with coreerr.ErrStoreUnavailable
// on connection loss; callers retry up to N times with exponential backoff
// starting at 250ms (see internal/retrybackoff).
type GraphStore interface {
	FulltextNodeSearch(ctx context.Context, query string, k int) ([]model.Node, error)
	FulltextPassageSearch(ctx context.Context, query string, k int) ([]model.Passage, error)
	Neighbors(ctx context.Context, nodeID string, depth int, typeFilter string) ([]model.Node, error)
	PassagesForNode(ctx context.Context, nodeID string) ([]model.Passage, error)
	PassageByID(ctx context.Context, id string) (model.Passage, bool, error)
	ConceptsForText(ctx context.Context, text string) ([]model.Concept, error)
	ConceptsByIDs(ctx context.Context, ids []string) ([]model.Concept, error)
	PassagesForConcept(ctx context.Context, conceptID string) ([]model.Passage, error)
	ListDatabases(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)

	// Write surface, exercised by ingestion and by test fixtures that seed a
	// corpus; never called from the analyzer/retrievers.
	UpsertNode(ctx context.Context, n model.Node) error
	UpsertPassage(ctx context.Context, p model.Passage) error
	UpsertConcept(ctx context.Context, c model.Concept) error
	UpsertRelation(ctx context.Context, r model.Relation) error
}
