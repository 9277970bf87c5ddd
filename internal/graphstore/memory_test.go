package graphstore

import (
	"context"
	"testing"

	"contractrisk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertNode(ctx, model.Node{ID: "n1", Name: "Acme Corp", Labels: []string{"Party"}}))
	require.NoError(t, s.UpsertNode(ctx, model.Node{ID: "n2", Name: "Widget Co", Labels: []string{"Party"}}))
	require.NoError(t, s.UpsertPassage(ctx, model.Passage{ID: "p1", Text: "Acme Corp shall indemnify Widget Co.", SourceID: "doc1", Position: 0}))
	require.NoError(t, s.UpsertPassage(ctx, model.Passage{ID: "p2", Text: "Termination for convenience requires 30 days notice.", SourceID: "doc1", Position: 1}))
	require.NoError(t, s.UpsertConcept(ctx, model.Concept{ID: "c1", Text: "indemnification"}))
	require.NoError(t, s.UpsertRelation(ctx, model.Relation{SourceID: "p1", TargetID: "n1", Type: model.EdgeMentions}))
	require.NoError(t, s.UpsertRelation(ctx, model.Relation{SourceID: "n1", TargetID: "n2", Type: model.EdgeRelates}))
	require.NoError(t, s.UpsertRelation(ctx, model.Relation{SourceID: "n1", TargetID: "c1", Type: model.EdgeHasConcept}))
	return s
}

func TestMemoryStore_FulltextPassageSearch(t *testing.T) {
	s := seedStore(t)
	res, err := s.FulltextPassageSearch(context.Background(), "indemnify", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "p1", res[0].ID)
}

func TestMemoryStore_Neighbors_CapsDepthAtTwo(t *testing.T) {
	s := seedStore(t)
	neighbors, err := s.Neighbors(context.Background(), "n1", 100, "")
	require.NoError(t, err)

	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	assert.Contains(t, ids, "n2")
}

func TestMemoryStore_PassageByID(t *testing.T) {
	s := seedStore(t)
	p, ok, err := s.PassageByID(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc1", p.SourceID)

	_, ok, err = s.PassageByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ConceptsForText(t *testing.T) {
	s := seedStore(t)
	concepts, err := s.ConceptsForText(context.Background(), "acme corp")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "c1", concepts[0].ID)
}

func TestMemoryStore_PassagesForConcept(t *testing.T) {
	s := seedStore(t)
	passages, err := s.PassagesForConcept(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "p1", passages[0].ID)
}

func TestMemoryStore_PassagesForConcept_UnknownConceptReturnsEmpty(t *testing.T) {
	s := seedStore(t)
	passages, err := s.PassagesForConcept(context.Background(), "missing-concept")
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestMemoryStore_PassagesForNode(t *testing.T) {
	s := seedStore(t)
	passages, err := s.PassagesForNode(context.Background(), "n1")
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "p1", passages[0].ID)
}

func TestMemoryStore_Stats(t *testing.T) {
	s := seedStore(t)
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 2, stats.Passages)
	assert.Equal(t, 1, stats.Concepts)
	assert.Equal(t, 3, stats.Edges)
}
