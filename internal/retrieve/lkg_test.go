package retrieve

import (
	"context"
	"testing"

	"contractrisk/internal/graphstore"
	"contractrisk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedGraph(t *testing.T) *graphstore.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := graphstore.NewMemoryStore()

	require.NoError(t, s.UpsertNode(ctx, model.Node{ID: "n-termination", Name: "Termination", Labels: []string{"Clause"}}))
	require.NoError(t, s.UpsertPassage(ctx, model.Passage{ID: "p1", Text: "Either party may terminate this agreement for convenience upon 30 days written notice.", SourceID: "doc1", Position: 0}))
	require.NoError(t, s.UpsertPassage(ctx, model.Passage{ID: "p2", Text: "This agreement shall remain in effect for a term of three years.", SourceID: "doc1", Position: 1}))
	require.NoError(t, s.UpsertRelation(ctx, model.Relation{SourceID: "p1", TargetID: "n-termination", Type: model.EdgeMentions}))
	return s
}

func TestLKGRetriever_Search_RanksTextMatchesFirst(t *testing.T) {
	store := seedGraph(t)
	r := NewLKGRetriever(store, 10)

	results, err := r.Search(context.Background(), []string{"terminate"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "p1", results[0].Passage.ID)
}

func TestLKGRetriever_Search_EmptySeedsReturnsNothing(t *testing.T) {
	store := seedGraph(t)
	r := NewLKGRetriever(store, 10)

	results, err := r.Search(context.Background(), []string{"", "   "}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLKGRetriever_Search_DeduplicatesSeeds(t *testing.T) {
	store := seedGraph(t)
	r := NewLKGRetriever(store, 10)

	results, err := r.Search(context.Background(), []string{"terminate", "Terminate", " terminate "}, 10)
	require.NoError(t, err)

	ids := make(map[string]int)
	for _, res := range results {
		ids[res.Passage.ID]++
	}
	for id, count := range ids {
		assert.Equal(t, 1, count, "passage %s should appear once", id)
	}
}
