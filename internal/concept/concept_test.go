package concept

import (
	"context"
	"testing"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/embeddingclient"
	"contractrisk/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ReturnsDedupedConceptsWithEmbeddings(t *testing.T) {
	e := New(embeddingclient.NewDeterministic(8, true, 1))
	concepts, err := e.Extract(context.Background(), "Termination for convenience requires termination notice.")
	require.NoError(t, err)
	require.NotEmpty(t, concepts)

	seen := make(map[string]bool)
	for _, c := range concepts {
		key := c.Text
		assert.False(t, seen[key], "concept %q should not repeat", key)
		seen[key] = true
		assert.NotEmpty(t, c.ID)
		assert.NotEmpty(t, c.Embedding)
	}
}

func TestExtract_EmptyInputYieldsNoConcepts(t *testing.T) {
	e := New(embeddingclient.NewDeterministic(8, true, 1))
	concepts, err := e.Extract(context.Background(), "the a an of")
	require.NoError(t, err)
	assert.Empty(t, concepts)
}

func TestExtract_BoundsPhraseLength(t *testing.T) {
	e := New(embeddingclient.NewDeterministic(8, true, 1), WithPhraseLength(1, 1))
	concepts, err := e.Extract(context.Background(), "indemnification clause obligations")
	require.NoError(t, err)
	for _, c := range concepts {
		assert.NotContains(t, c.Text, " ")
	}
}

func TestExtract_GovernorFailureBecomesExtractorBusy(t *testing.T) {
	g := ratelimit.NewGovernor(1, 1)
	e := New(embeddingclient.NewDeterministic(8, true, 1), WithGovernor(g))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, "indemnification clause")
	assert.ErrorIs(t, err, coreerr.ErrExtractorBusy)
}

func TestTokenRuns_BreaksAtStopwords(t *testing.T) {
	runs := tokenRuns("The Company shall indemnify the Vendor for any Loss.")
	var flat [][]string
	for _, r := range runs {
		flat = append(flat, r)
	}
	require.NotEmpty(t, flat)
	for _, run := range flat {
		for _, tok := range run {
			assert.False(t, isStopWord(tokToLower(tok)))
		}
	}
}

func tokToLower(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r + ('a' - 'A')
		}
		out = append(out, r)
	}
	return string(out)
}
