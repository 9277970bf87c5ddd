package retrieve

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"contractrisk/internal/embeddingclient"
	"contractrisk/internal/graphstore"
	"contractrisk/internal/llmclient"
	"contractrisk/internal/vectorindex"
)

// Reranker scores a (query, passage) pair; higher is more relevant. Scores
// must be monotone in relevance but need not be bounded or calibrated
// across rerankers.
type Reranker interface {
	Score(ctx context.Context, query string, passage string) (float64, error)
}

// NoopReranker always scores 0, which HippoRetriever treats as "keep the
// vector-index score"; used when no LLM reranking pass is configured.
type NoopReranker struct{}

func (NoopReranker) Score(_ context.Context, _ string, _ string) (float64, error) { return 0, nil }

// LLMReranker scores relevance via a single-shot LLM prompt asking for an
// integer 0-10 relevance score.
type LLMReranker struct {
	Provider llmclient.Provider
	Model    string
}

func (l *LLMReranker) Score(ctx context.Context, query string, passage string) (float64, error) {
	resp, err := l.Provider.Chat(ctx, llmclient.Request{
		Model: l.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: "You score how relevant a passage is to a query on an integer scale from 0 (irrelevant) to 10 (directly answers the query). Respond with only the integer."},
			{Role: "user", Content: fmt.Sprintf("Query: %s\n\nPassage: %s", query, passage)},
		},
		MaxTokens: 8,
	})
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(resp.Content)
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("llmreranker: non-integer score %q: %w", text, err)
	}
	return float64(n) / 10.0, nil
}

// HippoRetriever is the HiPPO Retriever (§4.5): dense retrieval over the
// Vector Index with a second-pass reranker.
type HippoRetriever struct {
	index    vectorindex.VectorIndex
	store    graphstore.GraphStore
	embedder embeddingclient.Embedder
	reranker Reranker
}

// NewHippoRetriever constructs a HiPPO retriever. reranker may be
// NoopReranker{} to skip the second pass.
func NewHippoRetriever(index vectorindex.VectorIndex, store graphstore.GraphStore, embedder embeddingclient.Embedder, reranker Reranker) *HippoRetriever {
	if reranker == nil {
		reranker = NoopReranker{}
	}
	return &HippoRetriever{index: index, store: store, embedder: embedder, reranker: reranker}
}

// Search embeds query, searches the Vector Index for top-k passage ids,
// resolves them to Passage records, and reranks.
func (h *HippoRetriever) Search(ctx context.Context, query string, k int) ([]ScoredPassage, error) {
	if k <= 0 {
		k = 15
	}
	vecs, err := h.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	hits, err := h.index.Search(ctx, vecs[0], k, map[string]string{"kind": "passage"})
	if err != nil {
		return nil, err
	}
	return h.rerank(ctx, query, hits)
}

func (h *HippoRetriever) rerank(ctx context.Context, query string, hits []vectorindex.Result) ([]ScoredPassage, error) {
	out := make([]ScoredPassage, 0, len(hits))
	for _, hit := range hits {
		passage, ok, err := h.store.PassageByID(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		score := hit.Score
		if rerankScore, err := h.reranker.Score(ctx, query, passage.Text); err == nil && rerankScore != 0 {
			score = rerankScore
		}
		out = append(out, ScoredPassage{Passage: passage, Score: score})
	}
	sortByScoreThenID(out)
	return out, nil
}
