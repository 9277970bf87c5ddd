package retrieve

import (
	"context"
	"strings"

	"contractrisk/internal/graphstore"
	"contractrisk/internal/model"
)

// LKGRetriever is the Enhanced LKG Retriever (§4.4): a graph-first retriever
// over full-text node/passage search and one-hop expansion.
type LKGRetriever struct {
	store graphstore.GraphStore
	seedK int // per-seed fulltext search width (k1)
}

// NewLKGRetriever constructs a retriever over store. seedK is the per-seed
// full-text search width (k1); 0 selects a sensible default.
func NewLKGRetriever(store graphstore.GraphStore, seedK int) *LKGRetriever {
	if seedK <= 0 {
		seedK = 10
	}
	return &LKGRetriever{store: store, seedK: seedK}
}

type candidate struct {
	passage     model.Passage
	textScore   float64
	hop         int
	seedMatches int
}

// Search extracts seed terms from seeds (the raw query plus, when the
// caller supplies them, extracted concept texts), resolves them against the
// graph, expands one hop, and returns the top-N passages ranked by a
// weighted combination of text-index score, graph-distance boost, and
// seed/concept overlap count.
func (r *LKGRetriever) Search(ctx context.Context, seeds []string, topN int) ([]ScoredPassage, error) {
	if topN <= 0 {
		topN = 15
	}
	seeds = dedupeNonEmpty(seeds)
	if len(seeds) == 0 {
		return nil, nil
	}

	byID := make(map[string]*candidate)
	upsert := func(p model.Passage, textScore float64, hop int, seed string) {
		c, ok := byID[p.ID]
		if !ok {
			c = &candidate{passage: p, hop: hop}
			byID[p.ID] = c
		}
		if textScore > c.textScore {
			c.textScore = textScore
		}
		if hop < c.hop {
			c.hop = hop
		}
		if strings.Contains(strings.ToLower(p.Text), strings.ToLower(seed)) {
			c.seedMatches++
		}
	}

	for _, seed := range seeds {
		nodes, err := r.store.FulltextNodeSearch(ctx, seed, r.seedK)
		if err != nil {
			return nil, err
		}
		passages, err := r.store.FulltextPassageSearch(ctx, seed, r.seedK)
		if err != nil {
			return nil, err
		}
		for rank, p := range passages {
			upsert(p, normalizeRank(rank, len(passages)), 0, seed)
		}
		for _, n := range nodes {
			neighbors, err := r.store.Neighbors(ctx, n.ID, 1, "")
			if err != nil {
				return nil, err
			}
			for _, neighbor := range neighbors {
				linked, err := r.store.PassagesForNode(ctx, neighbor.ID)
				if err != nil {
					return nil, err
				}
				for rank, p := range linked {
					upsert(p, normalizeRank(rank, len(linked)), 1, seed)
				}
			}
			own, err := r.store.PassagesForNode(ctx, n.ID)
			if err != nil {
				return nil, err
			}
			for rank, p := range own {
				upsert(p, normalizeRank(rank, len(own)), 0, seed)
			}
		}
	}

	out := make([]ScoredPassage, 0, len(byID))
	for _, c := range byID {
		score := 0.6*c.textScore + 0.3*(1.0/float64(1+c.hop)) + 0.1*float64(c.seedMatches)
		out = append(out, ScoredPassage{Passage: c.passage, Score: score})
	}
	sortByScoreThenID(out)
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// normalizeRank converts a 0-based result rank into a (0,1] score, highest
// for rank 0.
func normalizeRank(rank, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(rank)/float64(total)
}

func dedupeNonEmpty(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
