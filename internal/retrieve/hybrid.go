package retrieve

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"contractrisk/internal/concept"
	"contractrisk/internal/coreerr"
	"contractrisk/internal/graphstore"
	"contractrisk/internal/metrics"
	"contractrisk/internal/model"
	"contractrisk/internal/vectorindex"

	"golang.org/x/sync/errgroup"
)

// Weights are the four fusion weights w_g, w_c, w_e, w_h from §4.6, applied
// to graph, concept, concept-expansion, and HiPPO signals respectively.
type Weights struct {
	Graph         float64
	Concept       float64
	ConceptExpand float64
	Hippo         float64
}

// DefaultWeights is the §9 default (0.3, 0.25, 0.15, 0.3).
func DefaultWeights() Weights {
	return Weights{Graph: 0.3, Concept: 0.25, ConceptExpand: 0.15, Hippo: 0.3}
}

// HybridRetriever is the Concept-Enhanced Hybrid Retriever (§4.6): fuses
// direct graph search, concept matching, concept-expansion via graph
// neighbors, and HiPPO dense retrieval.
type HybridRetriever struct {
	lkg       *LKGRetriever
	hippo     *HippoRetriever
	extractor *concept.Extractor
	store     graphstore.GraphStore
	vectors   vectorindex.VectorIndex
	weights   Weights
	metrics   metrics.Metrics
}

// NewHybridRetriever wires the four sub-retrievers and the fusion weights.
func NewHybridRetriever(lkg *LKGRetriever, hippo *HippoRetriever, extractor *concept.Extractor, store graphstore.GraphStore, vectors vectorindex.VectorIndex, weights Weights) *HybridRetriever {
	return &HybridRetriever{lkg: lkg, hippo: hippo, extractor: extractor, store: store, vectors: vectors, weights: weights, metrics: metrics.Noop{}}
}

// WithMetrics sets the Metrics sink sub-retriever hit counts and fusion
// latency are reported to, replacing the default no-op.
func (h *HybridRetriever) WithMetrics(m metrics.Metrics) *HybridRetriever {
	if m != nil {
		h.metrics = m
	}
	return h
}

type sourceScore struct {
	graph, concept, expand, hippo float64
	present                       [4]bool
}

// Retrieve runs the graph, concept and HiPPO sub-retrievals concurrently,
// then concept expansion over the extracted concepts, fuses by weighted
// sum normalized over the signals actually present for each passage, and
// returns the top topN by fused score (ties by ascending passage id).
// Requires at least one sub-retriever to succeed; otherwise returns
// coreerr.ErrRetrievalUnavailable.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, topN int) (HybridResult, error) {
	if topN <= 0 {
		topN = 15
	}
	started := time.Now()

	var (
		mu         sync.Mutex
		byID       = make(map[string]model.Passage)
		scores     = make(map[string]*sourceScore)
		graphHits  int
		conceptHits int
		hippoHits  int
		expandHits int
		successes  int
	)
	record := func(idx int, items []ScoredPassage) {
		mu.Lock()
		defer mu.Unlock()
		successes++
		for _, item := range items {
			byID[item.Passage.ID] = item.Passage
			s, ok := scores[item.Passage.ID]
			if !ok {
				s = &sourceScore{}
				scores[item.Passage.ID] = s
			}
			switch idx {
			case 0:
				s.graph = math.Max(s.graph, item.Score)
				s.present[0] = true
			case 1:
				s.concept = math.Max(s.concept, item.Score)
				s.present[1] = true
			case 2:
				s.expand = math.Max(s.expand, item.Score)
				s.present[2] = true
			case 3:
				s.hippo = math.Max(s.hippo, item.Score)
				s.present[3] = true
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := h.lkg.Search(gctx, []string{query}, topN)
		if err != nil {
			return nil // logged by caller; sub-retriever failure tolerated
		}
		graphHits = len(items)
		record(0, items)
		return nil
	})

	var concepts []model.Concept
	g.Go(func() error {
		extracted, err := h.extractor.Extract(gctx, query)
		if err != nil {
			return nil
		}
		mu.Lock()
		concepts = extracted
		mu.Unlock()

		if len(extracted) == 0 {
			return nil
		}
		perConceptK := topN / len(extracted)
		if perConceptK <= 0 {
			perConceptK = 1
		}
		var all []ScoredPassage
		for _, c := range extracted {
			items, err := h.lkg.Search(gctx, []string{c.Text}, perConceptK)
			if err != nil {
				continue
			}
			all = append(all, items...)
		}
		conceptHits = len(all)
		record(1, all)
		return nil
	})

	g.Go(func() error {
		items, err := h.hippo.Search(gctx, query, topN)
		if err != nil {
			return nil
		}
		hippoHits = len(items)
		record(3, items)
		return nil
	})

	_ = g.Wait()

	// Concept expansion runs after concepts are known: resolve each concept
	// to nearby Concept vertices by embedding similarity, then collect
	// passages attached to those concepts via the graph.
	if len(concepts) > 0 && h.vectors != nil {
		var expanded []ScoredPassage
		for _, c := range concepts {
			if len(c.Embedding) == 0 {
				continue
			}
			hits, err := h.vectors.Search(ctx, c.Embedding, 5, map[string]string{"kind": "concept"})
			if err != nil {
				continue
			}
			resolved, err := h.store.ConceptsByIDs(ctx, resultIDs(hits))
			if err != nil {
				continue
			}
			for _, rc := range resolved {
				passages, err := h.store.PassagesForConcept(ctx, rc.ID)
				if err != nil || len(passages) == 0 {
					continue
				}
				if len(passages) > 5 {
					passages = passages[:5]
				}
				for rank, p := range passages {
					expanded = append(expanded, ScoredPassage{Passage: p, Score: normalizeRank(rank, len(passages))})
				}
			}
		}
		expandHits = len(expanded)
		record(2, expanded)
	}

	if successes == 0 {
		h.metrics.IncCounter("retrieve_requests_total", map[string]string{"outcome": "unavailable"})
		return HybridResult{}, fmt.Errorf("%w: all sub-retrievers failed", coreerr.ErrRetrievalUnavailable)
	}

	fused := h.fuse(byID, scores)
	if len(fused) > topN {
		fused = fused[:topN]
	}

	h.metrics.IncCounter("retrieve_requests_total", map[string]string{"outcome": "ok"})
	h.metrics.ObserveHistogram("retrieve_fusion_duration_ms", float64(time.Since(started).Milliseconds()), nil)
	h.metrics.ObserveHistogram("retrieve_graph_hits", float64(graphHits), nil)
	h.metrics.ObserveHistogram("retrieve_concept_hits", float64(conceptHits), nil)
	h.metrics.ObserveHistogram("retrieve_hippo_hits", float64(hippoHits), nil)
	h.metrics.ObserveHistogram("retrieve_concept_expansion_hits", float64(expandHits), nil)

	return HybridResult{
		Passages:             fused,
		GraphHits:            graphHits,
		ConceptHits:          conceptHits,
		HippoHits:            hippoHits,
		ConceptExpansionHits: expandHits,
	}, nil
}

func (h *HybridRetriever) fuse(byID map[string]model.Passage, scores map[string]*sourceScore) []ScoredPassage {
	out := make([]ScoredPassage, 0, len(byID))
	for id, passage := range byID {
		s := scores[id]
		weightSum := 0.0
		scoreSum := 0.0
		add := func(present bool, weight, value float64) {
			if !present {
				return
			}
			weightSum += weight
			scoreSum += weight * value
		}
		add(s.present[0], h.weights.Graph, s.graph)
		add(s.present[1], h.weights.Concept, s.concept)
		add(s.present[2], h.weights.ConceptExpand, s.expand)
		add(s.present[3], h.weights.Hippo, s.hippo)
		fused := 0.0
		if weightSum > 0 {
			fused = scoreSum / weightSum
		}
		out = append(out, ScoredPassage{Passage: passage, Score: fused})
	}
	sortByScoreThenID(out)
	return out
}

func resultIDs(hits []vectorindex.Result) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}
