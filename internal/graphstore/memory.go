package graphstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"contractrisk/internal/model"
)

// MemoryStore is an in-memory reference GraphStore, used by default and in
// tests. Scoring is a naive term-frequency match, sufficient to exercise the
// retrievers deterministically without an external graph engine.
type MemoryStore struct {
	mu        sync.RWMutex
	nodes     map[string]model.Node
	passages  map[string]model.Passage
	concepts  map[string]model.Concept
	relations []model.Relation
}

// NewMemoryStore constructs an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]model.Node),
		passages: make(map[string]model.Passage),
		concepts: make(map[string]model.Concept),
	}
}

func (m *MemoryStore) UpsertNode(_ context.Context, n model.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
	return nil
}

func (m *MemoryStore) UpsertPassage(_ context.Context, p model.Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages[p.ID] = p
	return nil
}

func (m *MemoryStore) UpsertConcept(_ context.Context, c model.Concept) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concepts[c.ID] = c
	return nil
}

func (m *MemoryStore) UpsertRelation(_ context.Context, r model.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations = append(m.relations, r)
	return nil
}

func (m *MemoryStore) FulltextNodeSearch(_ context.Context, query string, k int) ([]model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		node  model.Node
		score float64
	}
	var out []scored
	for _, n := range m.nodes {
		s := termScore(strings.ToLower(n.Name), terms)
		for _, l := range n.Labels {
			s += 0.1 * termScore(strings.ToLower(l), terms)
		}
		if s > 0 {
			out = append(out, scored{n, s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].node.ID < out[j].node.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	nodes := make([]model.Node, len(out))
	for i, s := range out {
		nodes[i] = s.node
	}
	return nodes, nil
}

func (m *MemoryStore) FulltextPassageSearch(_ context.Context, query string, k int) ([]model.Passage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 {
		k = 10
	}
	terms := strings.Fields(strings.ToLower(query))
	type scored struct {
		p     model.Passage
		score float64
	}
	var out []scored
	for _, p := range m.passages {
		s := termScore(strings.ToLower(p.Text), terms)
		if s > 0 {
			out = append(out, scored{p, s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].p.ID < out[j].p.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	passages := make([]model.Passage, len(out))
	for i, s := range out {
		passages[i] = s.p
	}
	return passages, nil
}

// Neighbors returns nodes reachable from id within depth hops (capped at 2
// regardless of the requested depth, per the cyclic-reference design note),
// optionally restricted to typeFilter, deduplicating visited ids to avoid
// recursing on graph cycles.
func (m *MemoryStore) Neighbors(_ context.Context, id string, depth int, typeFilter string) ([]model.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if depth <= 0 {
		depth = 1
	}
	if depth > 2 {
		depth = 2
	}
	visited := map[string]bool{id: true}
	frontier := []string{id}
	var resultIDs []string
	for hop := 0; hop < depth; hop++ {
		var next []string
		for _, src := range frontier {
			for _, r := range m.relations {
				if r.SourceID != src {
					continue
				}
				if typeFilter != "" && r.Type != typeFilter {
					continue
				}
				if _, ok := m.nodes[r.TargetID]; !ok {
					continue
				}
				if visited[r.TargetID] {
					continue
				}
				visited[r.TargetID] = true
				next = append(next, r.TargetID)
				resultIDs = append(resultIDs, r.TargetID)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	sort.Strings(resultIDs)
	out := make([]model.Node, 0, len(resultIDs))
	for _, nid := range resultIDs {
		out = append(out, m.nodes[nid])
	}
	return out, nil
}

// PassagesForNode follows MENTIONS edges whose target is nodeID, returning
// the source passages.
func (m *MemoryStore) PassagesForNode(_ context.Context, nodeID string) ([]model.Passage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, r := range m.relations {
		if r.Type == model.EdgeMentions && r.TargetID == nodeID {
			if _, ok := m.passages[r.SourceID]; ok {
				ids = append(ids, r.SourceID)
			}
		}
	}
	sort.Strings(ids)
	out := make([]model.Passage, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.passages[id])
	}
	return out, nil
}

// ConceptsForText resolves text to a matching Text/Entity node by exact
// (case-insensitive) name match, then follows HAS_CONCEPT edges from it.
func (m *MemoryStore) ConceptsForText(_ context.Context, text string) ([]model.Concept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return nil, nil
	}
	var nodeID string
	for _, n := range m.nodes {
		if strings.ToLower(n.Name) == norm {
			nodeID = n.ID
			break
		}
	}
	if nodeID == "" {
		return nil, nil
	}
	var out []model.Concept
	for _, r := range m.relations {
		if r.Type == model.EdgeHasConcept && r.SourceID == nodeID {
			if c, ok := m.concepts[r.TargetID]; ok {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PassagesForConcept follows HAS_CONCEPT edges backward from conceptID to
// the node(s) that reference it, then MENTIONS edges from those nodes to
// passages, deduplicating and sorting by passage id. This is the reverse
// traversal concept expansion needs: a concept's text essentially never
// equals a node's canonical name, so resolving forward via ConceptsForText
// never finds anything for a real corpus.
func (m *MemoryStore) PassagesForConcept(_ context.Context, conceptID string) ([]model.Passage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodeSet := make(map[string]bool)
	for _, r := range m.relations {
		if r.Type == model.EdgeHasConcept && r.TargetID == conceptID {
			nodeSet[r.SourceID] = true
		}
	}
	if len(nodeSet) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, r := range m.relations {
		if r.Type == model.EdgeMentions && nodeSet[r.TargetID] {
			if _, ok := m.passages[r.SourceID]; ok && !seen[r.SourceID] {
				seen[r.SourceID] = true
				ids = append(ids, r.SourceID)
			}
		}
	}
	sort.Strings(ids)
	out := make([]model.Passage, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.passages[id])
	}
	return out, nil
}

// PassageByID looks up a single passage by its Vector Index key.
func (m *MemoryStore) PassageByID(_ context.Context, id string) (model.Passage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passages[id]
	return p, ok, nil
}

func (m *MemoryStore) ConceptsByIDs(_ context.Context, ids []string) ([]model.Concept, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Concept, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.concepts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListDatabases(_ context.Context) ([]string, error) {
	return []string{"memory"}, nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Nodes:    len(m.nodes),
		Passages: len(m.passages),
		Concepts: len(m.concepts),
		Edges:    len(m.relations),
	}, nil
}

func termScore(haystack string, terms []string) float64 {
	score := 0.0
	for _, t := range terms {
		if t == "" {
			continue
		}
		if c := strings.Count(haystack, t); c > 0 {
			score += float64(c)
		}
	}
	return score
}

var _ GraphStore = (*MemoryStore)(nil)
