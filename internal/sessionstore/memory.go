package sessionstore

import (
	"context"
	"sort"
	"sync"

	"contractrisk/internal/model"
)

// MemoryStore is an in-memory reference session store, used by default and
// in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.AnalysisSession
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.AnalysisSession)}
}

func (m *MemoryStore) Save(_ context.Context, session model.AnalysisSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Copy-on-write: readers never observe a session mutated after
	// Save returns (§5: "readers observe a consistent snapshot via a
	// read lock or copy-on-write").
	cp := session
	cp.PartResults = make(map[int]model.PartResult, len(session.PartResults))
	for k, v := range session.PartResults {
		cp.PartResults[k] = v
	}
	cp.SelectedParts = append([]int(nil), session.SelectedParts...)
	m.sessions[session.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.AnalysisSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok, nil
}

func (m *MemoryStore) List(_ context.Context) ([]model.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, summarize(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
