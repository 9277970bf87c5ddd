// Package sessionstore persists AnalysisSession objects (§6 "Session JSON
// on disk or KV store") and supports list_saved in O(n) of sessions without
// scanning part-result bodies, via a separate SessionSummary index.
package sessionstore

import (
	"context"

	"contractrisk/internal/model"
)

// Store is the pluggable session-persistence backend.
type Store interface {
	// Save writes (or overwrites) the full session, and updates its index
	// entry atomically with respect to List.
	Save(ctx context.Context, session model.AnalysisSession) error
	Get(ctx context.Context, id string) (model.AnalysisSession, bool, error)
	// List returns the summary index only, never the full session bodies.
	List(ctx context.Context) ([]model.SessionSummary, error)
	Delete(ctx context.Context, id string) error
}

func summarize(s model.AnalysisSession) model.SessionSummary {
	return model.SessionSummary{
		ID:           s.ID,
		ContractID:   s.ContractID,
		ContractName: s.ContractName,
		Status:       s.Status,
		Progress:     s.Progress,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
	}
}
