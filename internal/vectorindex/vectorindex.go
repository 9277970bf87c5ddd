// Package vectorindex implements the approximate nearest-neighbor index over
// passage and concept embeddings (§4.2): upsert, cosine-similarity search
// with deterministic ascending-id tie-breaking, and get-by-id.
package vectorindex

import (
	"context"
	"fmt"
)

// Result is one nearest-neighbor hit.
type Result struct {
	ID    string
	Score float64
}

// VectorIndex is the pluggable ANN backend. Guarantees: deterministic top-k
// given identical query and index state; all embeddings share one
// dimension, checked at Upsert.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error)
	Get(ctx context.Context, id string) ([]float32, bool, error)
	Dimension() int
}

// ErrDimensionMismatch is returned by Upsert when a vector's length does not
// match the index's declared dimension.
type ErrDimensionMismatch struct {
	Expected, Got int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorindex: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
