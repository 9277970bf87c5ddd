package sessionstore

import (
	"context"
	"testing"
	"time"

	"contractrisk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(id string, started time.Time) model.AnalysisSession {
	return model.AnalysisSession{
		ID:            id,
		ContractID:    "contract-1",
		ContractName:  "Master Services Agreement",
		Backend:       model.BackendHybrid,
		Status:        model.SessionRunning,
		Progress:      2,
		SelectedParts: []int{1, 2, 3},
		StartedAt:     started,
		PartResults: map[int]model.PartResult{
			1: {PartNumber: 1},
		},
	}
}

func TestMemoryStore_SaveGet_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := sampleSession("s1", time.Now())

	require.NoError(t, s.Save(ctx, session))
	got, ok, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.ContractID, got.ContractID)
	assert.Equal(t, session.SelectedParts, got.SelectedParts)
	assert.Equal(t, session.PartResults[1], got.PartResults[1])
}

func TestMemoryStore_Get_MissingReturnsFalse(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Save_CopiesOnWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	session := sampleSession("s1", time.Now())
	require.NoError(t, s.Save(ctx, session))

	session.SelectedParts[0] = 99
	session.PartResults[1] = model.PartResult{PartNumber: 1, RiskScore: 5}

	got, _, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.SelectedParts[0], "mutating the caller's slice must not affect the stored copy")
	assert.Zero(t, got.PartResults[1].RiskScore, "mutating the caller's map must not affect the stored copy")
}

func TestMemoryStore_List_OrdersByStartedAtAndOmitsPartResults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	require.NoError(t, s.Save(ctx, sampleSession("later", now.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, sampleSession("earlier", now)))

	summaries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "earlier", summaries[0].ID)
	assert.Equal(t, "later", summaries[1].ID)
}

func TestMemoryStore_Delete_RemovesSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, sampleSession("s1", time.Now())))
	require.NoError(t, s.Delete(ctx, "s1"))

	_, ok, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummarize_CopiesIdentifyingFieldsOnly(t *testing.T) {
	session := sampleSession("s1", time.Now())
	summary := summarize(session)
	assert.Equal(t, session.ID, summary.ID)
	assert.Equal(t, session.ContractID, summary.ContractID)
	assert.Equal(t, session.Status, summary.Status)
	assert.Equal(t, session.Progress, summary.Progress)
}
