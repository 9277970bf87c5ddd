package analysis

import (
	"context"
	"strings"
	"testing"

	"contractrisk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPTOnlyAnalyzer_AnalyzePart_SingleChunkHappyPath(t *testing.T) {
	provider := &scriptedProvider{contents: []string{
		`{"status":"WARN","risk_score":2,"analysis":"one-sided","recommendation":"add notice period"}`,
	}}
	a := NewGPTOnlyAnalyzer(provider, newFakeClock(), PartAnalyzerConfig{MaxRetries: 1}, "a short contract body", 0)

	part := model.ChecklistPart{
		Number:            1,
		Title:             "Termination",
		DeepDiveChecklist: []model.ChecklistItem{{Text: "may either party terminate for convenience?"}},
	}
	result, err := a.AnalyzePart(context.Background(), part)
	require.NoError(t, err)
	assert.Equal(t, model.PartDone, result.Status)
	require.Len(t, result.ChecklistResults, 1)
	assert.Equal(t, model.StatusWarn, result.ChecklistResults[0].Status)
	assert.Equal(t, 2, result.ChecklistResults[0].RiskScore)
}

func TestGPTOnlyAnalyzer_AnalyzePart_EmptyContractProducesOneEmptyChunk(t *testing.T) {
	provider := &scriptedProvider{contents: []string{`{"status":"PASS","risk_score":0,"analysis":"","recommendation":""}`}}
	a := NewGPTOnlyAnalyzer(provider, newFakeClock(), PartAnalyzerConfig{MaxRetries: 1}, "", 0)

	part := model.ChecklistPart{
		Number:            1,
		DeepDiveChecklist: []model.ChecklistItem{{Text: "q"}},
	}
	result, err := a.AnalyzePart(context.Background(), part)
	require.NoError(t, err)
	assert.Equal(t, model.PartDone, result.Status)
	assert.Equal(t, 1, provider.calls)
}

func TestGPTOnlyAnalyzer_AnalyzeItemAcrossChunks_TakesMaxScoreAndConcatenatesDistinctText(t *testing.T) {
	provider := &scriptedProvider{}
	a := NewGPTOnlyAnalyzer(provider, newFakeClock(), PartAnalyzerConfig{MaxRetries: 1}, "irrelevant", 0)

	item := model.ChecklistItem{Text: "q"}
	chunks := []string{"chunk one", "chunk two", "chunk three"}

	// Script one PASS/0 answer followed by two identical DANGER/5 answers.
	scores := []string{
		`{"status":"PASS","risk_score":0,"analysis":"fine here","recommendation":""}`,
		`{"status":"DANGER","risk_score":5,"analysis":"unlimited liability","recommendation":"cap liability"}`,
		`{"status":"DANGER","risk_score":5,"analysis":"unlimited liability","recommendation":"cap liability"}`,
	}
	provider.contents = scores

	merged := a.analyzeItemAcrossChunks(context.Background(), item, chunks)
	assert.Equal(t, 5, merged.RiskScore, "the highest per-chunk score wins")
	assert.Equal(t, model.StatusDanger, merged.Status)
	assert.Contains(t, merged.Analysis, "unlimited liability")
	assert.Equal(t, 1, strings.Count(merged.Analysis, "unlimited liability"), "duplicate chunk analyses must not repeat")
	assert.Equal(t, "cap liability", merged.Recommendation)
}

func TestGPTOnlyAnalyzer_AnalyzeItemAcrossChunks_AllParseErrorsFallBackToWarnTwo(t *testing.T) {
	provider := &scriptedProvider{contents: []string{"not json"}}
	a := NewGPTOnlyAnalyzer(provider, newFakeClock(), PartAnalyzerConfig{MaxRetries: 1}, "irrelevant", 0)

	merged := a.analyzeItemAcrossChunks(context.Background(), model.ChecklistItem{Text: "q"}, []string{"only chunk"})
	assert.Equal(t, model.StatusWarn, merged.Status)
	assert.Equal(t, 2, merged.RiskScore)
}

func TestChunkText_SplitsWithOverlap(t *testing.T) {
	text := strings.Repeat("a", 25)
	chunks := chunkText(text, 10, 0.2)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
	assert.Equal(t, text[len(text)-1:], chunks[len(chunks)-1][len(chunks[len(chunks)-1])-1:], "the last chunk must reach the end of the text")
}

func TestChunkText_ShortTextReturnsSingleChunk(t *testing.T) {
	chunks := chunkText("short", 100, 0.1)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestChunkText_EmptyTextReturnsNoChunks(t *testing.T) {
	assert.Empty(t, chunkText("", 100, 0.1))
}

func TestAppendDistinct_SkipsDuplicates(t *testing.T) {
	list := appendDistinct(nil, "a")
	list = appendDistinct(list, "b")
	list = appendDistinct(list, "a")
	assert.Equal(t, []string{"a", "b"}, list)
}
