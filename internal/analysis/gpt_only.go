package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/llmclient"
	"contractrisk/internal/model"
	"contractrisk/internal/retrybackoff"
)

const (
	defaultChunkChars   = 24 * 1024
	chunkOverlapPercent = 0.10
)

// GPTOnlyAnalyzer is the degenerate variant (§4.9): bypasses the retrievers
// entirely, feeding the whole contract text (chunked to the model's context
// window with 10% overlap) and the checklist part verbatim.
type GPTOnlyAnalyzer struct {
	provider     llmclient.Provider
	clock        Clock
	cfg          PartAnalyzerConfig
	chunkChars   int
	contractText string
}

// NewGPTOnlyAnalyzer constructs a GPT-Only Analyzer over the full contract
// text. chunkChars bounds each chunk to fit the model's context window; 0
// selects a conservative default.
func NewGPTOnlyAnalyzer(provider llmclient.Provider, clock Clock, cfg PartAnalyzerConfig, contractText string, chunkChars int) *GPTOnlyAnalyzer {
	if clock == nil {
		clock = SystemClock{}
	}
	if chunkChars <= 0 {
		chunkChars = defaultChunkChars
	}
	return &GPTOnlyAnalyzer{
		provider:     provider,
		clock:        clock,
		cfg:          cfg.withDefaults(),
		chunkChars:   chunkChars,
		contractText: contractText,
	}
}

// AnalyzePart runs every checklist item of part against every chunk of the
// contract, then aggregates per item across chunks by taking the maximum
// risk_score and concatenating distinct analysis/recommendation text up to
// the 500-char budget (the large-contract aggregation rule chosen to
// resolve the open question of combining per-chunk results).
func (a *GPTOnlyAnalyzer) AnalyzePart(ctx context.Context, part model.ChecklistPart) (model.PartResult, error) {
	start := a.clock.Now()
	chunks := chunkText(a.contractText, a.chunkChars, chunkOverlapPercent)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	result := model.PartResult{
		PartNumber: part.Number,
		PartTitle:  part.Title,
		Status:     model.PartRunning,
	}

	for i, item := range part.DeepDiveChecklist {
		if err := ctx.Err(); err != nil {
			result.Status = model.PartFailed
			result.FailureReason = err.Error()
			break
		}
		if i > 0 {
			if err := a.clock.Sleep(ctx, a.cfg.RateLimitDelay); err != nil {
				result.Status = model.PartFailed
				result.FailureReason = err.Error()
				break
			}
		}
		merged := a.analyzeItemAcrossChunks(ctx, item, chunks)
		result.ChecklistResults = append(result.ChecklistResults, merged)
	}

	if result.Status != model.PartFailed {
		result.Status = model.PartDone
	}
	aggregate(&result)
	result.DurationSeconds = a.clock.Now().Sub(start).Seconds()
	return result, nil
}

func (a *GPTOnlyAnalyzer) analyzeItemAcrossChunks(ctx context.Context, item model.ChecklistItem, chunks []string) model.ItemResult {
	best := model.ItemResult{ItemText: item.Text, Status: model.StatusPass, RiskScore: -1}
	var analyses, recommendations []string

	for _, chunk := range chunks {
		res := a.analyzeChunk(ctx, item, chunk)
		if res.RiskScore > best.RiskScore {
			best.RiskScore = res.RiskScore
			best.Status = res.Status
		}
		if res.Analysis != "" && res.Analysis != "parse_error" {
			analyses = appendDistinct(analyses, res.Analysis)
		}
		if res.Recommendation != "" {
			recommendations = appendDistinct(recommendations, res.Recommendation)
		}
	}
	if best.RiskScore < 0 {
		best.RiskScore = 2
		best.Status = model.StatusWarn
	}
	best.Analysis = truncateChars(strings.Join(analyses, " "), 500)
	best.Recommendation = truncateChars(strings.Join(recommendations, " "), 500)
	return best
}

func (a *GPTOnlyAnalyzer) analyzeChunk(ctx context.Context, item model.ChecklistItem, chunk string) model.ItemResult {
	prompt := "Checklist question: " + item.Text + "\n\nContract excerpt:\n" + chunk

	policy := retrybackoff.Policy{MaxAttempts: a.cfg.MaxRetries, InitialWait: time.Second, MaxWait: 30 * time.Second}
	itemCtx, cancel := context.WithTimeout(ctx, a.cfg.LLMTimeoutPerCall)
	defer cancel()

	var parsed itemResponse
	err := retrybackoff.Do(itemCtx, policy, func(err error) bool {
		return errors.Is(err, coreerr.ErrLLMTransient)
	}, func(ctx context.Context) error {
		return llmclient.ChatJSON(ctx, a.provider, llmclient.Request{
			Model: a.cfg.Model,
			Messages: []llmclient.Message{
				{Role: "system", Content: itemSystemPrompt},
				{Role: "user", Content: prompt},
			},
			MaxTokens:  512,
			JSONSchema: itemJSONSchema,
		}, &parsed)
	})
	if err != nil {
		return model.ItemResult{ItemText: item.Text, Status: model.StatusWarn, RiskScore: 2, Analysis: "parse_error"}
	}

	score := clampScore(parsed.RiskScore)
	status := model.Status(strings.ToUpper(parsed.Status))
	if !statusConsistent(status, score) {
		status = model.StatusForScore(score)
	}
	return model.ItemResult{
		ItemText:       item.Text,
		Status:         status,
		RiskScore:      score,
		Analysis:       truncateChars(parsed.Analysis, 500),
		Recommendation: truncateChars(parsed.Recommendation, 500),
	}
}

// chunkText splits text into chunks of at most size chars with an overlap
// fraction between consecutive chunks.
func chunkText(text string, size int, overlapFraction float64) []string {
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}
	overlap := int(float64(size) * overlapFraction)
	stride := size - overlap
	if stride <= 0 {
		stride = size
	}
	var chunks []string
	for start := 0; start < len(text); start += stride {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}

func appendDistinct(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
