// Package analysis implements the Part Risk Analyzer (§4.7), Sequential
// Analysis Orchestrator (§4.8), GPT-Only Analyzer (§4.9), and the Service
// facade exposing the external operations of §6.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/llmclient"
	"contractrisk/internal/model"
	"contractrisk/internal/retrieve"
	"contractrisk/internal/retrybackoff"
)

const (
	defaultPassageCharBudget = 8 * 1024
	defaultRateLimitDelay    = 2 * time.Second
	defaultLLMTimeout        = 60 * time.Second
	maxRelevantClauses       = 30
	maxRecommendations       = 5
)

// PartAnalyzerConfig holds the tunables named in §4.7/§6.
type PartAnalyzerConfig struct {
	Model             string
	RateLimitDelay    time.Duration
	LLMTimeoutPerCall time.Duration
	MaxRetries        int
	PassageCharBudget int
}

func (c PartAnalyzerConfig) withDefaults() PartAnalyzerConfig {
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = defaultRateLimitDelay
	}
	if c.LLMTimeoutPerCall <= 0 {
		c.LLMTimeoutPerCall = defaultLLMTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.PassageCharBudget <= 0 {
		c.PassageCharBudget = defaultPassageCharBudget
	}
	return c
}

// PartAnalyzer is the Part Risk Analyzer (§4.7).
type PartAnalyzer struct {
	retriever *retrieve.HybridRetriever
	provider  llmclient.Provider
	clock     Clock
	cfg       PartAnalyzerConfig
}

// NewPartAnalyzer constructs a Part Risk Analyzer over retriever and provider.
func NewPartAnalyzer(retriever *retrieve.HybridRetriever, provider llmclient.Provider, clock Clock, cfg PartAnalyzerConfig) *PartAnalyzer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PartAnalyzer{retriever: retriever, provider: provider, clock: clock, cfg: cfg.withDefaults()}
}

type itemResponse struct {
	Status         string `json:"status"`
	RiskScore      int    `json:"risk_score"`
	Analysis       string `json:"analysis"`
	Recommendation string `json:"recommendation"`
}

// AnalyzePart runs the START -> RETRIEVE -> PER_ITEM(xn) -> AGGREGATE -> DONE
// state machine for one checklist part.
func (a *PartAnalyzer) AnalyzePart(ctx context.Context, part model.ChecklistPart) (model.PartResult, error) {
	start := a.clock.Now()
	result := model.PartResult{
		PartNumber: part.Number,
		PartTitle:  part.Title,
		Status:     model.PartRunning,
	}

	clauses, stats, err := a.retrieveClauses(ctx, part)
	result.HybridSearchStats = stats
	if err != nil {
		result.Status = model.PartFailed
		result.FailureReason = err.Error()
		result.DurationSeconds = a.clock.Now().Sub(start).Seconds()
		return result, nil
	}
	result.RelevantClauses = clauseTexts(clauses)

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
		itemResult := a.analyzeItem(ctx, item, clauses)
		result.ChecklistResults = append(result.ChecklistResults, itemResult)
	}

	if result.Status != model.PartFailed {
		result.Status = model.PartDone
	}
	aggregate(&result)
	result.DurationSeconds = a.clock.Now().Sub(start).Seconds()
	return result, nil
}

// retrieveClauses builds the three search queries from the part, runs
// hybrid_retrieve sequentially, unions and dedupes by passage id, and keeps
// the top 30 by fused score.
func (a *PartAnalyzer) retrieveClauses(ctx context.Context, part model.ChecklistPart) ([]retrieve.ScoredPassage, model.HybridSearchStats, error) {
	queries := []string{
		part.CoreQuestion,
		part.TopRiskPattern,
		strings.Join(part.CrossClauseAnalysis, " "),
	}

	var stats model.HybridSearchStats
	byID := make(map[string]retrieve.ScoredPassage)
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		res, err := a.retriever.Retrieve(ctx, q, 15)
		if err != nil {
			stats.FailedSearches++
			continue
		}
		stats.SuccessfulSearches++
		stats.TotalCandidates += len(res.Passages)
		for _, p := range res.Passages {
			if existing, ok := byID[p.Passage.ID]; !ok || p.Score > existing.Score {
				byID[p.Passage.ID] = p
			}
		}
	}
	if stats.SuccessfulSearches == 0 {
		return nil, stats, fmt.Errorf("%w: all retrieval queries failed for part %d", coreerr.ErrRetrievalUnavailable, part.Number)
	}

	out := make([]retrieve.ScoredPassage, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sortScoredDesc(out)
	if len(out) > maxRelevantClauses {
		out = out[:maxRelevantClauses]
	}
	return out, stats, nil
}

func clauseTexts(items []retrieve.ScoredPassage) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Passage.Text
	}
	return out
}

// analyzeItem issues one LLM chat completion per checklist item, enforcing
// the status/risk_score consistency rule and falling back to the
// parse-error result on irrecoverable failure.
func (a *PartAnalyzer) analyzeItem(ctx context.Context, item model.ChecklistItem, clauses []retrieve.ScoredPassage) model.ItemResult {
	prompt := buildItemPrompt(item, clauses, a.cfg.PassageCharBudget)

	policy := retrybackoff.Policy{MaxAttempts: a.cfg.MaxRetries, InitialWait: time.Second, MaxWait: 30 * time.Second}
	var parsed itemResponse
	itemCtx, cancel := context.WithTimeout(ctx, a.cfg.LLMTimeoutPerCall)
	defer cancel()

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
		return model.ItemResult{
			ItemText:       item.Text,
			Status:         model.StatusWarn,
			RiskScore:      2,
			Analysis:       "parse_error",
			Recommendation: "",
		}
	}

	score := clampScore(parsed.RiskScore)
	status := model.Status(strings.ToUpper(parsed.Status))
	expected := model.StatusForScore(score)
	if status != model.StatusPass && status != model.StatusWarn && status != model.StatusDanger {
		status = expected
	} else if !statusConsistent(status, score) {
		status = expected
	}

	return model.ItemResult{
		ItemText:       item.Text,
		Status:         status,
		RiskScore:      score,
		Analysis:       truncateChars(parsed.Analysis, 500),
		Recommendation: truncateChars(parsed.Recommendation, 500),
	}
}

const itemSystemPrompt = "You are a contract-risk analyst. You review excerpts of a legal contract " +
	"against a single checklist question and respond with only a JSON object: " +
	`{"status": "PASS"|"WARN"|"DANGER", "risk_score": integer 0-5, "analysis": string <= 500 chars, "recommendation": string <= 500 chars}. ` +
	"PASS means risk_score 0-1, WARN means 2-3, DANGER means 4-5. No prose outside the JSON object."

var itemJSONSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"status":         map[string]any{"type": "string", "enum": []string{"PASS", "WARN", "DANGER"}},
		"risk_score":     map[string]any{"type": "integer", "minimum": 0, "maximum": 5},
		"analysis":       map[string]any{"type": "string"},
		"recommendation": map[string]any{"type": "string"},
	},
	"required": []string{"status", "risk_score", "analysis", "recommendation"},
}

func buildItemPrompt(item model.ChecklistItem, clauses []retrieve.ScoredPassage, charBudget int) string {
	var sb strings.Builder
	sb.WriteString("Checklist question: ")
	sb.WriteString(item.Text)
	sb.WriteString("\n\nRelevant contract excerpts:\n")
	remaining := charBudget
	for _, c := range clauses {
		text := c.Passage.Text
		if remaining <= 0 {
			break
		}
		if len(text) > remaining {
			text = text[:remaining]
		}
		sb.WriteString("---\n")
		sb.WriteString(text)
		sb.WriteString("\n")
		remaining -= len(text)
	}
	return sb.String()
}

func statusConsistent(status model.Status, score int) bool {
	switch status {
	case model.StatusPass:
		return score <= 1
	case model.StatusWarn:
		return score >= 2 && score <= 3
	case model.StatusDanger:
		return score >= 4
	}
	return false
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 5 {
		return 5
	}
	return score
}

func truncateChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// aggregate fills in RiskScore, RiskLevel, and Recommendations from the
// completed ChecklistResults.
func aggregate(result *model.PartResult) {
	if len(result.ChecklistResults) == 0 {
		return
	}
	sum := 0
	for _, r := range result.ChecklistResults {
		sum += r.RiskScore
	}
	mean := float64(sum) / float64(len(result.ChecklistResults))
	result.RiskScore = roundToOneDecimal(mean)
	result.RiskLevel = model.RiskLevelForScore(result.RiskScore)
	result.Recommendations = topRecommendations(result.ChecklistResults, maxRecommendations)
}

func roundToOneDecimal(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// topRecommendations returns the up-to-n highest-scoring non-empty
// recommendations, deduplicated by a short text prefix.
func topRecommendations(items []model.ItemResult, n int) []string {
	type scored struct {
		text  string
		score int
	}
	var candidates []scored
	for _, r := range items {
		if strings.TrimSpace(r.Recommendation) == "" {
			continue
		}
		candidates = append(candidates, scored{text: r.Recommendation, score: r.RiskScore})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	seenPrefix := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		if len(out) >= n {
			break
		}
		prefix := c.text
		if len(prefix) > 40 {
			prefix = prefix[:40]
		}
		if seenPrefix[prefix] {
			continue
		}
		seenPrefix[prefix] = true
		out = append(out, c.text)
	}
	return out
}

func sortScoredDesc(items []retrieve.ScoredPassage) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Passage.ID < items[j].Passage.ID
	})
}
