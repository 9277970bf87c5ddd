// Package model holds the data model shared by the graph store, vector
// index, retrievers, and analyzer: passages, graph nodes, concepts,
// relations, the checklist catalog, and analysis sessions/results.
//
// Every type here is a tagged struct, never a dynamic map-shaped record;
// JSON tags exist only for the wire shape at the external-interface
// boundary.
package model

import "time"

// Passage is an atomic unit of indexed contract text, owned exclusively by
// the ingestion corpus and immutable after indexing.
type Passage struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
}

// Node is a graph vertex representing an entity extracted during ingestion.
type Node struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Labels    []string `json:"labels"`
	NumericID int64    `json:"numeric_id"`
}

// Concept is a short noun phrase bridging free-text queries and graph nodes.
type Concept struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Relation is a graph edge. Type is a short verb phrase; multiple edges of
// different types between the same endpoints are permitted.
type Relation struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge type constants used throughout the graph store and retrievers.
const (
	EdgeRelates    = "RELATES"
	EdgeMentions   = "MENTIONS"
	EdgeHasConcept = "HAS_CONCEPT"
)

// ChecklistItem is a plain-prose question about the contract.
type ChecklistItem struct {
	Text string `json:"text" yaml:"text"`
}

// ChecklistPart is one of the ten fixed legal topics in the catalog.
type ChecklistPart struct {
	Number              int             `json:"number" yaml:"number"`
	Title               string          `json:"title" yaml:"title"`
	CoreQuestion        string          `json:"core_question" yaml:"core_question"`
	TopRiskPattern      string          `json:"top_risk_pattern" yaml:"top_risk_pattern"`
	CrossClauseAnalysis []string        `json:"cross_clause_analysis" yaml:"cross_clause_analysis"`
	DeepDiveChecklist   []ChecklistItem `json:"deep_dive_checklist" yaml:"deep_dive_checklist"`
}

// Status is the PASS/WARN/DANGER band of an item result.
type Status string

const (
	StatusPass   Status = "PASS"
	StatusWarn   Status = "WARN"
	StatusDanger Status = "DANGER"
)

// RiskLevel is the banded severity of a part result.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// StatusForScore returns the status band implied by a 0..5 risk score, per
// the PASS 0-1 / WARN 2-3 / DANGER 4-5 bands.
func StatusForScore(score int) Status {
	switch {
	case score <= 1:
		return StatusPass
	case score <= 3:
		return StatusWarn
	default:
		return StatusDanger
	}
}

// RiskLevelForScore returns the [0,1)/[1,2.5)/[2.5,4)/[4,5] band for a part's
// mean risk score.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score < 1:
		return RiskLow
	case score < 2.5:
		return RiskMedium
	case score < 4:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// ItemResult is the structured LLM output for one checklist item.
type ItemResult struct {
	ItemText       string `json:"item_text"`
	Status         Status `json:"status"`
	RiskScore      int    `json:"risk_score"`
	Analysis       string `json:"analysis"`
	Recommendation string `json:"recommendation"`
}

// HybridSearchStats carries observability counters for one part's retrieval.
type HybridSearchStats struct {
	SuccessfulSearches int `json:"successful_searches"`
	FailedSearches     int `json:"failed_searches"`
	TotalCandidates    int `json:"total_candidates"`
}

// PartStatus is the terminal/non-terminal state of one checklist part within
// a session.
type PartStatus string

const (
	PartRunning PartStatus = "RUNNING"
	PartDone    PartStatus = "DONE"
	PartFailed  PartStatus = "FAILED"
)

// PartResult is the aggregated outcome of analyzing one checklist part.
type PartResult struct {
	PartNumber       int                `json:"part_number"`
	PartTitle        string             `json:"part_title"`
	Status           PartStatus         `json:"status"`
	FailureReason    string             `json:"failure_reason,omitempty"`
	RiskScore        float64            `json:"risk_score"`
	RiskLevel        RiskLevel          `json:"risk_level"`
	ChecklistResults []ItemResult       `json:"checklist_results"`
	RelevantClauses  []string           `json:"relevant_clauses"`
	Recommendations  []string           `json:"recommendations"`
	HybridSearchStats HybridSearchStats `json:"hybrid_search_stats"`
	DurationSeconds  float64            `json:"duration_seconds"`
}

// SessionStatus is the lifecycle state of an analysis session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionRunning   SessionStatus = "RUNNING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionCanceled  SessionStatus = "CANCELED"
)

// AnalysisBackend selects which analyzer backend produced a session's
// results. Both backends share one session id namespace, distinguished by
// this field (see the open-questions resolution in DESIGN.md).
type AnalysisBackend string

const (
	BackendHybrid  AnalysisBackend = "hybrid"
	BackendGPTOnly AnalysisBackend = "gpt_only"
)

// AnalysisSession is a stateful, resumable, cancelable run of the checklist
// over one contract. Session state transitions only in the orchestrator; the
// core never evicts a session (an external retention policy does).
type AnalysisSession struct {
	ID             string          `json:"id"`
	ContractID     string          `json:"contract_id"`
	ContractName   string          `json:"contract_name"`
	Backend        AnalysisBackend `json:"backend"`
	Status         SessionStatus   `json:"status"`
	Progress       int             `json:"progress"`
	SelectedParts  []int           `json:"selected_parts"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	PartResults    map[int]PartResult `json:"part_results"`
	Error          string          `json:"error,omitempty"`
}

// SessionSummary is the O(1)-sized index record returned by list_saved,
// distinct from the full session blob so listing never scans part results.
type SessionSummary struct {
	ID           string        `json:"id"`
	ContractID   string        `json:"contract_id"`
	ContractName string        `json:"contract_name"`
	Status       SessionStatus `json:"status"`
	Progress     int           `json:"progress"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
}

// ReportSummary is the summary block of an integrated report.
type ReportSummary struct {
	TotalPartsAnalyzed int `json:"total_parts_analyzed"`
	HighRiskParts      int `json:"high_risk_parts"`
	CriticalIssues     int `json:"critical_issues"`
}

// IntegratedReport is the final output of a completed (or terminal) session.
type IntegratedReport struct {
	OverallRiskScore *float64          `json:"overall_risk_score"`
	OverallRiskLevel RiskLevel         `json:"overall_risk_level"`
	PartResults      map[int]PartResult `json:"part_results"`
	Summary          ReportSummary     `json:"summary"`
}
