package analysis

import (
	"context"
	"time"

	"contractrisk/internal/checklist"
	"contractrisk/internal/metrics"
	"contractrisk/internal/model"
	"contractrisk/internal/sessionstore"
)

const defaultPartTimeout = 5 * time.Minute

// PartRunner is implemented by both PartAnalyzer (§4.7, hybrid backend) and
// GPTOnlyAnalyzer (§4.9), letting the orchestrator stay backend-agnostic.
type PartRunner interface {
	AnalyzePart(ctx context.Context, part model.ChecklistPart) (model.PartResult, error)
}

// Orchestrator is the Sequential Analysis Orchestrator (§4.8).
type Orchestrator struct {
	catalog     *checklist.Catalog
	store       sessionstore.Store
	clock       Clock
	partTimeout time.Duration
	metrics     metrics.Metrics
}

// NewOrchestrator constructs an Orchestrator over catalog and store.
func NewOrchestrator(catalog *checklist.Catalog, store sessionstore.Store, clock Clock, partTimeout time.Duration) *Orchestrator {
	if clock == nil {
		clock = SystemClock{}
	}
	if partTimeout <= 0 {
		partTimeout = defaultPartTimeout
	}
	return &Orchestrator{catalog: catalog, store: store, clock: clock, partTimeout: partTimeout, metrics: metrics.Noop{}}
}

// WithMetrics sets the Metrics sink parts are reported to, replacing the
// default no-op. Returns o for chaining at construction time.
func (o *Orchestrator) WithMetrics(m metrics.Metrics) *Orchestrator {
	if m != nil {
		o.metrics = m
	}
	return o
}

// Run executes run(session_id, contract_id, contract_text, selected_parts)
// (§4.8) against runner, one checklist part at a time in ascending order.
// contractText is accepted for interface symmetry with the GPT-only
// backend, which needs it; the hybrid PartRunner retrieves its own context
// from the Graph Store / Vector Index and ignores it.
func (o *Orchestrator) Run(ctx context.Context, runner PartRunner, sessionID, contractID, contractName string, backend model.AnalysisBackend, selectedParts []int) error {
	if selectedParts == nil {
		// Omitted field: a reasonable default is every catalog part. An
		// explicitly empty slice (selectedParts != nil, len == 0) is a
		// distinct boundary case handled below.
		for _, p := range o.catalog.Parts() {
			selectedParts = append(selectedParts, p.Number)
		}
	}
	sortInts(selectedParts)

	session := model.AnalysisSession{
		ID:            sessionID,
		ContractID:    contractID,
		ContractName:  contractName,
		Backend:       backend,
		Status:        model.SessionRunning,
		SelectedParts: selectedParts,
		StartedAt:     o.clock.Now(),
		PartResults:   make(map[int]model.PartResult),
	}

	if len(selectedParts) == 0 {
		// selected_parts explicitly []: nothing to analyze, the session
		// completes immediately with an empty report.
		session.Status = model.SessionCompleted
		session.Progress = 100
		finished := o.clock.Now()
		session.FinishedAt = &finished
		return o.store.Save(ctx, session)
	}

	if err := o.store.Save(ctx, session); err != nil {
		return err
	}

	completed := 0
	for _, number := range selectedParts {
		if err := ctx.Err(); err != nil {
			session.Status = model.SessionCanceled
			break
		}

		part, ok := o.catalog.Part(number)
		if !ok {
			continue
		}

		partCtx, cancel := context.WithTimeout(ctx, o.partTimeout)
		partStart := o.clock.Now()
		result, err := runner.AnalyzePart(partCtx, part)
		partErr := partCtx.Err()
		cancel()
		o.metrics.ObserveHistogram("analysis_part_duration_ms", float64(o.clock.Now().Sub(partStart).Milliseconds()), map[string]string{"backend": string(backend)})
		if err != nil {
			result = model.PartResult{
				PartNumber:    number,
				PartTitle:     part.Title,
				Status:        model.PartFailed,
				FailureReason: err.Error(),
			}
		}
		if partErr != nil && result.Status != model.PartFailed {
			result.Status = model.PartFailed
			result.FailureReason = "timeout"
		}

		// If the session's own context is gone by the time this part
		// returns, it was in flight when cancellation arrived: it's
		// recorded but doesn't count toward progress, and no further
		// parts start.
		if ctx.Err() != nil {
			result.Status = model.PartFailed
			result.FailureReason = "canceled"
			session.PartResults[number] = result
			session.Status = model.SessionCanceled
			o.metrics.IncCounter("analysis_parts_total", map[string]string{"status": "canceled"})
			if err := o.store.Save(ctx, session); err != nil {
				return err
			}
			break
		}

		o.metrics.IncCounter("analysis_parts_total", map[string]string{"status": string(result.Status)})

		// Atomic single write per part, per §3's ownership invariant.
		session.PartResults[number] = result
		completed++
		session.Progress = 100 * completed / len(selectedParts)
		if err := o.store.Save(ctx, session); err != nil {
			return err
		}
	}

	if session.Status != model.SessionCanceled {
		session.Status = model.SessionCompleted
	}
	finished := o.clock.Now()
	session.FinishedAt = &finished
	return o.store.Save(ctx, session)
}

func sortInts(in []int) {
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && in[j-1] > in[j]; j-- {
			in[j-1], in[j] = in[j], in[j-1]
		}
	}
}

// BuildReport computes the integrated report (§4.8) from a terminal session.
func BuildReport(session model.AnalysisSession) model.IntegratedReport {
	var sum float64
	var successCount int
	highRisk := 0
	critical := 0
	for _, r := range session.PartResults {
		if r.Status != model.PartDone {
			continue
		}
		sum += r.RiskScore
		successCount++
		if r.RiskLevel == model.RiskHigh {
			highRisk++
		}
		if r.RiskLevel == model.RiskCritical {
			highRisk++
			critical++
		}
	}
	report := model.IntegratedReport{
		PartResults: session.PartResults,
		Summary: model.ReportSummary{
			TotalPartsAnalyzed: successCount,
			HighRiskParts:      highRisk,
			CriticalIssues:     critical,
		},
	}
	if successCount > 0 {
		overall := sum / float64(successCount)
		report.OverallRiskScore = &overall
		report.OverallRiskLevel = model.RiskLevelForScore(overall)
	} else if len(session.SelectedParts) == 0 {
		// selected_parts was explicitly [], not merely "nothing completed".
		zero := 0.0
		report.OverallRiskScore = &zero
		report.OverallRiskLevel = model.RiskLow
	}
	return report
}
