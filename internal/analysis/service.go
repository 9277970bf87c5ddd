package analysis

import (
	"context"
	"fmt"
	"sync"

	"contractrisk/internal/checklist"
	"contractrisk/internal/coreerr"
	"contractrisk/internal/model"
	"contractrisk/internal/retrieve"
	"contractrisk/internal/sessionstore"

	"github.com/google/uuid"
)

// Service exposes the transport-agnostic operations of §6 as plain Go
// methods: start_analysis, get_status, get_part, get_report, list_saved,
// cancel, hybrid_retrieve.
type Service struct {
	catalog      *checklist.Catalog
	store        sessionstore.Store
	orchestrator *Orchestrator
	hybrid       *retrieve.HybridRetriever
	newPartRun   func(ctx context.Context, backend model.AnalysisBackend, contractText string) PartRunner

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService wires an analysis Service. newPartRun builds the PartRunner
// for a session (hybrid PartAnalyzer or GPTOnlyAnalyzer) given the caller's
// requested backend and, for the GPT-only backend, the raw contract text.
func NewService(catalog *checklist.Catalog, store sessionstore.Store, orchestrator *Orchestrator, hybrid *retrieve.HybridRetriever, newPartRun func(ctx context.Context, backend model.AnalysisBackend, contractText string) PartRunner) *Service {
	return &Service{
		catalog:      catalog,
		store:        store,
		orchestrator: orchestrator,
		hybrid:       hybrid,
		newPartRun:   newPartRun,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// StartAnalysisInput mirrors the start_analysis operation's input shape.
// SelectedParts distinguishes "omitted" (nil, defaults to every catalog
// part) from "explicitly []" (runs nothing, session completes immediately
// with an empty report) — callers must pass nil, not an empty non-nil
// slice, when the field is simply unset.
type StartAnalysisInput struct {
	ContractID    string
	ContractText  string
	ContractName  string
	SelectedParts []int
	Backend       model.AnalysisBackend
}

// StartAnalysis begins a new analysis session and runs it asynchronously,
// returning its id immediately.
func (s *Service) StartAnalysis(ctx context.Context, in StartAnalysisInput) (string, error) {
	if in.ContractID == "" {
		return "", fmt.Errorf("%w: contract_id is required", coreerr.ErrBadInput)
	}
	backend := in.Backend
	if backend == "" {
		backend = model.BackendHybrid
	}

	sessionID := uuid.NewString()
	// Record the session before returning its id, so get_status finds it
	// even if the run goroutine has not started yet.
	pending := model.AnalysisSession{
		ID:            sessionID,
		ContractID:    in.ContractID,
		ContractName:  in.ContractName,
		Backend:       backend,
		Status:        model.SessionPending,
		SelectedParts: in.SelectedParts,
	}
	if err := s.store.Save(ctx, pending); err != nil {
		return "", err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[sessionID] = cancel
	s.mu.Unlock()

	// An explicitly empty contract_text still runs: every part fails with
	// no_context rather than rejecting the request outright (§8 boundary
	// behavior).
	var runner PartRunner
	if in.ContractText == "" {
		runner = noContextRunner{}
	} else {
		runner = s.newPartRun(runCtx, backend, in.ContractText)
	}
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, sessionID)
			s.mu.Unlock()
		}()
		_ = s.orchestrator.Run(runCtx, runner, sessionID, in.ContractID, in.ContractName, backend, in.SelectedParts)
	}()

	return sessionID, nil
}

// StatusOutput mirrors get_status's output shape.
type StatusOutput struct {
	Status          model.SessionStatus
	Progress        int
	Message         string
	CompletedParts  int
}

// GetStatus returns the current status of a session.
func (s *Service) GetStatus(ctx context.Context, analysisID string) (StatusOutput, error) {
	session, ok, err := s.store.Get(ctx, analysisID)
	if err != nil {
		return StatusOutput{}, err
	}
	if !ok {
		return StatusOutput{}, fmt.Errorf("%w: analysis %s", coreerr.ErrNotFound, analysisID)
	}
	return StatusOutput{
		Status:         session.Status,
		Progress:       session.Progress,
		Message:        string(session.Status),
		CompletedParts: len(session.PartResults),
	}, nil
}

// GetPart returns one part's result, once the session has reached it.
func (s *Service) GetPart(ctx context.Context, analysisID string, partNumber int) (model.PartResult, error) {
	session, ok, err := s.store.Get(ctx, analysisID)
	if err != nil {
		return model.PartResult{}, err
	}
	if !ok {
		return model.PartResult{}, fmt.Errorf("%w: analysis %s", coreerr.ErrNotFound, analysisID)
	}
	part, ok := session.PartResults[partNumber]
	if !ok {
		return model.PartResult{}, fmt.Errorf("%w: part %d not yet analyzed", coreerr.ErrNotReady, partNumber)
	}
	return part, nil
}

// GetReport returns the integrated report of a terminal session.
func (s *Service) GetReport(ctx context.Context, analysisID string) (model.IntegratedReport, error) {
	session, ok, err := s.store.Get(ctx, analysisID)
	if err != nil {
		return model.IntegratedReport{}, err
	}
	if !ok {
		return model.IntegratedReport{}, fmt.Errorf("%w: analysis %s", coreerr.ErrNotFound, analysisID)
	}
	switch session.Status {
	case model.SessionCompleted, model.SessionFailed, model.SessionCanceled:
		return BuildReport(session), nil
	default:
		return model.IntegratedReport{}, fmt.Errorf("%w: analysis %s is still running", coreerr.ErrNotReady, analysisID)
	}
}

// ListSaved returns the O(n) session summary index.
func (s *Service) ListSaved(ctx context.Context) ([]model.SessionSummary, error) {
	return s.store.List(ctx)
}

// Cancel requests cooperative cancellation of a running session.
func (s *Service) Cancel(_ context.Context, analysisID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[analysisID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: analysis %s", coreerr.ErrNotFound, analysisID)
	}
	cancel()
	return nil
}

// HybridRetrieve exposes hybrid_retrieve directly, e.g. for an interactive
// chat surface built on top of the core.
func (s *Service) HybridRetrieve(ctx context.Context, query string, topN int) (retrieve.HybridResult, error) {
	return s.hybrid.Retrieve(ctx, query, topN)
}

// noContextRunner fails every part immediately with no_context: the runner
// used when start_analysis is given an explicitly empty contract_text.
type noContextRunner struct{}

func (noContextRunner) AnalyzePart(_ context.Context, part model.ChecklistPart) (model.PartResult, error) {
	return model.PartResult{
		PartNumber:    part.Number,
		PartTitle:     part.Title,
		Status:        model.PartFailed,
		FailureReason: "no_context",
	}, nil
}
