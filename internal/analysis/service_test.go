package analysis

import (
	"context"
	"testing"
	"time"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/model"
	"contractrisk/internal/sessionstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestService(t *testing.T, runner PartRunner) (*Service, sessionstore.Store) {
	t.Helper()
	cat := buildCatalog(t)
	store := sessionstore.NewMemoryStore()
	orch := NewOrchestrator(cat, store, newFakeClock(), time.Minute)
	hybrid := buildRetriever(t, "termination for convenience upon notice")
	svc := NewService(cat, store, orch, hybrid, func(context.Context, model.AnalysisBackend, string) PartRunner {
		return runner
	})
	return svc, store
}

func waitForTerminal(t *testing.T, svc *Service, id string) StatusOutput {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := svc.GetStatus(context.Background(), id)
		require.NoError(t, err)
		switch status.Status {
		case model.SessionCompleted, model.SessionFailed, model.SessionCanceled:
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s did not reach a terminal state in time, last status %v", id, status.Status)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestService_StartAnalysis_RejectsMissingContractID(t *testing.T) {
	svc, _ := buildTestService(t, &scriptedRunner{})

	_, err := svc.StartAnalysis(context.Background(), StartAnalysisInput{ContractID: "", ContractText: "text"})
	assert.ErrorIs(t, err, coreerr.ErrBadInput)
}

func TestService_StartAnalysis_EmptyContractTextFailsEveryPartWithNoContext(t *testing.T) {
	svc, _ := buildTestService(t, &scriptedRunner{})

	id, err := svc.StartAnalysis(context.Background(), StartAnalysisInput{
		ContractID:    "id",
		ContractText:  "",
		SelectedParts: []int{1, 2},
	})
	require.NoError(t, err)

	status := waitForTerminal(t, svc, id)
	assert.Equal(t, model.SessionCompleted, status.Status)

	part, err := svc.GetPart(context.Background(), id, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PartFailed, part.Status)
	assert.Equal(t, "no_context", part.FailureReason)

	report, err := svc.GetReport(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, report.OverallRiskScore)
}

func TestService_StartAnalysis_RunsToCompletionAsynchronously(t *testing.T) {
	svc, _ := buildTestService(t, &scriptedRunner{})

	id, err := svc.StartAnalysis(context.Background(), StartAnalysisInput{
		ContractID:    "contract1",
		ContractText:  "full text",
		ContractName:  "MSA",
		SelectedParts: []int{1, 2},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	status := waitForTerminal(t, svc, id)
	assert.Equal(t, model.SessionCompleted, status.Status)
	assert.Equal(t, 2, status.CompletedParts)

	report, err := svc.GetReport(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, report.OverallRiskScore)
}

func TestService_StartAnalysis_DefaultsToHybridBackend(t *testing.T) {
	var seenBackend model.AnalysisBackend
	cat := buildCatalog(t)
	store := sessionstore.NewMemoryStore()
	orch := NewOrchestrator(cat, store, newFakeClock(), time.Minute)
	hybrid := buildRetriever(t, "termination clause")
	svc := NewService(cat, store, orch, hybrid, func(_ context.Context, backend model.AnalysisBackend, _ string) PartRunner {
		seenBackend = backend
		return &scriptedRunner{}
	})

	id, err := svc.StartAnalysis(context.Background(), StartAnalysisInput{ContractID: "c1", ContractText: "t"})
	require.NoError(t, err)
	waitForTerminal(t, svc, id)
	assert.Equal(t, model.BackendHybrid, seenBackend)
}

func TestService_GetStatus_UnknownIDReturnsNotFound(t *testing.T) {
	svc, _ := buildTestService(t, &scriptedRunner{})
	_, err := svc.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, coreerr.ErrNotFound)
}

func TestService_GetPart_BeforeAnalyzedReturnsNotReady(t *testing.T) {
	svc, store := buildTestService(t, &scriptedRunner{})
	require.NoError(t, store.Save(context.Background(), model.AnalysisSession{
		ID:          "sess1",
		Status:      model.SessionRunning,
		PartResults: map[int]model.PartResult{1: {PartNumber: 1, Status: model.PartDone}},
	}))

	_, err := svc.GetPart(context.Background(), "sess1", 2)
	assert.ErrorIs(t, err, coreerr.ErrNotReady)

	part, err := svc.GetPart(context.Background(), "sess1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, part.PartNumber)
}

func TestService_GetPart_UnknownSessionReturnsNotFound(t *testing.T) {
	svc, _ := buildTestService(t, &scriptedRunner{})
	_, err := svc.GetPart(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, coreerr.ErrNotFound)
}

func TestService_GetReport_WhileRunningReturnsNotReady(t *testing.T) {
	svc, store := buildTestService(t, &scriptedRunner{})
	require.NoError(t, store.Save(context.Background(), model.AnalysisSession{ID: "sess1", Status: model.SessionRunning}))

	_, err := svc.GetReport(context.Background(), "sess1")
	assert.ErrorIs(t, err, coreerr.ErrNotReady)
}

func TestService_GetReport_SucceedsForEachTerminalStatus(t *testing.T) {
	svc, store := buildTestService(t, &scriptedRunner{})
	for _, status := range []model.SessionStatus{model.SessionCompleted, model.SessionFailed, model.SessionCanceled} {
		id := "sess-" + string(status)
		require.NoError(t, store.Save(context.Background(), model.AnalysisSession{
			ID:     id,
			Status: status,
			PartResults: map[int]model.PartResult{
				1: {PartNumber: 1, Status: model.PartDone, RiskScore: 1, RiskLevel: model.RiskLow},
			},
		}))
		_, err := svc.GetReport(context.Background(), id)
		assert.NoError(t, err, "status %s should be terminal enough to report", status)
	}
}

func TestService_ListSaved_ReturnsSummaries(t *testing.T) {
	svc, store := buildTestService(t, &scriptedRunner{})
	require.NoError(t, store.Save(context.Background(), model.AnalysisSession{ID: "sess1", ContractID: "c1", Status: model.SessionCompleted}))

	summaries, err := svc.ListSaved(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "sess1", summaries[0].ID)
}

func TestService_Cancel_UnknownIDReturnsNotFound(t *testing.T) {
	svc, _ := buildTestService(t, &scriptedRunner{})
	err := svc.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, coreerr.ErrNotFound)
}

func TestService_Cancel_StopsARunningSession(t *testing.T) {
	runner := &scriptedRunner{blockNumbers: map[int]bool{1: true}, blockDuration: 5 * time.Second}
	svc, _ := buildTestService(t, runner)

	id, err := svc.StartAnalysis(context.Background(), StartAnalysisInput{
		ContractID:    "c1",
		ContractText:  "t",
		SelectedParts: []int{1, 2, 3},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), id))
	status := waitForTerminal(t, svc, id)
	assert.Equal(t, model.SessionCanceled, status.Status)
}

func TestService_HybridRetrieve_DelegatesToRetriever(t *testing.T) {
	svc, _ := buildTestService(t, &scriptedRunner{})
	result, err := svc.HybridRetrieve(context.Background(), "termination", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Passages)
}
