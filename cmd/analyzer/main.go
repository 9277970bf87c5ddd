// Command analyzer is a CLI front end over the contract risk analysis core:
// it wires the configured Graph Store, Vector Index, Embedder, LLM
// Provider, and Session Store, starts one analysis, and polls it to
// completion, printing the integrated report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"contractrisk/internal/analysis"
	"contractrisk/internal/checklist"
	"contractrisk/internal/concept"
	"contractrisk/internal/config"
	"contractrisk/internal/embeddingclient"
	"contractrisk/internal/graphstore"
	"contractrisk/internal/llmclient"
	"contractrisk/internal/logging"
	"contractrisk/internal/metrics"
	"contractrisk/internal/model"
	"contractrisk/internal/ratelimit"
	"contractrisk/internal/retrieve"
	"contractrisk/internal/retrybackoff"
	"contractrisk/internal/sessionstore"
	"contractrisk/internal/vectorindex"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

func main() {
	contractFile := flag.String("contract", "", "path to the contract text file to analyze (required)")
	contractID := flag.String("contract-id", "", "stable id for the contract (defaults to the file name)")
	contractName := flag.String("contract-name", "", "human-readable contract name")
	backendFlag := flag.String("backend", "", "analysis backend: hybrid (default) or gpt_only")
	parts := flag.String("parts", "", "comma-separated checklist part numbers to run (default: all 10)")
	pollInterval := flag.Duration("poll-interval", 2*time.Second, "status polling interval")
	flag.Parse()

	if *contractFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: analyzer -contract path/to/contract.txt [-backend hybrid|gpt_only] [-parts 1,2,3]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, os.Stderr)
	log = logging.Component(log, "analyzer-cli")

	contractText, err := os.ReadFile(*contractFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *contractFile).Msg("read contract file")
	}
	id := *contractID
	if id == "" {
		id = *contractFile
	}

	ctx := context.Background()

	meterProvider := metrics.NewMeterProvider()
	defer meterProvider.Shutdown(ctx) //nolint:errcheck
	otel.SetMeterProvider(meterProvider)

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wire analysis service")
	}

	backend := model.BackendHybrid
	if *backendFlag == string(model.BackendGPTOnly) {
		backend = model.BackendGPTOnly
	}

	selected, err := parseParts(*parts)
	if err != nil {
		log.Fatal().Err(err).Msg("parse -parts")
	}

	analysisID, err := svc.StartAnalysis(ctx, analysis.StartAnalysisInput{
		ContractID:    id,
		ContractText:  string(contractText),
		ContractName:  *contractName,
		SelectedParts: selected,
		Backend:       backend,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("start analysis")
	}
	log.Info().Str("analysis_id", analysisID).Str("backend", string(backend)).Msg("analysis started")

	for {
		status, err := svc.GetStatus(ctx, analysisID)
		if err != nil {
			log.Fatal().Err(err).Msg("get status")
		}
		log.Info().
			Str("status", string(status.Status)).
			Int("progress", status.Progress).
			Int("completed_parts", status.CompletedParts).
			Msg("analysis progress")

		switch status.Status {
		case model.SessionCompleted, model.SessionFailed, model.SessionCanceled:
			report, err := svc.GetReport(ctx, analysisID)
			if err != nil {
				log.Fatal().Err(err).Msg("get report")
			}
			printReport(report)
			return
		}
		time.Sleep(*pollInterval)
	}
}

func parseParts(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var out []int
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				var n int
				if _, err := fmt.Sscanf(raw[start:i], "%d", &n); err != nil {
					return nil, fmt.Errorf("invalid part number %q: %w", raw[start:i], err)
				}
				out = append(out, n)
			}
			start = i + 1
		}
	}
	return out, nil
}

func printReport(report model.IntegratedReport) {
	fmt.Println("\n=== Integrated Report ===")
	if report.OverallRiskScore != nil {
		fmt.Printf("Overall risk score: %.1f (%s)\n", *report.OverallRiskScore, report.OverallRiskLevel)
	} else {
		fmt.Println("Overall risk score: unavailable (no part completed successfully)")
	}
	fmt.Printf("Parts analyzed: %d, high-risk: %d, critical: %d\n",
		report.Summary.TotalPartsAnalyzed, report.Summary.HighRiskParts, report.Summary.CriticalIssues)
	for number := 1; number <= 10; number++ {
		part, ok := report.PartResults[number]
		if !ok {
			continue
		}
		fmt.Printf("\nPart %d: %s [%s, score %.1f]\n", part.PartNumber, part.PartTitle, part.RiskLevel, part.RiskScore)
		if part.Status != model.PartDone {
			fmt.Printf("  status: %s (%s)\n", part.Status, part.FailureReason)
			continue
		}
		for _, rec := range part.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}

// buildService wires the Graph Store, Vector Index, Embedder, LLM Provider,
// and Session Store per cfg, and assembles them into the analysis Service.
func buildService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*analysis.Service, error) {
	store, err := buildGraphStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	index, err := buildVectorIndex(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	sessions, err := buildSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	governor := ratelimit.NewGovernor(4, 4)
	embedder := embeddingclient.NewDeterministic(cfg.VectorDimension, true, 1)
	provider, err := buildLLMProvider(ctx, cfg, governor)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	m := metrics.NewOtel("contractrisk")

	extractor := concept.New(embedder, concept.WithGovernor(governor))
	lkg := retrieve.NewLKGRetriever(store, 5)
	hippo := retrieve.NewHippoRetriever(index, store, embedder, retrieve.NoopReranker{})
	hybrid := retrieve.NewHybridRetriever(lkg, hippo, extractor, store, index, retrieve.Weights{
		Graph:         cfg.HybridWeights.Graph,
		Concept:       cfg.HybridWeights.Concept,
		ConceptExpand: cfg.HybridWeights.ConceptExpand,
		Hippo:         cfg.HybridWeights.Hippo,
	}).WithMetrics(m)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("checklist catalog: %w", err)
	}

	orchestrator := analysis.NewOrchestrator(catalog, sessions, analysis.SystemClock{}, cfg.PartTimeout).WithMetrics(m)

	partCfg := analysis.PartAnalyzerConfig{
		Model:             cfg.LLMModel,
		RateLimitDelay:    cfg.RateLimitDelay,
		LLMTimeoutPerCall: cfg.LLMTimeout,
		MaxRetries:        cfg.MaxRetries,
	}
	newRunner := func(_ context.Context, backend model.AnalysisBackend, contractText string) analysis.PartRunner {
		if backend == model.BackendGPTOnly {
			return analysis.NewGPTOnlyAnalyzer(provider, analysis.SystemClock{}, partCfg, contractText, 0)
		}
		return analysis.NewPartAnalyzer(hybrid, provider, analysis.SystemClock{}, partCfg)
	}

	return analysis.NewService(catalog, sessions, orchestrator, hybrid, newRunner), nil
}

func loadCatalog(cfg config.Config) (*checklist.Catalog, error) {
	if cfg.ChecklistPath == "" {
		return checklist.Load()
	}
	data, err := os.ReadFile(cfg.ChecklistPath)
	if err != nil {
		return nil, err
	}
	return checklist.LoadBytes(data)
}

func buildGraphStore(ctx context.Context, cfg config.Config) (graphstore.GraphStore, error) {
	if cfg.GraphURI == "" {
		return graphstore.NewMemoryStore(), nil
	}
	return graphstore.OpenPostgresStore(ctx, cfg.GraphURI)
}

func buildVectorIndex(ctx context.Context, cfg config.Config) (vectorindex.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		return vectorindex.NewQdrantIndex(ctx, cfg.VectorDSN, cfg.VectorCollection, cfg.VectorDimension)
	default:
		return vectorindex.NewMemoryIndex(cfg.VectorDimension), nil
	}
}

func buildSessionStore(ctx context.Context, cfg config.Config) (sessionstore.Store, error) {
	switch cfg.SessionStoreBackend {
	case "redis":
		return sessionstore.NewRedisStore(ctx, cfg.SessionStoreDSN)
	default:
		return sessionstore.NewMemoryStore(), nil
	}
}

func buildLLMProvider(ctx context.Context, cfg config.Config, governor *ratelimit.Governor) (llmclient.Provider, error) {
	policy := retrybackoff.Policy{MaxAttempts: cfg.MaxRetries, InitialWait: time.Second, MaxWait: 30 * time.Second}

	var inner llmclient.Provider
	switch cfg.LLMProvider {
	case "anthropic":
		inner = llmclient.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.LLMModel)
	case "openai":
		inner = llmclient.NewOpenAIProvider(cfg.OpenAIAPIKey, "", cfg.LLMModel)
	case "gemini":
		var err error
		inner, err = llmclient.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
	default:
		inner = &llmclient.DeterministicProvider{}
	}
	return llmclient.NewRetryingProvider(inner, governor, policy), nil
}
