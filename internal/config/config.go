// Package config loads the enumerated runtime configuration of the contract
// risk analyzer from the process environment, layered over sane defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// HybridWeights are the fusion weights for the concept-enhanced hybrid
// retriever: graph, concept, concept-expansion, hippo (vector+rerank).
type HybridWeights struct {
	Graph          float64 `yaml:"graph"`
	Concept        float64 `yaml:"concept"`
	ConceptExpand  float64 `yaml:"concept_expand"`
	Hippo          float64 `yaml:"hippo"`
}

// DefaultHybridWeights is the seed weighting named in the hybrid retriever's
// design; left open to tuning against a labeled set per the design notes.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Graph: 0.3, Concept: 0.25, ConceptExpand: 0.15, Hippo: 0.3}
}

// Config is the full set of enumerated configuration keys for the core.
type Config struct {
	RateLimitDelay time.Duration
	LLMModel       string
	LLMProvider    string // "anthropic" | "openai" | "gemini" | "deterministic"
	EmbeddingModel string
	TopNDefault    int
	HybridWeights  HybridWeights

	SessionTimeout time.Duration
	PartTimeout    time.Duration
	LLMTimeout     time.Duration
	MaxRetries     int

	GraphURI      string
	GraphUser     string
	GraphPassword string
	GraphDatabase string

	LogLevel string

	ChecklistPath string // empty => use embedded catalog

	VectorBackend    string // "memory" | "qdrant"
	VectorDSN        string
	VectorCollection string
	VectorDimension  int

	SessionStoreBackend string // "memory" | "redis"
	SessionStoreDSN     string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
}

// Load reads configuration from the environment (optionally a local .env,
// which is overlaid so repo-local defaults win in development) and applies
// defaults for anything left unset.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		RateLimitDelay:      2 * time.Second,
		LLMModel:            "claude-3-5-sonnet-latest",
		LLMProvider:         "deterministic",
		EmbeddingModel:      "text-embedding-3-small",
		TopNDefault:         15,
		HybridWeights:       DefaultHybridWeights(),
		SessionTimeout:      1800 * time.Second,
		PartTimeout:         300 * time.Second,
		LLMTimeout:          60 * time.Second,
		MaxRetries:          5,
		LogLevel:            "info",
		VectorBackend:       "memory",
		VectorDimension:     64,
		SessionStoreBackend: "memory",
	}

	if v := envFloat("RATE_LIMIT_DELAY"); v != nil {
		cfg.RateLimitDelay = time.Duration(*v * float64(time.Second))
	}
	cfg.LLMModel = envOr("LLM_MODEL", cfg.LLMModel)
	cfg.LLMProvider = envOr("LLM_PROVIDER", cfg.LLMProvider)
	cfg.EmbeddingModel = envOr("EMBEDDING_MODEL", cfg.EmbeddingModel)
	if v := envInt("TOPN_DEFAULT"); v != nil {
		cfg.TopNDefault = *v
	}
	if g := envFloat("HYBRID_WEIGHT_GRAPH"); g != nil {
		cfg.HybridWeights.Graph = *g
	}
	if c := envFloat("HYBRID_WEIGHT_CONCEPT"); c != nil {
		cfg.HybridWeights.Concept = *c
	}
	if e := envFloat("HYBRID_WEIGHT_CONCEPT_EXPAND"); e != nil {
		cfg.HybridWeights.ConceptExpand = *e
	}
	if h := envFloat("HYBRID_WEIGHT_HIPPO"); h != nil {
		cfg.HybridWeights.Hippo = *h
	}
	if v := envInt("SESSION_TIMEOUT_S"); v != nil {
		cfg.SessionTimeout = time.Duration(*v) * time.Second
	}
	if v := envInt("PART_TIMEOUT_S"); v != nil {
		cfg.PartTimeout = time.Duration(*v) * time.Second
	}
	if v := envInt("LLM_TIMEOUT_S"); v != nil {
		cfg.LLMTimeout = time.Duration(*v) * time.Second
	}
	if v := envInt("MAX_RETRIES"); v != nil {
		cfg.MaxRetries = *v
	}
	cfg.GraphURI = os.Getenv("GRAPH_URI")
	cfg.GraphUser = os.Getenv("GRAPH_USER")
	cfg.GraphPassword = os.Getenv("GRAPH_PASSWORD")
	cfg.GraphDatabase = os.Getenv("GRAPH_DATABASE")
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.ChecklistPath = os.Getenv("CHECKLIST_PATH")
	cfg.VectorBackend = envOr("VECTOR_BACKEND", cfg.VectorBackend)
	cfg.VectorDSN = os.Getenv("VECTOR_DSN")
	cfg.VectorCollection = envOr("VECTOR_COLLECTION", "passages")
	if v := envInt("VECTOR_DIMENSION"); v != nil {
		cfg.VectorDimension = *v
	}
	cfg.SessionStoreBackend = envOr("SESSION_STORE_BACKEND", cfg.SessionStoreBackend)
	cfg.SessionStoreDSN = os.Getenv("SESSION_STORE_DSN")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c Config) Validate() error {
	if c.TopNDefault <= 0 {
		return fmt.Errorf("config: topN_default must be positive, got %d", c.TopNDefault)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must be non-negative, got %d", c.MaxRetries)
	}
	switch c.VectorBackend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("config: unsupported vector_backend %q", c.VectorBackend)
	}
	switch c.SessionStoreBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported session_store_backend %q", c.SessionStoreBackend)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string) *int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envFloat(key string) *float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
