package embeddingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/ratelimit"
	"contractrisk/internal/retrybackoff"
)

// HTTPConfig describes an OpenAI-compatible embedding endpoint.
type HTTPConfig struct {
	BaseURL   string
	Path      string
	Model     string
	APIKey    string
	APIHeader string // defaults to "Authorization" (Bearer-prefixed)
	Timeout   time.Duration
	Dimension int
}

// httpEmbedder calls a remote embedding endpoint one request per call,
// gated by a shared rate governor and retried with exponential backoff on
// transient failures.
type httpEmbedder struct {
	cfg       HTTPConfig
	client    *http.Client
	governor  *ratelimit.Governor
	retry     retrybackoff.Policy
}

// NewHTTP constructs an Embedder backed by an HTTP endpoint. governor may be
// nil, in which case calls are unrestricted.
func NewHTTP(cfg HTTPConfig, governor *ratelimit.Governor) Embedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpEmbedder{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		governor: governor,
		retry:    retrybackoff.Policy{MaxAttempts: 3, InitialWait: 500 * time.Millisecond, MaxWait: 5 * time.Second},
	}
}

func (h *httpEmbedder) Name() string   { return h.cfg.Model }
func (h *httpEmbedder) Dimension() int { return h.cfg.Dimension }

func (h *httpEmbedder) Ping(ctx context.Context) error {
	_, err := h.callOnce(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embeddingclient: reachability check failed: %w", err)
	}
	return nil
}

// EmbedBatch sends one HTTP request per input text to stay compatible with
// embedding servers that reject batched inference.
func (h *httpEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if h.governor != nil {
			if err := h.governor.Wait(ctx); err != nil {
				return out, err
			}
		}
		var embedding []float32
		err := retrybackoff.Do(ctx, h.retry, isTransient, func(ctx context.Context) error {
			vecs, err := h.callOnce(ctx, []string{t})
			if err != nil {
				return err
			}
			embedding = vecs[0]
			return nil
		})
		if err != nil {
			return out, err
		}
		out = append(out, embedding)
	}
	return out, nil
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (h *httpEmbedder) callOnce(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedReq{Model: h.cfg.Model, Input: inputs})
	if err != nil {
		return nil, err
	}
	url := h.cfg.BaseURL + h.cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	header := h.cfg.APIHeader
	if header == "" {
		header = "Authorization"
	}
	if h.cfg.APIKey != "" {
		if header == "Authorization" {
			req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
		} else {
			req.Header.Set(header, h.cfg.APIKey)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: embedding endpoint %s: %s", coreerr.ErrStoreUnavailable, resp.Status, string(respBytes))
		}
		return nil, fmt.Errorf("embedding endpoint error %s: %s", resp.Status, string(respBytes))
	}
	var er embedResp
	if err := json.Unmarshal(respBytes, &er); err != nil {
		return nil, fmt.Errorf("%w: parse embedding response: %v", coreerr.ErrParseError, err)
	}
	if len(er.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddingclient: expected %d embeddings, got %d", len(inputs), len(er.Data))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

func isTransient(err error) bool {
	return errors.Is(err, coreerr.ErrStoreUnavailable)
}
