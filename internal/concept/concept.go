// Package concept implements the Concept Extractor (§4.3): turns free text
// into a deduplicated list of short noun-phrase concepts with embeddings.
package concept

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/embeddingclient"
	"contractrisk/internal/model"
	"contractrisk/internal/ratelimit"

	"github.com/google/uuid"
)

const maxInputBytes = 4 * 1024

// Extractor extracts noun-phrase concepts and embeds them in one batch.
type Extractor struct {
	embedder embeddingclient.Embedder
	governor *ratelimit.Governor
	minLen   int
	maxLen   int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPhraseLength bounds the token length of extracted phrases (default 1-5).
func WithPhraseLength(min, max int) Option {
	return func(e *Extractor) { e.minLen, e.maxLen = min, max }
}

// WithGovernor rate-limits the embedding call, surfacing coreerr.ErrExtractorBusy
// when the caller should back off and retry.
func WithGovernor(g *ratelimit.Governor) Option {
	return func(e *Extractor) { e.governor = g }
}

// New constructs an Extractor backed by embedder.
func New(embedder embeddingclient.Embedder, opts ...Option) *Extractor {
	e := &Extractor{embedder: embedder, minLen: 1, maxLen: 5}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns deduplicated (by lowercased text) concepts found in text,
// each with an embedding. Returns an empty slice for empty input.
func (e *Extractor) Extract(ctx context.Context, text string) ([]model.Concept, error) {
	if len(text) > maxInputBytes {
		text = text[:maxInputBytes]
	}
	phrases := extractPhrases(text, e.minLen, e.maxLen)
	if len(phrases) == 0 {
		return nil, nil
	}

	if e.governor != nil {
		if err := e.governor.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", coreerr.ErrExtractorBusy, err)
		}
	}

	texts := make([]string, len(phrases))
	for i, p := range phrases {
		texts[i] = p
	}
	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(phrases) {
		return nil, errors.New("concept: embedding count mismatch")
	}

	out := make([]model.Concept, len(phrases))
	for i, p := range phrases {
		out[i] = model.Concept{
			ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(p))).String(),
			Text:      p,
			Embedding: embeddings[i],
		}
	}
	return out, nil
}

// extractPhrases tokenizes text, filters stopwords and punctuation-only
// tokens, then emits every contiguous run of 1..maxLen surviving tokens as a
// candidate noun phrase, deduplicated by lowercased text in first-seen order.
func extractPhrases(text string, minLen, maxLen int) []string {
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen <= 0 || maxLen < minLen {
		maxLen = 5
	}
	runs := tokenRuns(text)

	seen := make(map[string]bool)
	var out []string
	for _, run := range runs {
		for start := 0; start < len(run); start++ {
			for length := minLen; length <= maxLen && start+length <= len(run); length++ {
				phrase := strings.Join(run[start:start+length], " ")
				key := strings.ToLower(phrase)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, phrase)
			}
		}
	}
	return out
}

// tokenRuns splits text into words, then breaks it into maximal runs of
// consecutive non-stopword tokens (a stopword or sentence punctuation ends
// a run, so phrases never span across them).
func tokenRuns(text string) [][]string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '-')
	})
	var runs [][]string
	var current []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		if isStopWord(strings.ToLower(f)) {
			if len(current) > 0 {
				runs = append(runs, current)
				current = nil
			}
			continue
		}
		current = append(current, f)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "as": true, "from": true, "shall": true,
	"will": true, "may": true, "not": true, "any": true, "such": true,
}

func isStopWord(word string) bool {
	return stopWords[word]
}
