package llmclient

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// DeterministicProvider is a test double that fabricates a plausible JSON
// risk-analysis response from a hash of the request content, so tests are
// reproducible without calling a real model.
type DeterministicProvider struct {
	// Scripted, if set, maps a substring of the last user message to a
	// literal response to return instead of the fabricated one. Checked
	// in insertion order; first match wins.
	Scripted []ScriptedResponse
}

// ScriptedResponse pairs a substring match against the last user message
// with a literal response to return.
type ScriptedResponse struct {
	Contains string
	Content  string
}

func (p *DeterministicProvider) Name() string { return "deterministic" }

func (p *DeterministicProvider) Chat(_ context.Context, req Request) (Response, error) {
	last := lastUserContent(req.Messages)
	for _, s := range p.Scripted {
		if s.Contains != "" && strings.Contains(last, s.Contains) {
			return Response{Content: s.Content}, nil
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(last))
	sum := h.Sum32()
	score := int(sum % 6)
	status := "pass"
	switch {
	case score >= 4:
		status = "danger"
	case score >= 2:
		status = "warn"
	}
	content := fmt.Sprintf(
		`{"status":%q,"risk_score":%d,"analysis":"deterministic analysis for fixture input","recommendation":"deterministic recommendation"}`,
		status, score,
	)
	return Response{Content: content}, nil
}

func lastUserContent(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	if len(msgs) > 0 {
		return msgs[len(msgs)-1].Content
	}
	return ""
}

var _ Provider = (*DeterministicProvider)(nil)
