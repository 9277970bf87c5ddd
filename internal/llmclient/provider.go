// Package llmclient is the LLM Client component (hidden collaborator
// behind §4.7-§4.9): a multi-provider chat-completion abstraction with
// retry, a shared token-rate governor, and JSON-repair parsing for
// structured analysis output.
package llmclient

import "context"

// Message is one turn in a chat completion request.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Request is a single chat completion call.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSONSchema, when non-nil, asks the provider to constrain output to
	// this schema where the provider supports it natively; callers must
	// still validate/parse the result themselves (see ChatJSON).
	JSONSchema map[string]any
}

// Response is a single chat completion result.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Provider is the pluggable chat-completion backend.
type Provider interface {
	Chat(ctx context.Context, req Request) (Response, error)
	Name() string
}
