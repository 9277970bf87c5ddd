// Package coreerr defines the error taxonomy shared by every component: a
// handful of sentinel errors compared with errors.Is, plus typed wrapper
// errors where a sentinel alone would lose useful context. No error carries
// a dynamic map payload.
package coreerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers classify an error by errors.Is against these,
// not by inspecting strings.
var (
	// ErrBadInput is caller-facing and never retried.
	ErrBadInput = errors.New("bad input")
	// ErrNotFound is caller-facing, 404-shaped.
	ErrNotFound = errors.New("not found")
	// ErrNotReady is caller-facing, 409-shaped.
	ErrNotReady = errors.New("not ready")
	// ErrStoreUnavailable is transient infrastructure failure, retried by the
	// caller up to N times with exponential backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrLLMTransient covers rate-limit, timeout, and 5xx responses; retried
	// internally by the LLM client.
	ErrLLMTransient = errors.New("llm transient error")
	// ErrLLMPermanent covers invalid-request/auth failures; the current item
	// falls back to a parse-error result and the part continues.
	ErrLLMPermanent = errors.New("llm permanent error")
	// ErrParseError never propagates past the part analyzer; it always
	// resolves to the parse-error fallback item result.
	ErrParseError = errors.New("parse error")
	// ErrRetrievalUnavailable means every sub-retriever in the hybrid
	// retriever failed; the part is marked FAILED and analysis continues.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrTimeout is mapped to the nearest of the above by the caller before
	// being surfaced further.
	ErrTimeout = errors.New("timeout")
	// ErrExtractorBusy signals concept-extractor rate limiting; retried by
	// the caller.
	ErrExtractorBusy = errors.New("concept extractor busy")
)

// RetryExhaustedError reports that a retry loop gave up after Attempts
// tries, wrapping the last underlying error.
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// PartTimeoutError reports a soft per-part timeout breach (§5).
type PartTimeoutError struct {
	PartNumber int
}

func (e *PartTimeoutError) Error() string {
	return fmt.Sprintf("part %d: soft timeout exceeded", e.PartNumber)
}

func (e *PartTimeoutError) Is(target error) bool { return target == ErrTimeout }
