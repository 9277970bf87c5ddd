package llmclient

import (
	"context"
	"errors"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/ratelimit"
	"contractrisk/internal/retrybackoff"
)

// RetryingProvider decorates a Provider with the process-wide token-rate
// governor (§5: "a per-process token-rate governor (leaky bucket) that all
// sessions share") and exponential-backoff retry on transient errors.
type RetryingProvider struct {
	inner    Provider
	governor *ratelimit.Governor
	policy   retrybackoff.Policy
}

// NewRetryingProvider wraps inner. governor may be nil to disable rate
// limiting (e.g. in tests against the deterministic provider).
func NewRetryingProvider(inner Provider, governor *ratelimit.Governor, policy retrybackoff.Policy) *RetryingProvider {
	return &RetryingProvider{inner: inner, governor: governor, policy: policy}
}

func (r *RetryingProvider) Name() string { return r.inner.Name() }

func (r *RetryingProvider) Chat(ctx context.Context, req Request) (Response, error) {
	if r.governor != nil {
		if err := r.governor.Wait(ctx); err != nil {
			return Response{}, err
		}
	}
	var resp Response
	attempts := 0
	err := retrybackoff.Do(ctx, r.policy, func(err error) bool {
		return errors.Is(err, coreerr.ErrLLMTransient)
	}, func(ctx context.Context) error {
		attempts++
		var callErr error
		resp, callErr = r.inner.Chat(ctx, req)
		return callErr
	})
	if err != nil {
		if errors.Is(err, coreerr.ErrLLMTransient) {
			return Response{}, &coreerr.RetryExhaustedError{Op: "llm_chat", Attempts: attempts, Last: err}
		}
		return Response{}, err
	}
	return resp, nil
}
