// Package retrybackoff is the shared exponential-backoff retry helper used
// by the graph store, embedding client, LLM client and analyzers, generalized from the
// reference repository's linear execWithRetry idiom.
package retrybackoff

import (
	"context"
	"time"
)

// Policy configures an exponential backoff retry loop.
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// Do runs fn, retrying on error up to MaxAttempts times with exponential
// backoff starting at InitialWait and capped at MaxWait. A nil shouldRetry
// treats every error as retryable. Returns the last error, wrapped in
// *coreerr.RetryExhaustedError-compatible form by the caller if desired.
func Do(ctx context.Context, p Policy, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	wait := p.InitialWait
	if wait <= 0 {
		wait = 250 * time.Millisecond
	}
	maxWait := p.MaxWait
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
	return lastErr
}
