// Package ratelimit provides the process-wide token-rate governor shared by
// every session's LLM Client calls (§5: "The LLM Client exposes a
// per-process token-rate governor (leaky bucket) that all sessions share").
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Governor is a leaky-bucket limiter over LLM calls, shared process-wide.
type Governor struct {
	limiter *rate.Limiter
}

// NewGovernor builds a governor allowing ratePerSecond calls/second with a
// burst of burst. A ratePerSecond of 0 disables limiting (useful in tests).
func NewGovernor(ratePerSecond float64, burst int) *Governor {
	if ratePerSecond <= 0 {
		return &Governor{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Governor{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until the governor admits one call, or ctx is done.
func (g *Governor) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
