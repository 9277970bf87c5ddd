package analysis

import (
	"context"
	"time"
)

// Clock abstracts wall-clock time and sleeping, generalized from the
// reference repository's rag/service options.Clock so tests can run a part
// analysis without waiting out real rate_limit_delay pauses.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
