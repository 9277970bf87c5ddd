package analysis

import (
	"context"
	"sync"
	"time"

	"contractrisk/internal/llmclient"
)

// fakeClock is a controllable Clock: Now() advances by a fixed step on each
// Sleep call, and Sleep never actually blocks, so tests run instantly.
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
	sleeps  int
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Unix(0, 0), step: time.Second}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Sleep(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps++
	c.current = c.current.Add(c.step)
	c.mu.Unlock()
	return nil
}

// scriptedProvider returns canned JSON content in order, repeating the last
// entry once exhausted, and counts calls made to it.
type scriptedProvider struct {
	mu       sync.Mutex
	contents []string
	calls    int
	err      error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(_ context.Context, _ llmclient.Request) (llmclient.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	p.calls++
	if p.err != nil {
		return llmclient.Response{}, p.err
	}
	if idx >= len(p.contents) {
		idx = len(p.contents) - 1
	}
	return llmclient.Response{Content: p.contents[idx]}, nil
}

var _ llmclient.Provider = (*scriptedProvider)(nil)
