package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernor_ZeroRateDisablesLimiting(t *testing.T) {
	g := NewGovernor(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 100; i++ {
		require.NoError(t, g.Wait(ctx))
	}
}

func TestGovernor_WaitRespectsContextDeadline(t *testing.T) {
	g := NewGovernor(1, 1)
	require.NoError(t, g.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	err := g.Wait(ctx)
	assert.Error(t, err)
}
