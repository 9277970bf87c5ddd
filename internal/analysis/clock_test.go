package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_Sleep_ReturnsAfterDuration(t *testing.T) {
	c := SystemClock{}
	start := c.Now()
	err := c.Sleep(context.Background(), 10*time.Millisecond)
	assert.NoError(t, err)
	assert.True(t, c.Now().Sub(start) >= 10*time.Millisecond)
}

func TestSystemClock_Sleep_ZeroDurationReturnsImmediately(t *testing.T) {
	c := SystemClock{}
	assert.NoError(t, c.Sleep(context.Background(), 0))
}

func TestSystemClock_Sleep_CancelsWithContext(t *testing.T) {
	c := SystemClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
