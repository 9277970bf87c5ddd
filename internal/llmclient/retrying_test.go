package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"contractrisk/internal/coreerr"
	"contractrisk/internal/retrybackoff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapProviderError_ClassifiesTransient(t *testing.T) {
	err := wrapProviderError("anthropic", errors.New("429 Too Many Requests"))
	assert.ErrorIs(t, err, coreerr.ErrLLMTransient)
}

func TestWrapProviderError_ClassifiesPermanent(t *testing.T) {
	err := wrapProviderError("openai", errors.New("401 invalid api key"))
	assert.ErrorIs(t, err, coreerr.ErrLLMPermanent)
}

type flakyProvider struct {
	failuresLeft int
	failWith     error
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) Chat(_ context.Context, _ Request) (Response, error) {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return Response{}, f.failWith
	}
	return Response{Content: "ok"}, nil
}

func TestRetryingProvider_RetriesTransientErrors(t *testing.T) {
	inner := &flakyProvider{failuresLeft: 2, failWith: coreerr.ErrLLMTransient}
	r := NewRetryingProvider(inner, nil, testPolicy())

	resp, err := r.Chat(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestRetryingProvider_FailsFastOnPermanentError(t *testing.T) {
	inner := &flakyProvider{failuresLeft: 1, failWith: coreerr.ErrLLMPermanent}
	r := NewRetryingProvider(inner, nil, testPolicy())

	_, err := r.Chat(context.Background(), Request{})
	assert.ErrorIs(t, err, coreerr.ErrLLMPermanent)
}

func TestRetryingProvider_ExhaustsIntoRetryExhaustedError(t *testing.T) {
	inner := &flakyProvider{failuresLeft: 100, failWith: coreerr.ErrLLMTransient}
	r := NewRetryingProvider(inner, nil, testPolicy())

	_, err := r.Chat(context.Background(), Request{})
	var exhausted *coreerr.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "llm_chat", exhausted.Op)
}

func testPolicy() retrybackoff.Policy {
	return retrybackoff.Policy{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}
