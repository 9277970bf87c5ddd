package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNew_ParsesKnownLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", &buf)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New("not-a-level", &buf)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestNew_NilWriterDefaultsToStdout(t *testing.T) {
	assert.NotPanics(t, func() { New("info", nil) })
}

func TestNew_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", &buf)
	l.Info().Str("k", "v").Msg("hello")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "hello", decoded["message"])
	assert.Equal(t, "v", decoded["k"])
}

func TestComponent_TagsComponentName(t *testing.T) {
	var buf bytes.Buffer
	base := New("info", &buf)
	l := Component(base, "retriever")
	l.Info().Msg("ping")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "retriever", decoded["component"])
}

func TestWithContext_NilContextReturnsLoggerUnchanged(t *testing.T) {
	var buf bytes.Buffer
	base := New("info", &buf)
	out := WithContext(nil, base)
	assert.Equal(t, base, out)
}

func TestWithContext_NoSpanLeavesLoggerUnchanged(t *testing.T) {
	var buf bytes.Buffer
	base := New("info", &buf)
	out := WithContext(context.Background(), base)
	assert.Equal(t, base, out)
}

func TestWithContext_SampledSpanAddsTraceAndSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	base := New("info", &buf)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	out := WithContext(ctx, base)
	out.Info().Msg("traced")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, traceID.String(), decoded["trace_id"])
	assert.Equal(t, spanID.String(), decoded["span_id"])
	assert.Equal(t, true, decoded["trace_sampled"])
}
