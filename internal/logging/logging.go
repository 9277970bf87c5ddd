// Package logging wires zerolog as the ambient structured logger for every
// component, enriching records with OpenTelemetry trace/span ids when a
// span is present on the context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// New builds the process-wide base logger at the given level ("debug",
// "info", "warn", "error"), writing JSON lines to w.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the owning component name.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// WithContext returns l enriched with trace_id/span_id from ctx when ctx
// carries a span context with a trace id, plus trace_sampled=true when that
// span is sampled. Mirrors the reference repo's ctxlogger helper.
func WithContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return l
	}
	out := l.With().Str("trace_id", sc.TraceID().String())
	if sc.HasSpanID() {
		out = out.Str("span_id", sc.SpanID().String())
	}
	if sc.IsSampled() {
		out = out.Bool("trace_sampled", true)
	}
	return out.Logger()
}
