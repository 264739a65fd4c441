// Package tracing provides lightweight in-process spans. A span carries the
// request's trace id through context; child spans inherit it, and every span
// emits one structured log line when it ends. There is no external trace
// backend, the slog output is the trace.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanCtxKey struct{}

// Span is a timed operation within a request.
type Span struct {
	name    string
	traceID string
	start   time.Time

	mu    sync.Mutex
	attrs []any
}

// StartSpan begins a root span for a request. traceID is typically the
// request id assigned by the gateway.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanCtxKey{}, s), s
}

// StartChildSpan begins a span under the one stored in ctx, inheriting its
// trace id. Without a parent the child starts an unidentified trace.
func (s *Span) child(name string) *Span {
	return &Span{name: name, traceID: s.traceID, start: time.Now()}
}

func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	var child *Span
	if parent := SpanFromContext(ctx); parent != nil {
		child = parent.child(name)
	} else {
		child = &Span{name: name, start: time.Now()}
	}
	return context.WithValue(ctx, spanCtxKey{}, child), child
}

// SetAttr attaches a key-value attribute, included in the span's log line.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End closes the span and logs it.
func (s *Span) End() {
	elapsed := time.Since(s.start)
	s.mu.Lock()
	fields := append([]any{
		"trace_id", s.traceID,
		"span", s.name,
		"duration_ms", elapsed.Milliseconds(),
	}, s.attrs...)
	s.mu.Unlock()
	slog.Debug("span", fields...)
}

// SpanFromContext returns the span stored in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanCtxKey{}).(*Span)
	return s
}
