package tracer

import "context"

type ctxKey int

const (
	traceContextKey ctxKey = iota
	currentSpanKey
)

// FromContext returns the active trace context, if any. Trace state rides on
// the context so that concurrent requests never observe each other's trace.
func FromContext(ctx context.Context) (*TraceContext, bool) {
	tc, ok := ctx.Value(traceContextKey).(*TraceContext)
	if !ok || tc == nil {
		return nil, false
	}
	return tc, true
}

// CurrentSpanID returns the ambient span id, or empty at the trace root.
func CurrentSpanID(ctx context.Context) string {
	id, _ := ctx.Value(currentSpanKey).(string)
	return id
}

// CurrentTraceID returns the active trace id, or empty when no trace is
// active.
func CurrentTraceID(ctx context.Context) string {
	if tc, ok := FromContext(ctx); ok {
		return tc.TraceID()
	}
	return ""
}

func withTraceContext(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey, tc)
}

func withCurrentSpan(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, currentSpanKey, spanID)
}

func detachTraceContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, traceContextKey, (*TraceContext)(nil))
	return context.WithValue(ctx, currentSpanKey, "")
}
