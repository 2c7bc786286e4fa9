// Package tracer builds traces for agent requests. Exactly one trace is
// active per context chain; spans nest through the context's current-span
// id, so concurrent requests sharing a Tracer never cross-contaminate.
// Nothing here performs I/O: EndTrace hands the finished trace back to the
// caller, which persists it through the storage layer.
package tracer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/id"
	"github.com/agentgauge/agentgauge/internal/pkg/scrub"
)

// Tracer creates traces and spans for a named service
type Tracer struct {
	serviceName string
}

// New creates a Tracer stamping traces with the given service name
func New(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// TraceContext accumulates the spans of one in-flight request. Spans are
// appended in completion order, which under nesting is LIFO close order.
type TraceContext struct {
	mu          sync.Mutex
	traceID     string
	serviceName string
	userID      string
	metadata    map[string]any
	startTime   time.Time
	endTime     *time.Time
	status      domain.TraceStatus
	spans       []domain.Span
}

// TraceID returns the trace id
func (tc *TraceContext) TraceID() string {
	return tc.traceID
}

// UserID returns the user id the trace was started for
func (tc *TraceContext) UserID() string {
	return tc.userID
}

// SetMetadata sets a metadata value on the open trace
func (tc *TraceContext) SetMetadata(key string, value any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.metadata == nil {
		tc.metadata = map[string]any{}
	}
	tc.metadata[key] = value
}

// Spans returns a copy of the completed spans so far
func (tc *TraceContext) Spans() []domain.Span {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]domain.Span, len(tc.spans))
	copy(out, tc.spans)
	return out
}

func (tc *TraceContext) appendSpan(s domain.Span) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.spans = append(tc.spans, s)
}

func (tc *TraceContext) end(status domain.TraceStatus) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.endTime != nil {
		return
	}
	now := time.Now().UTC()
	tc.endTime = &now
	if status.IsTerminal() {
		tc.status = status
	} else {
		tc.status = domain.TraceStatusSuccess
	}
}

// Snapshot renders the trace for persistence. Metadata is scrubbed here,
// never on the live map.
func (tc *TraceContext) Snapshot() *domain.Trace {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	trace := &domain.Trace{
		TraceID:     tc.traceID,
		ServiceName: tc.serviceName,
		UserID:      tc.userID,
		Status:      tc.status,
		Metadata:    encodeJSON(scrub.ScrubMap(tc.metadata)),
		StartTime:   tc.startTime,
		EndTime:     tc.endTime,
		CreatedAt:   tc.startTime,
	}
	if tc.endTime != nil {
		trace.DurationMs = float64(tc.endTime.Sub(tc.startTime)) / float64(time.Millisecond)
	}
	trace.Spans = make([]domain.Span, len(tc.spans))
	copy(trace.Spans, tc.spans)
	return trace
}

// StartTrace creates a trace context and installs it on the returned
// context. Starting a trace while one is already active is a usage error.
func (t *Tracer) StartTrace(ctx context.Context, userID string, metadata map[string]any) (context.Context, *TraceContext, error) {
	if _, active := FromContext(ctx); active {
		return ctx, nil, apperrors.Conflict("a trace is already active; end it before starting another")
	}

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	tc := &TraceContext{
		traceID:     id.NewTraceID(),
		serviceName: t.serviceName,
		userID:      userID,
		metadata:    meta,
		startTime:   time.Now().UTC(),
		status:      domain.TraceStatusInProgress,
	}
	return withTraceContext(ctx, tc), tc, nil
}

// EndTrace closes the active trace and detaches it from the returned
// context. The snapshot is returned for the caller to persist; no I/O
// happens here. Callers should end traces in a defer so they are stored
// even when the request fails.
func (t *Tracer) EndTrace(ctx context.Context, status domain.TraceStatus) (context.Context, *domain.Trace, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return ctx, nil, apperrors.Validation("no active trace to end")
	}
	tc.end(status)
	return detachTraceContext(ctx), tc.Snapshot(), nil
}

// Span runs fn inside a new span. The span's parent is the ambient current
// span; fn receives a context with the new span installed as current, so
// the previous current span is restored automatically when fn returns. The
// span is closed on every exit path: normal return marks success, an error
// return marks error and the error is propagated, a panic marks error and
// re-panics after the span is recorded.
func (t *Tracer) Span(ctx context.Context, name string, spanType domain.SpanType, attrs map[string]any, fn func(ctx context.Context, span *ActiveSpan) error) (err error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return apperrors.Validation("span started outside an active trace")
	}
	if spanType == "" {
		spanType = domain.SpanTypeCustom
	}

	sp := newActiveSpan(tc.TraceID(), CurrentSpanID(ctx), name, spanType, attrs)
	spanCtx := withCurrentSpan(ctx, sp.SpanID())

	defer func() {
		if r := recover(); r != nil {
			sp.end(domain.SpanStatusError, fmt.Sprintf("panic: %v", r))
			tc.appendSpan(sp.finish())
			panic(r)
		}
		if err != nil {
			sp.end(domain.SpanStatusError, err.Error())
		} else {
			sp.end(domain.SpanStatusSuccess, "")
		}
		tc.appendSpan(sp.finish())
	}()

	err = fn(spanCtx, sp)
	return err
}

// ActiveSpan is a span that is still open. It may be annotated until the
// enclosing Span call ends it; annotations after that are dropped.
type ActiveSpan struct {
	mu           sync.Mutex
	spanID       string
	traceID      string
	parentSpanID string
	name         string
	spanType     domain.SpanType
	startTime    time.Time
	endTime      time.Time
	status       domain.SpanStatus
	errMsg       string
	attrs        map[string]any
	events       []domain.SpanEvent
	ended        bool
}

func newActiveSpan(traceID, parentSpanID, name string, spanType domain.SpanType, attrs map[string]any) *ActiveSpan {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &ActiveSpan{
		spanID:       id.NewSpanID(),
		traceID:      traceID,
		parentSpanID: parentSpanID,
		name:         name,
		spanType:     spanType,
		startTime:    time.Now().UTC(),
		status:       domain.SpanStatusInProgress,
		attrs:        copied,
	}
}

// SpanID returns the span id
func (s *ActiveSpan) SpanID() string {
	return s.spanID
}

// SetAttribute sets an attribute on the open span
func (s *ActiveSpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.attrs[key] = value
}

// AddEvent records a point-in-time event on the open span
func (s *ActiveSpan) AddEvent(name string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.events = append(s.events, domain.SpanEvent{
		Name:       name,
		Timestamp:  time.Now().UTC(),
		Attributes: attrs,
	})
}

func (s *ActiveSpan) end(status domain.SpanStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.endTime = time.Now().UTC()
	s.status = status
	s.errMsg = errMsg
}

// finish renders the closed span for persistence, scrubbing attributes,
// event attributes and the error message.
func (s *ActiveSpan) finish() domain.Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]domain.SpanEvent, len(s.events))
	for i, ev := range s.events {
		events[i] = domain.SpanEvent{
			Name:       ev.Name,
			Timestamp:  ev.Timestamp,
			Attributes: scrub.ScrubMap(ev.Attributes),
		}
	}

	end := s.endTime
	span := domain.Span{
		SpanID:       s.spanID,
		TraceID:      s.traceID,
		ParentSpanID: s.parentSpanID,
		Name:         s.name,
		SpanType:     s.spanType,
		Status:       s.status,
		StartTime:    s.startTime,
		EndTime:      &end,
		DurationMs:   float64(end.Sub(s.startTime)) / float64(time.Millisecond),
		Attributes:   encodeJSON(scrub.ScrubMap(s.attrs)),
		Error:        scrub.Scrub(s.errMsg),
		CreatedAt:    s.startTime,
	}
	if len(events) > 0 {
		span.Events = encodeJSON(events)
	}
	return span
}

// encodeJSON renders v compactly, returning empty for empty input. Values
// that cannot be encoded are coerced through %v rather than dropped.
func encodeJSON(v any) string {
	switch m := v.(type) {
	case map[string]any:
		if len(m) == 0 {
			return ""
		}
	case nil:
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	return string(data)
}
