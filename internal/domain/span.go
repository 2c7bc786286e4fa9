package domain

import "time"

// Span represents a single timed operation within a trace. Attributes is a
// JSON-encoded object and Events a JSON-encoded array of SpanEvent; both are
// scrubbed before persistence.
type Span struct {
	SpanID       string     `json:"spanId" ch:"span_id"`
	TraceID      string     `json:"traceId" ch:"trace_id"`
	ParentSpanID string     `json:"parentSpanId,omitempty" ch:"parent_span_id"`
	Name         string     `json:"name" ch:"name"`
	SpanType     SpanType   `json:"spanType" ch:"span_type"`
	Status       SpanStatus `json:"status" ch:"status"`
	StartTime    time.Time  `json:"startTime" ch:"start_time"`
	EndTime      *time.Time `json:"endTime,omitempty" ch:"end_time"`
	DurationMs   float64    `json:"durationMs" ch:"duration_ms"`
	Attributes   string     `json:"attributes,omitempty" ch:"attributes"`
	Events       string     `json:"events,omitempty" ch:"events"`
	Error        string     `json:"error,omitempty" ch:"error"`
	CreatedAt    time.Time  `json:"createdAt" ch:"created_at"`
}

// SpanEvent is a point-in-time annotation recorded on an open span
type SpanEvent struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SpanFilter represents filter options for querying spans
type SpanFilter struct {
	TraceID  string
	SpanType *SpanType
	Status   *SpanStatus
	FromTime *time.Time
	ToTime   *time.Time
}

// SpanNode represents spans organized in a tree structure
type SpanNode struct {
	Span     *Span       `json:"span"`
	Children []*SpanNode `json:"children,omitempty"`
}

// BuildSpanTree builds a tree from flat spans
func BuildSpanTree(spans []Span) []*SpanNode {
	// Create a map for quick lookup
	nodeMap := make(map[string]*SpanNode)
	var roots []*SpanNode

	// First pass: create all nodes
	for i := range spans {
		span := &spans[i]
		nodeMap[span.SpanID] = &SpanNode{
			Span:     span,
			Children: []*SpanNode{},
		}
	}

	// Second pass: build tree
	for i := range spans {
		span := &spans[i]
		node := nodeMap[span.SpanID]

		if span.ParentSpanID == "" || span.ParentSpanID == span.SpanID {
			roots = append(roots, node)
		} else {
			if parent, ok := nodeMap[span.ParentSpanID]; ok {
				parent.Children = append(parent.Children, node)
			} else {
				// Parent not found, treat as root
				roots = append(roots, node)
			}
		}
	}

	return roots
}
