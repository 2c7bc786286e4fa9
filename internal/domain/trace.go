package domain

import "time"

// Trace represents a single traced agent request from start to finish.
// Metadata is a JSON-encoded object; it is scrubbed before persistence.
type Trace struct {
	TraceID     string      `json:"traceId" ch:"trace_id"`
	ServiceName string      `json:"serviceName" ch:"service_name"`
	UserID      string      `json:"userId,omitempty" ch:"user_id"`
	Status      TraceStatus `json:"status" ch:"status"`
	Metadata    string      `json:"metadata,omitempty" ch:"metadata"`
	StartTime   time.Time   `json:"startTime" ch:"start_time"`
	EndTime     *time.Time  `json:"endTime,omitempty" ch:"end_time"`
	DurationMs  float64     `json:"durationMs" ch:"duration_ms"`
	CreatedAt   time.Time   `json:"createdAt" ch:"created_at"`

	// Related data (populated by the query service)
	Spans []Span     `json:"spans,omitempty" ch:"-"`
	Logs  []LogEntry `json:"logs,omitempty" ch:"-"`
}

// TraceInput represents input for ingesting a trace
type TraceInput struct {
	TraceID     string      `json:"traceId,omitempty"`
	ServiceName string      `json:"serviceName,omitempty"`
	UserID      string      `json:"userId,omitempty"`
	Status      TraceStatus `json:"status,omitempty"`
	Metadata    any         `json:"metadata,omitempty"`
	StartTime   *time.Time  `json:"startTime,omitempty"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
}

// SpanInput represents input for ingesting a span
type SpanInput struct {
	SpanID       string     `json:"spanId,omitempty"`
	TraceID      string     `json:"traceId,omitempty"`
	ParentSpanID string     `json:"parentSpanId,omitempty"`
	Name         string     `json:"name" validate:"required"`
	SpanType     SpanType   `json:"spanType,omitempty"`
	Status       SpanStatus `json:"status,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Attributes   any        `json:"attributes,omitempty"`
	Events       []SpanEvent `json:"events,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// LogInput represents input for ingesting a structured log entry
type LogInput struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Level     string     `json:"level,omitempty"`
	Logger    string     `json:"logger,omitempty"`
	Message   string     `json:"message" validate:"required"`
	TraceID   string     `json:"traceId,omitempty"`
	SpanID    string     `json:"spanId,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	Extra     any        `json:"extra,omitempty"`
}

// IngestionBatch represents a batch of ingestion items
type IngestionBatch struct {
	Trace *TraceInput  `json:"trace,omitempty"`
	Spans []*SpanInput `json:"spans,omitempty"`
	Logs  []*LogInput  `json:"logs,omitempty"`
}

// TraceFilter represents filter options for querying traces
type TraceFilter struct {
	IDs           []string
	UserID        *string
	ServiceName   *string
	Status        *TraceStatus
	FromTime      *time.Time
	ToTime        *time.Time
	MinDurationMs *float64
	Search        *string
}

// TraceOrderBy represents ordering options for traces
type TraceOrderBy struct {
	Field     string
	Direction string // "asc" or "desc"
}

// ValidTraceOrderByFields for traces
var ValidTraceOrderByFields = map[string]bool{
	"start_time":  true,
	"end_time":    true,
	"duration_ms": true,
	"name":        true,
	"status":      true,
	"created_at":  true,
}

// TraceList represents a paginated list of traces
type TraceList struct {
	Traces     []Trace `json:"traces"`
	TotalCount int64   `json:"totalCount"`
	HasMore    bool    `json:"hasMore"`
}
