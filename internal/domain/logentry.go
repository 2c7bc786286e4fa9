package domain

import "time"

// LogEntry represents a structured log line correlated to a trace and span.
// Message and Extra are scrubbed before persistence. Extra is a JSON-encoded
// object of any additional fields supplied at the call site.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp" ch:"timestamp"`
	Level     LogLevel  `json:"level" ch:"level"`
	Severity  uint8     `json:"severity" ch:"severity"`
	Logger    string    `json:"logger,omitempty" ch:"logger"`
	Message   string    `json:"message" ch:"message"`
	TraceID   string    `json:"traceId,omitempty" ch:"trace_id"`
	SpanID    string    `json:"spanId,omitempty" ch:"span_id"`
	UserID    string    `json:"userId,omitempty" ch:"user_id"`
	Extra     string    `json:"extra,omitempty" ch:"extra"`
}

// LogFilter represents filter options for querying log entries
type LogFilter struct {
	TraceID     string
	Level       *LogLevel
	MinSeverity *int
	FromTime    *time.Time
	ToTime      *time.Time
}
