package domain

import "time"

// Analyzer result types. Field names follow the snake_case report format
// these summaries have always been emitted in.

// SpanError is one failed span inside a failed trace
type SpanError struct {
	SpanName string    `json:"span_name"`
	Error    string    `json:"error"`
	Time     time.Time `json:"time"`
}

// FailedTrace is a trace that contains at least one error span
type FailedTrace struct {
	TraceID    string      `json:"trace_id"`
	UserID     string      `json:"user_id,omitempty"`
	StartTime  time.Time   `json:"start_time"`
	DurationMs float64     `json:"duration_ms"`
	Errors     []SpanError `json:"errors"`
}

// ErrorGroup aggregates error spans sharing the same span name
type ErrorGroup struct {
	SpanName string   `json:"span_name"`
	Count    uint64   `json:"count"`
	Messages []string `json:"messages"`
}

// ErrorSummary groups recent span errors by operation
type ErrorSummary struct {
	PeriodHours int          `json:"period_hours"`
	TotalErrors uint64       `json:"total_errors"`
	Groups      []ErrorGroup `json:"groups"`
}

// SlowSpan is one of the slowest spans inside a slow trace
type SlowSpan struct {
	Name       string  `json:"name"`
	DurationMs float64 `json:"duration_ms"`
}

// SlowTrace is a trace whose duration exceeded the slowness threshold
type SlowTrace struct {
	TraceID      string     `json:"trace_id"`
	UserID       string     `json:"user_id,omitempty"`
	StartTime    time.Time  `json:"start_time"`
	DurationMs   float64    `json:"duration_ms"`
	SlowestSpans []SlowSpan `json:"slowest_spans"`
}

// LatencyStats summarizes the trace duration distribution
type LatencyStats struct {
	P50Ms       float64 `json:"p50_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
	AvgMs       float64 `json:"avg_ms"`
	MaxMs       float64 `json:"max_ms"`
	SampleCount uint64  `json:"sample_count"`
}

// SpanPerfRow summarizes durations per (span name, span type)
type SpanPerfRow struct {
	Name     string   `json:"name"`
	SpanType SpanType `json:"span_type"`
	Count    uint64   `json:"count"`
	AvgMs    float64  `json:"avg_ms"`
	MaxMs    float64  `json:"max_ms"`
	MinMs    float64  `json:"min_ms"`
}

// VolumeBucket is one time bucket of request volume
type VolumeBucket struct {
	Bucket        time.Time `json:"bucket"`
	Count         uint64    `json:"count"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
}

// UserActivityRow summarizes request activity for one user
type UserActivityRow struct {
	UserID        string    `json:"user_id"`
	RequestCount  uint64    `json:"request_count"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
	LastRequest   time.Time `json:"last_request"`
}

// TraceSummary is the roll-up attached to a trace detail view
type TraceSummary struct {
	DurationMs float64 `json:"duration_ms"`
	SpanCount  int     `json:"span_count"`
	LogCount   int     `json:"log_count"`
	HasErrors  bool    `json:"has_errors"`
}

// TraceDetail is a trace with its resolved span tree, logs and summary
type TraceDetail struct {
	Trace   *Trace       `json:"trace"`
	Tree    []*SpanNode  `json:"tree"`
	Logs    []LogEntry   `json:"logs"`
	Summary TraceSummary `json:"summary"`
}

// HealthSummary is the at-a-glance service health report
type HealthSummary struct {
	PeriodHours   int            `json:"period_hours"`
	TotalRequests uint64         `json:"total_requests"`
	ErrorCount    uint64         `json:"error_count"`
	ErrorRate     float64        `json:"error_rate"`
	LatencyP95Ms  float64        `json:"latency_p95_ms"`
	LatencyAvgMs  float64        `json:"latency_avg_ms"`
	RecentVolume  []VolumeBucket `json:"recent_volume"`
	Status        HealthState    `json:"status"`
}
