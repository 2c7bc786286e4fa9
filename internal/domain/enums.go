package domain

// TraceStatus represents the lifecycle status of a trace
type TraceStatus string

const (
	TraceStatusInProgress TraceStatus = "in_progress"
	TraceStatusSuccess    TraceStatus = "success"
	TraceStatusError      TraceStatus = "error"
)

// IsValid checks if the trace status is valid
func (s TraceStatus) IsValid() bool {
	switch s {
	case TraceStatusInProgress, TraceStatusSuccess, TraceStatusError:
		return true
	}
	return false
}

// IsTerminal checks if the trace status is terminal
func (s TraceStatus) IsTerminal() bool {
	return s == TraceStatusSuccess || s == TraceStatusError
}

// SpanStatus represents the lifecycle status of a span
type SpanStatus string

const (
	SpanStatusInProgress SpanStatus = "in_progress"
	SpanStatusSuccess    SpanStatus = "success"
	SpanStatusError      SpanStatus = "error"
)

// IsValid checks if the span status is valid
func (s SpanStatus) IsValid() bool {
	switch s {
	case SpanStatusInProgress, SpanStatusSuccess, SpanStatusError:
		return true
	}
	return false
}

// IsTerminal checks if the span status is terminal
func (s SpanStatus) IsTerminal() bool {
	return s == SpanStatusSuccess || s == SpanStatusError
}

// SpanType classifies what kind of operation a span wraps
type SpanType string

const (
	SpanTypeAgent  SpanType = "agent"
	SpanTypeTool   SpanType = "tool"
	SpanTypeLLM    SpanType = "llm"
	SpanTypeCustom SpanType = "custom"
)

// IsValid checks if the span type is one of the known types. Ingestion
// never rejects unknown types; this is used for query-side filtering only.
func (t SpanType) IsValid() bool {
	switch t {
	case SpanTypeAgent, SpanTypeTool, SpanTypeLLM, SpanTypeCustom:
		return true
	}
	return false
}

// LogLevel represents the severity level of a structured log entry
type LogLevel string

const (
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

// Severity returns the numeric rank of the level, used for threshold
// filtering. Unknown levels rank 0 and are filtered by any threshold.
func (l LogLevel) Severity() int {
	switch l {
	case LogLevelDebug:
		return 10
	case LogLevelInfo:
		return 20
	case LogLevelWarning:
		return 30
	case LogLevelError:
		return 40
	case LogLevelCritical:
		return 50
	}
	return 0
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	return l.Severity() > 0
}

// ParseLogLevel normalizes a level string to a LogLevel. The second return
// value reports whether the input named a known level.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch s {
	case "DEBUG", "debug":
		return LogLevelDebug, true
	case "INFO", "info":
		return LogLevelInfo, true
	case "WARNING", "warning", "WARN", "warn":
		return LogLevelWarning, true
	case "ERROR", "error":
		return LogLevelError, true
	case "CRITICAL", "critical", "FATAL", "fatal":
		return LogLevelCritical, true
	}
	return LogLevelInfo, false
}

// ExecutionMode selects how an executor resolves tool calls
type ExecutionMode string

const (
	ModeCapture ExecutionMode = "capture"
	ModeReplay  ExecutionMode = "replay"
)

// IsValid checks if the execution mode is valid
func (m ExecutionMode) IsValid() bool {
	return m == ModeCapture || m == ModeReplay
}

// TestCaseStatus represents the review status of an eval test case
type TestCaseStatus string

const (
	TestCaseStatusDraft    TestCaseStatus = "draft"
	TestCaseStatusApproved TestCaseStatus = "approved"
	TestCaseStatusRejected TestCaseStatus = "rejected"
)

// IsValid checks if the test case status is valid
func (s TestCaseStatus) IsValid() bool {
	switch s {
	case TestCaseStatusDraft, TestCaseStatusApproved, TestCaseStatusRejected:
		return true
	}
	return false
}

// JobStatus represents the status of a background job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValid checks if the job status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal checks if the job status is terminal
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// HealthState summarizes service health derived from recent error rates
type HealthState string

const (
	HealthStateHealthy  HealthState = "healthy"
	HealthStateDegraded HealthState = "degraded"
)
