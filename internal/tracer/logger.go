package tracer

import (
	"context"
	"time"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/scrub"
)

// StructuredLogger builds trace-correlated log entries. It performs no I/O:
// entries below the minimum level return nil, everything else is scrubbed,
// stamped with the ambient trace and span ids, and handed back for the
// caller to persist.
type StructuredLogger struct {
	name     string
	minLevel domain.LogLevel
}

// NewLogger creates a structured logger with a minimum level
func NewLogger(name string, minLevel domain.LogLevel) *StructuredLogger {
	if !minLevel.IsValid() {
		minLevel = domain.LogLevelInfo
	}
	return &StructuredLogger{name: name, minLevel: minLevel}
}

// Log builds a log entry, or returns nil when filtered by level
func (l *StructuredLogger) Log(ctx context.Context, level domain.LogLevel, message string, extra map[string]any) *domain.LogEntry {
	if level.Severity() < l.minLevel.Severity() {
		return nil
	}

	entry := &domain.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Severity:  uint8(level.Severity()),
		Logger:    l.name,
		Message:   scrub.Scrub(message),
		SpanID:    CurrentSpanID(ctx),
		Extra:     encodeJSON(scrub.ScrubMap(extra)),
	}
	if tc, ok := FromContext(ctx); ok {
		entry.TraceID = tc.TraceID()
		entry.UserID = tc.UserID()
	}
	return entry
}

// Debug builds a DEBUG entry
func (l *StructuredLogger) Debug(ctx context.Context, message string, extra map[string]any) *domain.LogEntry {
	return l.Log(ctx, domain.LogLevelDebug, message, extra)
}

// Info builds an INFO entry
func (l *StructuredLogger) Info(ctx context.Context, message string, extra map[string]any) *domain.LogEntry {
	return l.Log(ctx, domain.LogLevelInfo, message, extra)
}

// Warning builds a WARNING entry
func (l *StructuredLogger) Warning(ctx context.Context, message string, extra map[string]any) *domain.LogEntry {
	return l.Log(ctx, domain.LogLevelWarning, message, extra)
}

// Error builds an ERROR entry
func (l *StructuredLogger) Error(ctx context.Context, message string, extra map[string]any) *domain.LogEntry {
	return l.Log(ctx, domain.LogLevelError, message, extra)
}

// Critical builds a CRITICAL entry
func (l *StructuredLogger) Critical(ctx context.Context, message string, extra map[string]any) *domain.LogEntry {
	return l.Log(ctx, domain.LogLevelCritical, message, extra)
}
