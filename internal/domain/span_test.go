package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSpanTree(t *testing.T) {
	base := time.Now()
	spans := []Span{
		{SpanID: "a", TraceID: "t1", Name: "root", StartTime: base},
		{SpanID: "b", TraceID: "t1", ParentSpanID: "a", Name: "child", StartTime: base.Add(time.Millisecond)},
		{SpanID: "c", TraceID: "t1", ParentSpanID: "b", Name: "grandchild", StartTime: base.Add(2 * time.Millisecond)},
	}

	roots := BuildSpanTree(spans)

	require.Len(t, roots, 1)
	assert.Equal(t, "root", roots[0].Span.Name)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "child", roots[0].Children[0].Span.Name)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "grandchild", roots[0].Children[0].Children[0].Span.Name)
}

func TestBuildSpanTreeUnresolvableParent(t *testing.T) {
	spans := []Span{
		{SpanID: "a", Name: "root"},
		{SpanID: "b", ParentSpanID: "missing", Name: "orphan"},
	}

	roots := BuildSpanTree(spans)

	require.Len(t, roots, 2, "orphan spans become roots")
	names := []string{roots[0].Span.Name, roots[1].Span.Name}
	assert.Contains(t, names, "orphan")
}

func TestBuildSpanTreeSelfParent(t *testing.T) {
	spans := []Span{{SpanID: "a", ParentSpanID: "a", Name: "loop"}}

	roots := BuildSpanTree(spans)

	require.Len(t, roots, 1)
	assert.Empty(t, roots[0].Children)
}

func TestBuildSpanTreeEmpty(t *testing.T) {
	assert.Empty(t, BuildSpanTree(nil))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in    string
		level LogLevel
		ok    bool
	}{
		{"DEBUG", LogLevelDebug, true},
		{"info", LogLevelInfo, true},
		{"warn", LogLevelWarning, true},
		{"ERROR", LogLevelError, true},
		{"fatal", LogLevelCritical, true},
		{"verbose", LogLevelInfo, false},
	}

	for _, tt := range tests {
		level, ok := ParseLogLevel(tt.in)
		assert.Equal(t, tt.level, level, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestLogLevelSeverity(t *testing.T) {
	assert.Equal(t, 10, LogLevelDebug.Severity())
	assert.Equal(t, 20, LogLevelInfo.Severity())
	assert.Equal(t, 30, LogLevelWarning.Severity())
	assert.Equal(t, 40, LogLevelError.Severity())
	assert.Equal(t, 50, LogLevelCritical.Severity())
	assert.Equal(t, 0, LogLevel("TRACE").Severity())
}

func TestSummarize(t *testing.T) {
	results := []EvalResult{
		{TestID: "1", Passed: true},
		{TestID: "2", Passed: false},
		{TestID: "3", Passed: true},
	}

	s := Summarize(results)

	assert.Equal(t, EvalSummary{Total: 3, Passed: 2, Failed: 1}, s)
	assert.Equal(t, EvalSummary{}, Summarize(nil))
}
