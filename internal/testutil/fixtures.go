// Package testutil provides shared fixtures for repository and service
// tests. Builders return fully-populated records so individual tests only
// override the fields they care about.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentgauge/agentgauge/internal/domain"
)

// NewTestTrace creates a completed trace with one user and default timing.
func NewTestTrace() *domain.Trace {
	start := time.Now().UTC().Add(-2 * time.Second)
	end := start.Add(1500 * time.Millisecond)
	return &domain.Trace{
		TraceID:     uuid.NewString(),
		ServiceName: "structured_products_desk",
		UserID:      "trader-1",
		Status:      domain.TraceStatusSuccess,
		Metadata:    `{"agent":"root_agent"}`,
		StartTime:   start,
		EndTime:     &end,
		DurationMs:  1500,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewTestSpan creates a finished span attached to the given trace.
func NewTestSpan(traceID string) *domain.Span {
	start := time.Now().UTC().Add(-time.Second)
	end := start.Add(40 * time.Millisecond)
	return &domain.Span{
		SpanID:     uuid.NewString()[:16],
		TraceID:    traceID,
		Name:       "get_client_rfq_history",
		SpanType:   domain.SpanTypeTool,
		Status:     domain.SpanStatusSuccess,
		StartTime:  start,
		EndTime:    &end,
		DurationMs: 40,
		Attributes: `{"client_id":"ACME"}`,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewTestLogEntry creates an info-level log entry for the given trace.
func NewTestLogEntry(traceID string) *domain.LogEntry {
	return &domain.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     domain.LogLevelInfo,
		Severity:  uint8(domain.LogLevelInfo.Severity()),
		Logger:    "agent_runner",
		Message:   "tool call completed",
		TraceID:   traceID,
	}
}

// NewTestCase creates an approved eval test case with one recorded tool call.
func NewTestCase() *domain.EvalTestCase {
	return &domain.EvalTestCase{
		TestID:         uuid.NewString(),
		InputPrompt:    "Suggest a better barrier for the TSLA autocall",
		InputContext:   map[string]any{"underlying": "TSLA", "client_id": "ACME"},
		AgentOutput:    "Consider lowering barrier to 75% for TSLA. Adds ~1.2M vega. Historical win rate improves by 22%.",
		ExpectedOutput: "Consider lowering barrier to 75% for TSLA. Adds ~1.2M vega. Historical win rate improves by 22%.",
		Status:         domain.TestCaseStatusApproved,
		AgentVersion:   "v2.1",
		CreatedBy:      "trader@example.com",
		Tags:           []string{"autocall"},
		ToolCallTrace: []domain.ToolCallRecord{
			{
				ToolID:    "get_client_rfq_history:1",
				ToolName:  "get_client_rfq_history",
				Args:      map[string]any{"client_id": "ACME"},
				Result:    map[string]any{"rfqs": []any{}},
				Timestamp: time.Now().UTC(),
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestAPIKey creates an API key record without secret material.
func NewTestAPIKey() *domain.APIKey {
	return &domain.APIKey{
		ID:         uuid.New(),
		Name:       "test-key",
		KeyPreview: "ag_test...",
		Scopes:     []string{"traces:read", "traces:write"},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}
