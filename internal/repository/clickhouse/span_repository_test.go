package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/id"
)

func newTestSpan(traceID, name string, spanType domain.SpanType, offset time.Duration) domain.Span {
	start := time.Now().Add(-time.Second + offset).UTC().Truncate(time.Millisecond)
	end := start.Add(50 * time.Millisecond)
	return domain.Span{
		SpanID:     id.NewSpanID(),
		TraceID:    traceID,
		Name:       name,
		SpanType:   spanType,
		Status:     domain.SpanStatusSuccess,
		StartTime:  start,
		EndTime:    &end,
		DurationMs: 50,
		Attributes: `{"step":"` + name + `"}`,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSpanRepository_InsertBatchAndGet(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSpanRepository(db)
	ctx := context.Background()
	traceID := id.NewTraceID()

	spans := []domain.Span{
		newTestSpan(traceID, "resolve_user", domain.SpanTypeTool, 0),
		newTestSpan(traceID, "agent_execution", domain.SpanTypeAgent, 10*time.Millisecond),
		newTestSpan(traceID, "llm_call", domain.SpanTypeLLM, 20*time.Millisecond),
	}
	spans[2].ParentSpanID = spans[1].SpanID

	require.NoError(t, repo.InsertBatch(ctx, traceID, spans))

	fetched, err := repo.GetByTraceID(ctx, traceID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)

	// Returned in start order
	assert.Equal(t, "resolve_user", fetched[0].Name)
	assert.Equal(t, "agent_execution", fetched[1].Name)
	assert.Equal(t, "llm_call", fetched[2].Name)
	assert.Equal(t, spans[1].SpanID, fetched[2].ParentSpanID)
}

func TestSpanRepository_InsertBatch_Empty(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSpanRepository(db)
	require.NoError(t, repo.InsertBatch(context.Background(), id.NewTraceID(), nil))
}

func TestSpanRepository_List_FilterByTypeAndStatus(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSpanRepository(db)
	ctx := context.Background()
	traceID := id.NewTraceID()

	errored := newTestSpan(traceID, "lookup_account", domain.SpanTypeTool, 0)
	errored.Status = domain.SpanStatusError
	errored.Error = "account not found"
	ok := newTestSpan(traceID, "agent_execution", domain.SpanTypeAgent, 10*time.Millisecond)

	require.NoError(t, repo.InsertBatch(ctx, traceID, []domain.Span{errored, ok}))

	spanType := domain.SpanTypeTool
	status := domain.SpanStatusError
	got, err := repo.List(ctx, &domain.SpanFilter{
		TraceID:  traceID,
		SpanType: &spanType,
		Status:   &status,
	}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lookup_account", got[0].Name)
	assert.Equal(t, "account not found", got[0].Error)
}
