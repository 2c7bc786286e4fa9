package clickhouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/database"
	"github.com/agentgauge/agentgauge/internal/pkg/id"
	"github.com/agentgauge/agentgauge/internal/pkg/pagination"
)

// getTestDB returns a database connection for integration tests.
// Returns nil if the database is not available (skips tests).
func getTestDB(t *testing.T) *database.ClickHouseDB {
	if os.Getenv("CLICKHOUSE_TEST_HOST") == "" {
		t.Skip("Skipping integration test: CLICKHOUSE_TEST_HOST not set")
		return nil
	}

	cfg := config.ClickHouseConfig{
		Host:     os.Getenv("CLICKHOUSE_TEST_HOST"),
		Port:     9000,
		Database: os.Getenv("CLICKHOUSE_TEST_DB"),
		User:     os.Getenv("CLICKHOUSE_TEST_USER"),
		Password: os.Getenv("CLICKHOUSE_TEST_PASS"),
	}
	if cfg.Database == "" {
		cfg.Database = "test_agentgauge"
	}

	db, err := database.NewClickHouse(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to ClickHouse: %v", err)
		return nil
	}

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	return db
}

// newTestTrace creates a finished trace with test data
func newTestTrace(serviceName string) *domain.Trace {
	start := time.Now().Add(-time.Second).UTC().Truncate(time.Millisecond)
	end := start.Add(250 * time.Millisecond)
	return &domain.Trace{
		TraceID:     id.NewTraceID(),
		ServiceName: serviceName,
		UserID:      "user-1",
		Status:      domain.TraceStatusSuccess,
		Metadata:    `{"channel":"web"}`,
		StartTime:   start,
		EndTime:     &end,
		DurationMs:  250,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestTraceRepository_InsertBatchAndGet(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewTraceRepository(db)
	ctx := context.Background()

	trace := newTestTrace("svc-insert")
	require.NoError(t, repo.InsertBatch(ctx, []*domain.Trace{trace}))

	fetched, err := repo.GetByID(ctx, trace.TraceID)
	require.NoError(t, err)
	assert.Equal(t, trace.TraceID, fetched.TraceID)
	assert.Equal(t, trace.ServiceName, fetched.ServiceName)
	assert.Equal(t, trace.UserID, fetched.UserID)
	assert.Equal(t, domain.TraceStatusSuccess, fetched.Status)
	assert.InDelta(t, trace.DurationMs, fetched.DurationMs, 0.001)
}

func TestTraceRepository_InsertBatch_Empty(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewTraceRepository(db)
	require.NoError(t, repo.InsertBatch(context.Background(), nil))
}

func TestTraceRepository_GetByID_NotFound(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewTraceRepository(db)
	_, err := repo.GetByID(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestTraceRepository_List(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewTraceRepository(db)
	ctx := context.Background()
	service := "svc-list-" + id.NewSpanID()

	traces := make([]*domain.Trace, 5)
	for i := range traces {
		tr := newTestTrace(service)
		tr.StartTime = tr.StartTime.Add(-time.Duration(i) * time.Minute)
		if i == 0 {
			tr.Status = domain.TraceStatusError
		}
		traces[i] = tr
	}
	require.NoError(t, repo.InsertBatch(ctx, traces))

	t.Run("by service name", func(t *testing.T) {
		list, err := repo.List(ctx, &domain.TraceFilter{ServiceName: &service}, 10, 0, nil)
		require.NoError(t, err)
		assert.Len(t, list.Traces, 5)
		assert.Equal(t, int64(5), list.TotalCount)
		assert.False(t, list.HasMore)
	})

	t.Run("newest first", func(t *testing.T) {
		list, err := repo.List(ctx, &domain.TraceFilter{ServiceName: &service}, 10, 0, nil)
		require.NoError(t, err)
		for i := 1; i < len(list.Traces); i++ {
			assert.False(t, list.Traces[i].StartTime.After(list.Traces[i-1].StartTime))
		}
	})

	t.Run("limit sets hasMore", func(t *testing.T) {
		list, err := repo.List(ctx, &domain.TraceFilter{ServiceName: &service}, 2, 0, nil)
		require.NoError(t, err)
		assert.Len(t, list.Traces, 2)
		assert.True(t, list.HasMore)
	})

	t.Run("by status", func(t *testing.T) {
		status := domain.TraceStatusError
		list, err := repo.List(ctx, &domain.TraceFilter{ServiceName: &service, Status: &status}, 10, 0, nil)
		require.NoError(t, err)
		assert.Len(t, list.Traces, 1)
	})

	t.Run("by metadata search", func(t *testing.T) {
		search := "CHANNEL"
		list, err := repo.List(ctx, &domain.TraceFilter{ServiceName: &service, Search: &search}, 10, 0, nil)
		require.NoError(t, err)
		assert.Len(t, list.Traces, 5)
	})

	t.Run("cursor continues after last row", func(t *testing.T) {
		first, err := repo.List(ctx, &domain.TraceFilter{ServiceName: &service}, 2, 0, nil)
		require.NoError(t, err)
		require.Len(t, first.Traces, 2)

		last := first.Traces[len(first.Traces)-1]
		cursor := &pagination.Cursor{ID: last.TraceID, Timestamp: last.StartTime}
		second, err := repo.List(ctx, &domain.TraceFilter{ServiceName: &service}, 10, 0, cursor)
		require.NoError(t, err)
		assert.Len(t, second.Traces, 3)
		for _, tr := range second.Traces {
			assert.True(t, tr.StartTime.Before(last.StartTime) ||
				(tr.StartTime.Equal(last.StartTime) && tr.TraceID < last.TraceID))
		}
	})
}

func TestTraceRepository_DeleteOlderThan(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewTraceRepository(db)
	ctx := context.Background()
	service := "svc-retention-" + id.NewSpanID()

	old := newTestTrace(service)
	old.StartTime = time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, repo.InsertBatch(ctx, []*domain.Trace{old}))

	require.NoError(t, repo.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour)))
	// ALTER DELETE mutations are asynchronous; we only assert the call succeeds.
}
