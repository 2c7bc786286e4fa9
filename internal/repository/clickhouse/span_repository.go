package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/database"
	"github.com/agentgauge/agentgauge/internal/pkg/metrics"
)

const spanColumns = `span_id, trace_id, parent_span_id, name, span_type, status,
	start_time, end_time, duration_ms, attributes, events, error, created_at`

// SpanRepository handles span rows in ClickHouse
type SpanRepository struct {
	db *database.ClickHouseDB
}

// NewSpanRepository creates a new span repository
func NewSpanRepository(db *database.ClickHouseDB) *SpanRepository {
	return &SpanRepository{db: db}
}

// InsertBatch stores all spans of one trace in a single batch. Spans are
// immutable once their trace ends, so this is the only write path.
func (r *SpanRepository) InsertBatch(ctx context.Context, traceID string, spans []domain.Span) error {
	if len(spans) == 0 {
		return nil
	}

	start := time.Now()
	batch, err := r.db.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO spans (%s)`, spanColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare span batch: %w", err)
	}

	for _, span := range spans {
		if err := batch.Append(
			span.SpanID,
			traceID,
			span.ParentSpanID,
			span.Name,
			string(span.SpanType),
			string(span.Status),
			span.StartTime,
			span.EndTime,
			span.DurationMs,
			span.Attributes,
			span.Events,
			span.Error,
			span.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append span to batch: %w", err)
		}
	}

	err = batch.Send()
	metrics.RecordDBQuery("clickhouse", "insert_spans", time.Since(start))
	if err != nil {
		metrics.RecordDBError("clickhouse", "insert_spans")
		return fmt.Errorf("failed to send span batch: %w", err)
	}
	return nil
}

// GetByTraceID retrieves every span of a trace in start order
func (r *SpanRepository) GetByTraceID(ctx context.Context, traceID string) ([]domain.Span, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM spans
		WHERE trace_id = ?
		ORDER BY start_time ASC, span_id ASC
	`, spanColumns)

	var spans []domain.Span
	if err := r.db.Select(ctx, &spans, query, traceID); err != nil {
		return nil, fmt.Errorf("failed to select spans: %w", err)
	}
	return spans, nil
}

// List retrieves spans matching the filter, bounded by limit
func (r *SpanRepository) List(ctx context.Context, filter *domain.SpanFilter, limit int) ([]domain.Span, error) {
	conditions := []string{"1 = 1"}
	args := []interface{}{}

	if filter != nil {
		if filter.TraceID != "" {
			conditions = append(conditions, "trace_id = ?")
			args = append(args, filter.TraceID)
		}
		if filter.SpanType != nil {
			conditions = append(conditions, "span_type = ?")
			args = append(args, string(*filter.SpanType))
		}
		if filter.Status != nil {
			conditions = append(conditions, "status = ?")
			args = append(args, string(*filter.Status))
		}
		if filter.FromTime != nil {
			conditions = append(conditions, "start_time >= ?")
			args = append(args, *filter.FromTime)
		}
		if filter.ToTime != nil {
			conditions = append(conditions, "start_time <= ?")
			args = append(args, *filter.ToTime)
		}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM spans
		WHERE %s
		ORDER BY start_time DESC
		LIMIT ?
	`, spanColumns, strings.Join(conditions, " AND "))
	args = append(args, limit)

	var spans []domain.Span
	if err := r.db.Select(ctx, &spans, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select spans: %w", err)
	}
	return spans, nil
}

// DeleteOlderThan removes spans whose start_time precedes the cutoff
func (r *SpanRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	return r.db.Exec(ctx, `DELETE FROM spans WHERE start_time < ?`, cutoff)
}
