package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/database"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/metrics"
	"github.com/agentgauge/agentgauge/internal/pkg/pagination"
)

const traceColumns = `trace_id, service_name, user_id, status, metadata,
	start_time, end_time, duration_ms, created_at`

// TraceRepository handles trace rows in ClickHouse
type TraceRepository struct {
	db *database.ClickHouseDB
}

// NewTraceRepository creates a new trace repository
func NewTraceRepository(db *database.ClickHouseDB) *TraceRepository {
	return &TraceRepository{db: db}
}

// Insert stores a trace. Fire-and-forget via async insert: a trace and its
// spans are eventually-consistent siblings, not an atomic unit.
func (r *TraceRepository) Insert(ctx context.Context, trace *domain.Trace) error {
	start := time.Now()
	query := fmt.Sprintf(`INSERT INTO traces (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, traceColumns)

	err := r.db.AsyncInsert(ctx, query, false,
		trace.TraceID,
		trace.ServiceName,
		trace.UserID,
		string(trace.Status),
		trace.Metadata,
		trace.StartTime,
		trace.EndTime,
		trace.DurationMs,
		trace.CreatedAt,
	)
	metrics.RecordDBQuery("clickhouse", "insert_trace", time.Since(start))
	if err != nil {
		metrics.RecordDBError("clickhouse", "insert_trace")
		return fmt.Errorf("failed to insert trace: %w", err)
	}
	return nil
}

// InsertBatch stores multiple traces in one batch
func (r *TraceRepository) InsertBatch(ctx context.Context, traces []*domain.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO traces (%s)`, traceColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare trace batch: %w", err)
	}

	for _, trace := range traces {
		if err := batch.Append(
			trace.TraceID,
			trace.ServiceName,
			trace.UserID,
			string(trace.Status),
			trace.Metadata,
			trace.StartTime,
			trace.EndTime,
			trace.DurationMs,
			trace.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append trace to batch: %w", err)
		}
	}

	return batch.Send()
}

// GetByID retrieves a trace by ID
func (r *TraceRepository) GetByID(ctx context.Context, traceID string) (*domain.Trace, error) {
	var trace domain.Trace

	query := fmt.Sprintf(`
		SELECT %s
		FROM traces FINAL
		WHERE trace_id = ?
		LIMIT 1
	`, traceColumns)

	row := r.db.QueryRow(ctx, query, traceID)
	err := row.Scan(
		&trace.TraceID,
		&trace.ServiceName,
		&trace.UserID,
		&trace.Status,
		&trace.Metadata,
		&trace.StartTime,
		&trace.EndTime,
		&trace.DurationMs,
		&trace.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, apperrors.NotFound("trace")
		}
		return nil, err
	}

	return &trace, nil
}

// List retrieves traces matching the filter, newest first. Every read is
// bounded: limit is clamped by the caller and applied verbatim here. An
// optional keyset cursor continues a previous page without a growing
// offset.
func (r *TraceRepository) List(ctx context.Context, filter *domain.TraceFilter, limit, offset int, cursor *pagination.Cursor) (*domain.TraceList, error) {
	conditions := []string{"1 = 1"}
	args := []interface{}{}

	if filter != nil {
		if filter.UserID != nil {
			conditions = append(conditions, "user_id = ?")
			args = append(args, *filter.UserID)
		}
		if filter.ServiceName != nil {
			conditions = append(conditions, "service_name = ?")
			args = append(args, *filter.ServiceName)
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
		if filter.MinDurationMs != nil {
			conditions = append(conditions, "duration_ms >= ?")
			args = append(args, *filter.MinDurationMs)
		}
		if filter.Search != nil {
			conditions = append(conditions, "positionCaseInsensitive(metadata, ?) > 0")
			args = append(args, *filter.Search)
		}
		if len(filter.IDs) > 0 {
			placeholders := make([]string, len(filter.IDs))
			for i := range filter.IDs {
				placeholders[i] = "?"
				args = append(args, filter.IDs[i])
			}
			conditions = append(conditions, fmt.Sprintf("trace_id IN (%s)", strings.Join(placeholders, ",")))
		}
	}

	if cursor != nil {
		conditions = append(conditions, "(start_time < ? OR (start_time = ? AND trace_id < ?))")
		args = append(args, cursor.Timestamp, cursor.Timestamp, cursor.ID)
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT count() FROM traces FINAL WHERE %s", whereClause)
	var totalCount uint64
	row := r.db.QueryRow(ctx, countQuery, args...)
	if err := row.Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count traces: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM traces FINAL
		WHERE %s
		ORDER BY start_time DESC, trace_id DESC
		LIMIT ? OFFSET ?
	`, traceColumns, whereClause)

	args = append(args, limit+1, offset)

	var traces []domain.Trace
	if err := r.db.Select(ctx, &traces, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select traces: %w", err)
	}

	hasMore := len(traces) > limit
	if hasMore {
		traces = traces[:limit]
	}

	return &domain.TraceList{
		Traces:     traces,
		TotalCount: int64(totalCount),
		HasMore:    hasMore,
	}, nil
}

// DeleteOlderThan removes traces whose start_time precedes the cutoff.
// Used by the retention cleanup worker; lightweight deletes are the
// ClickHouse-native way to expire immutable rows.
func (r *TraceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	return r.db.Exec(ctx, `DELETE FROM traces WHERE start_time < ?`, cutoff)
}
