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

const logColumns = `timestamp, level, severity, logger, message, trace_id, span_id, user_id, extra`

// LogRepository handles structured log rows in ClickHouse
type LogRepository struct {
	db *database.ClickHouseDB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db *database.ClickHouseDB) *LogRepository {
	return &LogRepository{db: db}
}

// Insert stores a single log entry via async insert. Log writes are
// fire-and-forget; losing one log line never fails the request that
// produced it.
func (r *LogRepository) Insert(ctx context.Context, entry *domain.LogEntry) error {
	start := time.Now()
	query := fmt.Sprintf(`INSERT INTO logs (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, logColumns)

	err := r.db.AsyncInsert(ctx, query, false,
		entry.Timestamp,
		string(entry.Level),
		entry.Severity,
		entry.Logger,
		entry.Message,
		entry.TraceID,
		entry.SpanID,
		entry.UserID,
		entry.Extra,
	)
	metrics.RecordDBQuery("clickhouse", "insert_log", time.Since(start))
	if err != nil {
		metrics.RecordDBError("clickhouse", "insert_log")
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// InsertBatch stores multiple log entries in one batch
func (r *LogRepository) InsertBatch(ctx context.Context, entries []*domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, fmt.Sprintf(`INSERT INTO logs (%s)`, logColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare log batch: %w", err)
	}

	for _, entry := range entries {
		if err := batch.Append(
			entry.Timestamp,
			string(entry.Level),
			entry.Severity,
			entry.Logger,
			entry.Message,
			entry.TraceID,
			entry.SpanID,
			entry.UserID,
			entry.Extra,
		); err != nil {
			return fmt.Errorf("failed to append log entry to batch: %w", err)
		}
	}

	return batch.Send()
}

// GetByTraceID retrieves the logs of a trace in time order, bounded by limit
func (r *LogRepository) GetByTraceID(ctx context.Context, traceID string, filter *domain.LogFilter, limit int) ([]domain.LogEntry, error) {
	conditions := []string{"trace_id = ?"}
	args := []interface{}{traceID}

	if filter != nil {
		if filter.Level != nil {
			conditions = append(conditions, "level = ?")
			args = append(args, string(*filter.Level))
		}
		if filter.MinSeverity != nil {
			conditions = append(conditions, "severity >= ?")
			args = append(args, *filter.MinSeverity)
		}
		if filter.FromTime != nil {
			conditions = append(conditions, "timestamp >= ?")
			args = append(args, *filter.FromTime)
		}
		if filter.ToTime != nil {
			conditions = append(conditions, "timestamp <= ?")
			args = append(args, *filter.ToTime)
		}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM logs
		WHERE %s
		ORDER BY timestamp ASC
		LIMIT ?
	`, logColumns, strings.Join(conditions, " AND "))
	args = append(args, limit)

	var entries []domain.LogEntry
	if err := r.db.Select(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select logs: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan removes log entries whose timestamp precedes the cutoff
func (r *LogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	return r.db.Exec(ctx, `DELETE FROM logs WHERE timestamp < ?`, cutoff)
}
