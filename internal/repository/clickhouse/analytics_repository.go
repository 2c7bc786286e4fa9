package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/database"
)

// AnalyticsRepository runs the aggregate queries behind the trace analyzer.
// All queries are windowed (start_time >= now - window) and bounded by an
// explicit limit.
type AnalyticsRepository struct {
	db *database.ClickHouseDB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *database.ClickHouseDB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// FailedTraces returns traces containing at least one error span, newest
// first, each with its span-level errors.
func (r *AnalyticsRepository) FailedTraces(ctx context.Context, window time.Duration, limit int) ([]domain.FailedTrace, error) {
	query := `
		SELECT
			t.trace_id,
			any(t.user_id) AS user_id,
			any(t.start_time) AS start_time,
			any(t.duration_ms) AS duration_ms,
			groupArray(s.name) AS span_names,
			groupArray(s.error) AS span_errors,
			groupArray(s.start_time) AS span_times
		FROM traces AS t FINAL
		INNER JOIN spans AS s ON s.trace_id = t.trace_id
		WHERE t.start_time >= now() - INTERVAL ? SECOND
		  AND s.status = 'error'
		GROUP BY t.trace_id
		ORDER BY start_time DESC
		LIMIT ?
	`

	rows, err := r.db.Query(ctx, query, int(window.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed traces: %w", err)
	}
	defer rows.Close()

	var out []domain.FailedTrace
	for rows.Next() {
		var (
			ft         domain.FailedTrace
			spanNames  []string
			spanErrors []string
			spanTimes  []time.Time
		)
		if err := rows.Scan(&ft.TraceID, &ft.UserID, &ft.StartTime, &ft.DurationMs, &spanNames, &spanErrors, &spanTimes); err != nil {
			return nil, fmt.Errorf("failed to scan failed trace: %w", err)
		}
		for i := range spanNames {
			se := domain.SpanError{SpanName: spanNames[i]}
			if i < len(spanErrors) {
				se.Error = spanErrors[i]
			}
			if i < len(spanTimes) {
				se.Time = spanTimes[i]
			}
			ft.Errors = append(ft.Errors, se)
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

// ErrorSummary groups error spans in the window by span name
func (r *AnalyticsRepository) ErrorSummary(ctx context.Context, window time.Duration) (*domain.ErrorSummary, error) {
	query := `
		SELECT
			name,
			count() AS error_count,
			groupArray(10)(error) AS messages
		FROM spans
		WHERE status = 'error'
		  AND start_time >= now() - INTERVAL ? SECOND
		GROUP BY name
		ORDER BY error_count DESC
	`

	rows, err := r.db.Query(ctx, query, int(window.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to query error summary: %w", err)
	}
	defer rows.Close()

	summary := &domain.ErrorSummary{
		PeriodHours: int(window.Hours()),
	}
	for rows.Next() {
		var g domain.ErrorGroup
		if err := rows.Scan(&g.SpanName, &g.Count, &g.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan error group: %w", err)
		}
		summary.TotalErrors += g.Count
		summary.Groups = append(summary.Groups, g)
	}
	return summary, rows.Err()
}

// SlowTraces returns traces at or above the duration threshold, slowest
// first, each with its ten slowest spans.
func (r *AnalyticsRepository) SlowTraces(ctx context.Context, thresholdMs float64, window time.Duration, limit int) ([]domain.SlowTrace, error) {
	query := `
		SELECT trace_id, user_id, start_time, duration_ms
		FROM traces FINAL
		WHERE start_time >= now() - INTERVAL ? SECOND
		  AND duration_ms >= ?
		ORDER BY duration_ms DESC
		LIMIT ?
	`

	var slow []domain.SlowTrace
	rows, err := r.db.Query(ctx, query, int(window.Seconds()), thresholdMs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query slow traces: %w", err)
	}
	for rows.Next() {
		var st domain.SlowTrace
		if err := rows.Scan(&st.TraceID, &st.UserID, &st.StartTime, &st.DurationMs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan slow trace: %w", err)
		}
		slow = append(slow, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range slow {
		spanQuery := `
			SELECT name, duration_ms
			FROM spans
			WHERE trace_id = ?
			ORDER BY duration_ms DESC
			LIMIT 10
		`
		spanRows, err := r.db.Query(ctx, spanQuery, slow[i].TraceID)
		if err != nil {
			return nil, fmt.Errorf("failed to query slowest spans: %w", err)
		}
		for spanRows.Next() {
			var ss domain.SlowSpan
			if err := spanRows.Scan(&ss.Name, &ss.DurationMs); err != nil {
				spanRows.Close()
				return nil, fmt.Errorf("failed to scan slow span: %w", err)
			}
			slow[i].SlowestSpans = append(slow[i].SlowestSpans, ss)
		}
		spanRows.Close()
		if err := spanRows.Err(); err != nil {
			return nil, err
		}
	}

	return slow, nil
}

// LatencyPercentiles summarizes the trace duration distribution in the window
func (r *AnalyticsRepository) LatencyPercentiles(ctx context.Context, window time.Duration) (*domain.LatencyStats, error) {
	query := `
		SELECT
			quantile(0.5)(duration_ms)  AS p50,
			quantile(0.95)(duration_ms) AS p95,
			quantile(0.99)(duration_ms) AS p99,
			avg(duration_ms)            AS avg_ms,
			max(duration_ms)            AS max_ms,
			count()                     AS sample_count
		FROM traces FINAL
		WHERE start_time >= now() - INTERVAL ? SECOND
		  AND duration_ms > 0
	`

	var stats domain.LatencyStats
	row := r.db.QueryRow(ctx, query, int(window.Seconds()))
	if err := row.Scan(&stats.P50Ms, &stats.P95Ms, &stats.P99Ms, &stats.AvgMs, &stats.MaxMs, &stats.SampleCount); err != nil {
		return nil, fmt.Errorf("failed to scan latency percentiles: %w", err)
	}
	return &stats, nil
}

// SpanPerformance summarizes span durations per (name, type), slowest first
func (r *AnalyticsRepository) SpanPerformance(ctx context.Context, spanType *domain.SpanType, window time.Duration) ([]domain.SpanPerfRow, error) {
	query := `
		SELECT
			name,
			span_type,
			count()         AS call_count,
			avg(duration_ms) AS avg_ms,
			max(duration_ms) AS max_ms,
			min(duration_ms) AS min_ms
		FROM spans
		WHERE start_time >= now() - INTERVAL ? SECOND
	`
	args := []interface{}{int(window.Seconds())}
	if spanType != nil {
		query += " AND span_type = ?"
		args = append(args, string(*spanType))
	}
	query += `
		GROUP BY name, span_type
		ORDER BY avg_ms DESC
	`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query span performance: %w", err)
	}
	defer rows.Close()

	var out []domain.SpanPerfRow
	for rows.Next() {
		var (
			row      domain.SpanPerfRow
			spanType string
		)
		if err := rows.Scan(&row.Name, &spanType, &row.Count, &row.AvgMs, &row.MaxMs, &row.MinMs); err != nil {
			return nil, fmt.Errorf("failed to scan span performance: %w", err)
		}
		row.SpanType = domain.SpanType(spanType)
		out = append(out, row)
	}
	return out, rows.Err()
}

// RequestVolume buckets trace counts over the window
func (r *AnalyticsRepository) RequestVolume(ctx context.Context, window time.Duration, bucket time.Duration) ([]domain.VolumeBucket, error) {
	query := `
		SELECT
			toStartOfInterval(start_time, INTERVAL ? SECOND) AS bucket,
			count()          AS request_count,
			avg(duration_ms) AS avg_duration_ms
		FROM traces FINAL
		WHERE start_time >= now() - INTERVAL ? SECOND
		GROUP BY bucket
		ORDER BY bucket ASC
	`

	rows, err := r.db.Query(ctx, query, int(bucket.Seconds()), int(window.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to query request volume: %w", err)
	}
	defer rows.Close()

	var out []domain.VolumeBucket
	for rows.Next() {
		var vb domain.VolumeBucket
		if err := rows.Scan(&vb.Bucket, &vb.Count, &vb.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan volume bucket: %w", err)
		}
		out = append(out, vb)
	}
	return out, rows.Err()
}

// UserActivity ranks users by request count in the window
func (r *AnalyticsRepository) UserActivity(ctx context.Context, window time.Duration, limit int) ([]domain.UserActivityRow, error) {
	query := `
		SELECT
			user_id,
			count()          AS request_count,
			avg(duration_ms) AS avg_duration_ms,
			max(start_time)  AS last_request
		FROM traces FINAL
		WHERE start_time >= now() - INTERVAL ? SECOND
		  AND user_id != ''
		GROUP BY user_id
		ORDER BY request_count DESC
		LIMIT ?
	`

	rows, err := r.db.Query(ctx, query, int(window.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user activity: %w", err)
	}
	defer rows.Close()

	var out []domain.UserActivityRow
	for rows.Next() {
		var ua domain.UserActivityRow
		if err := rows.Scan(&ua.UserID, &ua.RequestCount, &ua.AvgDurationMs, &ua.LastRequest); err != nil {
			return nil, fmt.Errorf("failed to scan user activity: %w", err)
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

// RequestCounts returns the total trace count and the count of traces
// containing an error span within the window.
func (r *AnalyticsRepository) RequestCounts(ctx context.Context, window time.Duration) (total uint64, errored uint64, err error) {
	query := `
		SELECT
			count() AS total,
			countIf(trace_id IN (
				SELECT DISTINCT trace_id FROM spans
				WHERE status = 'error' AND start_time >= now() - INTERVAL ? SECOND
			)) AS errored
		FROM traces FINAL
		WHERE start_time >= now() - INTERVAL ? SECOND
	`

	row := r.db.QueryRow(ctx, query, int(window.Seconds()), int(window.Seconds()))
	if err := row.Scan(&total, &errored); err != nil {
		return 0, 0, fmt.Errorf("failed to scan request counts: %w", err)
	}
	return total, errored, nil
}
