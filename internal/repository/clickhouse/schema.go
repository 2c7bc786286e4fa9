package clickhouse

import (
	"context"
	"fmt"

	"github.com/agentgauge/agentgauge/internal/pkg/database"
)

// Schema DDL for the tracing tables. Traces use ReplacingMergeTree so a
// re-ingested trace (same trace_id) converges on the latest row; spans and
// logs are append-only MergeTree tables keyed for the trace_id lookups and
// time-window scans the analytics queries run.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS traces (
		trace_id     String,
		service_name String,
		user_id      String,
		status       LowCardinality(String),
		metadata     String,
		start_time   DateTime64(3, 'UTC'),
		end_time     Nullable(DateTime64(3, 'UTC')),
		duration_ms  Float64,
		created_at   DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(created_at)
	PARTITION BY toYYYYMM(start_time)
	ORDER BY (trace_id)`,

	`CREATE TABLE IF NOT EXISTS spans (
		span_id        String,
		trace_id       String,
		parent_span_id String,
		name           String,
		span_type      LowCardinality(String),
		status         LowCardinality(String),
		start_time     DateTime64(3, 'UTC'),
		end_time       Nullable(DateTime64(3, 'UTC')),
		duration_ms    Float64,
		attributes     String,
		events         String,
		error          String,
		created_at     DateTime64(3, 'UTC') DEFAULT now64(3)
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(start_time)
	ORDER BY (trace_id, start_time, span_id)`,

	`CREATE TABLE IF NOT EXISTS logs (
		timestamp DateTime64(3, 'UTC'),
		level     LowCardinality(String),
		severity  UInt8,
		logger    String,
		message   String,
		trace_id  String,
		span_id   String,
		user_id   String,
		extra     String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (trace_id, timestamp)`,
}

// EnsureSchema creates the tracing tables if they do not exist. Safe to run
// on every startup.
func EnsureSchema(ctx context.Context, db *database.ClickHouseDB) error {
	for _, stmt := range schemaStatements {
		if err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
