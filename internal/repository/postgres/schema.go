package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema DDL for the relational side: eval test cases, eval reports and API
// keys. Kept as idempotent statements applied at startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS test_cases (
		test_id         TEXT PRIMARY KEY,
		input_prompt    TEXT NOT NULL,
		input_context   JSONB,
		agent_output    TEXT NOT NULL DEFAULT '',
		expected_output TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'draft',
		agent_version   TEXT NOT NULL DEFAULT '',
		created_by      TEXT NOT NULL DEFAULT '',
		tags            TEXT[] NOT NULL DEFAULT '{}',
		tool_call_trace JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_test_cases_status ON test_cases (status)`,
	`CREATE INDEX IF NOT EXISTS idx_test_cases_tags ON test_cases USING GIN (tags)`,

	`CREATE TABLE IF NOT EXISTS eval_reports (
		id            TEXT PRIMARY KEY,
		agent_version TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'pending',
		results       JSONB,
		summary       JSONB,
		error         TEXT NOT NULL DEFAULT '',
		object_key    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_eval_reports_created_at ON eval_reports (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id           UUID PRIMARY KEY,
		name         TEXT NOT NULL,
		key_digest   TEXT NOT NULL UNIQUE,
		key_hash     TEXT NOT NULL,
		key_preview  TEXT NOT NULL,
		scopes       TEXT[] NOT NULL DEFAULT '{}',
		expires_at   TIMESTAMPTZ,
		last_used_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the relational tables if they do not exist. Safe to
// run on every startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
