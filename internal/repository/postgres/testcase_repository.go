package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
)

// TestCaseRepository persists captured eval test cases
type TestCaseRepository struct {
	db *sqlx.DB
}

// NewTestCaseRepository creates a new test case repository
func NewTestCaseRepository(db *sqlx.DB) *TestCaseRepository {
	return &TestCaseRepository{db: db}
}

const testCaseColumns = `test_id, input_prompt, input_context, agent_output, expected_output,
	status, agent_version, created_by, tags, tool_call_trace, created_at`

// Upsert stores a test case. Re-capturing an existing test_id refreshes the
// captured output, expected output and tool call trace; the review status is
// left untouched so an approved case is not silently demoted.
func (r *TestCaseRepository) Upsert(ctx context.Context, tc *domain.EvalTestCase) error {
	contextJSON, err := json.Marshal(tc.InputContext)
	if err != nil {
		return fmt.Errorf("failed to marshal input context: %w", err)
	}
	traceJSON, err := json.Marshal(tc.ToolCallTrace)
	if err != nil {
		return fmt.Errorf("failed to marshal tool call trace: %w", err)
	}

	query := `
		INSERT INTO test_cases (
			test_id, input_prompt, input_context, agent_output, expected_output,
			status, agent_version, created_by, tags, tool_call_trace, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (test_id) DO UPDATE SET
			agent_output = EXCLUDED.agent_output,
			expected_output = EXCLUDED.expected_output,
			tool_call_trace = EXCLUDED.tool_call_trace`

	_, err = r.db.ExecContext(ctx, query,
		tc.TestID, tc.InputPrompt, contextJSON, tc.AgentOutput, tc.ExpectedOutput,
		tc.Status, tc.AgentVersion, tc.CreatedBy, pq.Array(tc.Tags), traceJSON, tc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert test case: %w", err)
	}

	return nil
}

func scanTestCase(rows interface {
	Scan(dest ...interface{}) error
}) (*domain.EvalTestCase, error) {
	var (
		tc          domain.EvalTestCase
		contextJSON []byte
		traceJSON   []byte
		tags        pq.StringArray
	)
	err := rows.Scan(
		&tc.TestID, &tc.InputPrompt, &contextJSON, &tc.AgentOutput, &tc.ExpectedOutput,
		&tc.Status, &tc.AgentVersion, &tc.CreatedBy, &tags, &traceJSON, &tc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tc.Tags = tags
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &tc.InputContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input context: %w", err)
		}
	}
	if len(traceJSON) > 0 {
		if err := json.Unmarshal(traceJSON, &tc.ToolCallTrace); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool call trace: %w", err)
		}
	}
	return &tc, nil
}

// GetByID retrieves a test case by ID
func (r *TestCaseRepository) GetByID(ctx context.Context, testID string) (*domain.EvalTestCase, error) {
	query := fmt.Sprintf(`SELECT %s FROM test_cases WHERE test_id = $1`, testCaseColumns)

	tc, err := scanTestCase(r.db.QueryRowContext(ctx, query, testID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("test case")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test case: %w", err)
	}
	return tc, nil
}

// LoadApproved loads approved test cases, optionally restricted to testIDs.
// Cases are returned oldest first so eval reports stay in capture order.
func (r *TestCaseRepository) LoadApproved(ctx context.Context, testIDs []string) ([]domain.EvalTestCase, error) {
	query := fmt.Sprintf(`SELECT %s FROM test_cases WHERE status = $1`, testCaseColumns)
	args := []interface{}{domain.TestCaseStatusApproved}

	if len(testIDs) > 0 {
		placeholders := make([]string, len(testIDs))
		for i, id := range testIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, id)
		}
		query += fmt.Sprintf(" AND test_id IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved test cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.EvalTestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		cases = append(cases, *tc)
	}

	return cases, rows.Err()
}

// List retrieves test cases matching the filter, newest first
func (r *TestCaseRepository) List(ctx context.Context, filter *domain.TestCaseFilter, limit, offset int) ([]domain.EvalTestCase, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter != nil {
		if filter.Status != nil {
			conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
			args = append(args, *filter.Status)
			argNum++
		}
		if filter.AgentVersion != nil {
			conditions = append(conditions, fmt.Sprintf("agent_version = $%d", argNum))
			args = append(args, *filter.AgentVersion)
			argNum++
		}
		if filter.Tag != nil {
			conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", argNum))
			args = append(args, *filter.Tag)
			argNum++
		}
		if len(filter.TestIDs) > 0 {
			placeholders := make([]string, len(filter.TestIDs))
			for i, id := range filter.TestIDs {
				placeholders[i] = fmt.Sprintf("$%d", argNum)
				args = append(args, id)
				argNum++
			}
			conditions = append(conditions, fmt.Sprintf("test_id IN (%s)", strings.Join(placeholders, ", ")))
		}
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM test_cases
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		testCaseColumns, whereClause, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.EvalTestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		cases = append(cases, *tc)
	}

	return cases, rows.Err()
}

// UpdateStatus transitions a test case's review status
func (r *TestCaseRepository) UpdateStatus(ctx context.Context, testID string, status domain.TestCaseStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE test_cases SET status = $2 WHERE test_id = $1`, testID, status)
	if err != nil {
		return fmt.Errorf("failed to update test case status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("test case")
	}
	return nil
}

// UpdateExpectedOutput replaces a test case's expected output during review
func (r *TestCaseRepository) UpdateExpectedOutput(ctx context.Context, testID, expected string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE test_cases SET expected_output = $2 WHERE test_id = $1`, testID, expected)
	if err != nil {
		return fmt.Errorf("failed to update expected output: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("test case")
	}
	return nil
}

// Delete removes a test case
func (r *TestCaseRepository) Delete(ctx context.Context, testID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM test_cases WHERE test_id = $1`, testID)
	if err != nil {
		return fmt.Errorf("failed to delete test case: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("test case")
	}
	return nil
}

// Count counts test cases by status
func (r *TestCaseRepository) Count(ctx context.Context, status *domain.TestCaseStatus) (int64, error) {
	var count int64
	var err error
	if status != nil {
		err = r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM test_cases WHERE status = $1`, *status).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_cases`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count test cases: %w", err)
	}
	return count, nil
}
