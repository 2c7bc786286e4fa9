package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
)

// ReportRepository persists eval reports produced by asynchronous runs
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, agent_version, status, results, summary, error, object_key, created_at, completed_at`

// Create stores a new report, typically in pending status
func (r *ReportRepository) Create(ctx context.Context, report *domain.EvalReport) error {
	resultsJSON, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `
		INSERT INTO eval_reports (id, agent_version, status, results, summary, error, object_key, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		report.ID, report.AgentVersion, report.Status, resultsJSON, summaryJSON,
		report.Error, report.ObjectKey, report.CreatedAt, report.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.EvalReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM eval_reports WHERE id = $1`, reportColumns)

	var (
		report      domain.EvalReport
		resultsJSON []byte
		summaryJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&report.ID, &report.AgentVersion, &report.Status, &resultsJSON, &summaryJSON,
		&report.Error, &report.ObjectKey, &report.CreatedAt, &report.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("report")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &report.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &report.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
	}

	return &report, nil
}

// Complete records a finished run's results and summary
func (r *ReportRepository) Complete(ctx context.Context, report *domain.EvalReport) error {
	resultsJSON, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	query := `
		UPDATE eval_reports
		SET status = $2, results = $3, summary = $4, error = $5, completed_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		report.ID, report.Status, resultsJSON, summaryJSON, report.Error)
	if err != nil {
		return fmt.Errorf("failed to complete report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("report")
	}
	return nil
}

// SetObjectKey records where an export of the report was written
func (r *ReportRepository) SetObjectKey(ctx context.Context, id, objectKey string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE eval_reports SET object_key = $2 WHERE id = $1`, id, objectKey)
	if err != nil {
		return fmt.Errorf("failed to set object key: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("report")
	}
	return nil
}

// List retrieves reports, newest first
func (r *ReportRepository) List(ctx context.Context, limit, offset int) ([]domain.EvalReport, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM eval_reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, reportColumns)

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.EvalReport
	for rows.Next() {
		var (
			report      domain.EvalReport
			resultsJSON []byte
			summaryJSON []byte
		)
		if err := rows.Scan(
			&report.ID, &report.AgentVersion, &report.Status, &resultsJSON, &summaryJSON,
			&report.Error, &report.ObjectKey, &report.CreatedAt, &report.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if len(resultsJSON) > 0 {
			if err := json.Unmarshal(resultsJSON, &report.Results); err != nil {
				return nil, fmt.Errorf("failed to unmarshal results: %w", err)
			}
		}
		if len(summaryJSON) > 0 {
			if err := json.Unmarshal(summaryJSON, &report.Summary); err != nil {
				return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
			}
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}
