package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/service"
)

const (
	// TypeRetentionCleanup is the task type for retention-based deletion
	TypeRetentionCleanup = "cleanup:retention"
)

// RetentionCleanupPayload is the payload for retention cleanup tasks
type RetentionCleanupPayload struct {
	RetentionDays int  `json:"retention_days"`
	DryRun        bool `json:"dry_run"`
}

// NewRetentionCleanupTask creates a retention cleanup task
func NewRetentionCleanupTask(payload *RetentionCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retention cleanup payload: %w", err)
	}
	return asynq.NewTask(TypeRetentionCleanup, data, asynq.MaxRetry(3), asynq.Timeout(1*time.Hour)), nil
}

// CleanupWorker removes traces, spans and logs past the retention window
type CleanupWorker struct {
	logger    *zap.Logger
	traceRepo service.TraceRepository
	spanRepo  service.SpanRepository
	logRepo   service.LogRepository
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(
	logger *zap.Logger,
	traceRepo service.TraceRepository,
	spanRepo service.SpanRepository,
	logRepo service.LogRepository,
) *CleanupWorker {
	return &CleanupWorker{
		logger:    logger,
		traceRepo: traceRepo,
		spanRepo:  spanRepo,
		logRepo:   logRepo,
	}
}

// ProcessTask deletes all telemetry older than the retention cutoff. Spans
// and logs go first so a failure partway never strands children without a
// parent trace.
func (w *CleanupWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload RetentionCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal retention cleanup payload: %w", err)
	}
	if payload.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", payload.RetentionDays)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -payload.RetentionDays)

	if payload.DryRun {
		w.logger.Info("retention cleanup dry run",
			zap.Time("cutoff", cutoff),
			zap.Int("retention_days", payload.RetentionDays),
		)
		return nil
	}

	w.logger.Info("starting retention cleanup",
		zap.Time("cutoff", cutoff),
		zap.Int("retention_days", payload.RetentionDays),
	)

	if err := w.logRepo.DeleteOlderThan(ctx, cutoff); err != nil {
		return fmt.Errorf("failed to delete old logs: %w", err)
	}
	if err := w.spanRepo.DeleteOlderThan(ctx, cutoff); err != nil {
		return fmt.Errorf("failed to delete old spans: %w", err)
	}
	if err := w.traceRepo.DeleteOlderThan(ctx, cutoff); err != nil {
		return fmt.Errorf("failed to delete old traces: %w", err)
	}

	w.logger.Info("retention cleanup completed", zap.Time("cutoff", cutoff))
	return nil
}
