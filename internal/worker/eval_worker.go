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
	// TypeEvalRun is the task type for running an enqueued eval batch
	TypeEvalRun = "eval:run"
)

// EvalRunPayload is the payload for eval run tasks
type EvalRunPayload struct {
	ReportID     string   `json:"report_id"`
	AgentVersion string   `json:"agent_version"`
	TestIDs      []string `json:"test_ids,omitempty"`
}

// NewEvalRunTask creates an eval run task
func NewEvalRunTask(payload *EvalRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal eval run payload: %w", err)
	}
	return asynq.NewTask(TypeEvalRun, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// EvalWorker replays enqueued eval batches and stores the outcome on the
// report created when the run was accepted.
type EvalWorker struct {
	logger      *zap.Logger
	evalService *service.EvalService
}

// NewEvalWorker creates a new eval worker
func NewEvalWorker(logger *zap.Logger, evalService *service.EvalService) *EvalWorker {
	return &EvalWorker{
		logger:      logger,
		evalService: evalService,
	}
}

// ProcessTask processes one eval run task. Failures inside the batch are
// recorded on the report; only infrastructure errors propagate so asynq
// retries do not re-run batches that already completed.
func (w *EvalWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload EvalRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal eval run payload: %w", err)
	}
	if payload.ReportID == "" {
		return fmt.Errorf("eval run payload has no report id")
	}

	w.logger.Info("processing eval run",
		zap.String("report_id", payload.ReportID),
		zap.String("agent_version", payload.AgentVersion),
		zap.Int("test_count", len(payload.TestIDs)),
	)

	if err := w.evalService.ExecuteReport(ctx, payload.ReportID, payload.AgentVersion, payload.TestIDs); err != nil {
		w.logger.Error("eval run failed",
			zap.String("report_id", payload.ReportID),
			zap.Error(err),
		)
		return fmt.Errorf("eval run %s failed: %w", payload.ReportID, err)
	}

	w.logger.Info("eval run completed", zap.String("report_id", payload.ReportID))
	return nil
}
