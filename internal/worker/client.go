package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/agentgauge/agentgauge/internal/config"
)

// Enqueuer hands tasks to the worker queue. It implements
// service.EvalEnqueuer so the API process can accept async eval runs
// without importing asynq anywhere else.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an enqueuer connected to the worker queue
func NewEnqueuer(cfg *config.Config) *Enqueuer {
	return &Enqueuer{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}),
	}
}

// EnqueueEvalRun enqueues one eval batch for the background worker
func (e *Enqueuer) EnqueueEvalRun(ctx context.Context, reportID, agentVersion string, testIDs []string) error {
	task, err := NewEvalRunTask(&EvalRunPayload{
		ReportID:     reportID,
		AgentVersion: agentVersion,
		TestIDs:      testIDs,
	})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
		return fmt.Errorf("failed to enqueue eval run: %w", err)
	}
	return nil
}

// EnqueueReportExport enqueues a report export for the background worker
func (e *Enqueuer) EnqueueReportExport(ctx context.Context, reportID, format string) error {
	task, err := NewReportExportTask(&ReportExportPayload{
		ReportID: reportID,
		Format:   ExportFormat(format),
	})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
		return fmt.Errorf("failed to enqueue report export: %w", err)
	}
	return nil
}

// Close releases the underlying queue connection
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
