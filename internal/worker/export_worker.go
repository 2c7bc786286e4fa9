package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/service"
)

const (
	// TypeReportExport is the task type for exporting an eval report
	TypeReportExport = "export:report"
)

// ExportFormat names a report export encoding
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
)

// ReportExportPayload is the payload for report export tasks
type ReportExportPayload struct {
	ReportID string       `json:"report_id"`
	Format   ExportFormat `json:"format"`
}

// NewReportExportTask creates a report export task
func NewReportExportTask(payload *ReportExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report export payload: %w", err)
	}
	return asynq.NewTask(TypeReportExport, data, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute)), nil
}

// ExportWorker writes completed eval reports to object storage
type ExportWorker struct {
	logger      *zap.Logger
	evalService *service.EvalService
	minioClient *minio.Client
	bucket      string
}

// NewExportWorker creates a new export worker
func NewExportWorker(
	logger *zap.Logger,
	evalService *service.EvalService,
	minioClient *minio.Client,
	bucket string,
) *ExportWorker {
	return &ExportWorker{
		logger:      logger,
		evalService: evalService,
		minioClient: minioClient,
		bucket:      bucket,
	}
}

// ProcessTask exports one report. The object key is recorded back on the
// report so API clients can locate the artifact.
func (w *ExportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ReportExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal report export payload: %w", err)
	}
	if payload.Format == "" {
		payload.Format = ExportFormatJSON
	}

	report, err := w.evalService.GetReport(ctx, payload.ReportID)
	if err != nil {
		return fmt.Errorf("failed to load report: %w", err)
	}
	if report.Status != domain.JobStatusCompleted && report.Status != domain.JobStatusFailed {
		return fmt.Errorf("report %s is still %s, nothing to export", report.ID, report.Status)
	}

	var data []byte
	switch payload.Format {
	case ExportFormatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
	case ExportFormatCSV:
		data, err = encodeReportCSV(report)
	default:
		return fmt.Errorf("unsupported export format: %s", payload.Format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	objectKey := fmt.Sprintf("reports/%s/%s.%s",
		report.CreatedAt.UTC().Format("2006/01/02"), report.ID, payload.Format)

	contentType := "application/json"
	if payload.Format == ExportFormatCSV {
		contentType = "text/csv"
	}

	if _, err := w.minioClient.PutObject(ctx, w.bucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	); err != nil {
		return fmt.Errorf("failed to upload report: %w", err)
	}

	if err := w.evalService.AttachReportObject(ctx, report.ID, objectKey); err != nil {
		return fmt.Errorf("failed to record object key: %w", err)
	}

	w.logger.Info("report exported",
		zap.String("report_id", report.ID),
		zap.String("object_key", objectKey),
		zap.Int("size", len(data)),
	)
	return nil
}

// encodeReportCSV flattens a report into one row per eval result
func encodeReportCSV(report *domain.EvalReport) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write([]string{"test_id", "passed", "similarity", "expected_output", "actual_output"}); err != nil {
		return nil, err
	}
	for _, r := range report.Results {
		row := []string{
			r.TestID,
			strconv.FormatBool(r.Passed),
			strconv.FormatFloat(r.Similarity, 'f', 4, 64),
			r.ExpectedOutput,
			r.ActualOutput,
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
