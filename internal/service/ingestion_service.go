package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/id"
	"github.com/agentgauge/agentgauge/internal/pkg/metrics"
	"github.com/agentgauge/agentgauge/internal/pkg/pagination"
	"github.com/agentgauge/agentgauge/internal/pkg/scrub"
)

// TraceRepository defines the interface for trace persistence operations.
// Rows are immutable; re-inserting a trace_id supersedes the earlier row.
// All methods must be safe for concurrent use.
type TraceRepository interface {
	// Insert persists a single trace.
	Insert(ctx context.Context, trace *domain.Trace) error
	// InsertBatch persists multiple traces in a single operation.
	InsertBatch(ctx context.Context, traces []*domain.Trace) error
	// GetByID retrieves a trace by its ID.
	GetByID(ctx context.Context, traceID string) (*domain.Trace, error)
	// List returns traces matching the filter, newest first, with pagination.
	List(ctx context.Context, filter *domain.TraceFilter, limit, offset int, cursor *pagination.Cursor) (*domain.TraceList, error)
	// DeleteOlderThan removes traces that started before the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// SpanRepository defines the interface for span persistence operations.
type SpanRepository interface {
	// InsertBatch persists all spans of one trace in a single operation.
	InsertBatch(ctx context.Context, traceID string, spans []domain.Span) error
	// GetByTraceID retrieves all spans of a trace in start order.
	GetByTraceID(ctx context.Context, traceID string) ([]domain.Span, error)
	// List returns spans matching the filter.
	List(ctx context.Context, filter *domain.SpanFilter, limit int) ([]domain.Span, error)
	// DeleteOlderThan removes spans that started before the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// LogRepository defines the interface for structured log persistence.
type LogRepository interface {
	// Insert persists a single log entry.
	Insert(ctx context.Context, entry *domain.LogEntry) error
	// InsertBatch persists multiple log entries in a single operation.
	InsertBatch(ctx context.Context, entries []*domain.LogEntry) error
	// GetByTraceID retrieves log entries of a trace in timestamp order.
	GetByTraceID(ctx context.Context, traceID string, filter *domain.LogFilter, limit int) ([]domain.LogEntry, error)
	// DeleteOlderThan removes log entries recorded before the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// IngestionService accepts trace batches from external harness processes.
//
// A batch carries one trace plus its spans and log entries. The service
// generates missing IDs, normalizes statuses and timestamps, scrubs every
// free-form payload before it reaches storage, and publishes a realtime
// event once the batch is persisted.
type IngestionService struct {
	traceRepo TraceRepository
	spanRepo  SpanRepository
	logRepo   LogRepository
	realtime  *RealtimeService
	logger    *zap.Logger
}

// NewIngestionService creates a new IngestionService. realtime may be nil;
// events are then not published.
func NewIngestionService(
	logger *zap.Logger,
	traceRepo TraceRepository,
	spanRepo SpanRepository,
	logRepo LogRepository,
	realtime *RealtimeService,
) *IngestionService {
	return &IngestionService{
		logger:    logger.Named("ingestion"),
		traceRepo: traceRepo,
		spanRepo:  spanRepo,
		logRepo:   logRepo,
		realtime:  realtime,
	}
}

// IngestBatch ingests one trace together with its spans and log entries.
// The trace is required; spans and logs are optional. Returns the persisted
// trace with generated IDs populated.
func (s *IngestionService) IngestBatch(ctx context.Context, batch *domain.IngestionBatch) (*domain.Trace, error) {
	if batch == nil || batch.Trace == nil {
		return nil, apperrors.Validation("trace is required")
	}

	trace, err := s.buildTrace(batch.Trace)
	if err != nil {
		return nil, err
	}

	spans := make([]domain.Span, 0, len(batch.Spans))
	for i, input := range batch.Spans {
		if input.Name == "" {
			return nil, apperrors.Validation(fmt.Sprintf("spans[%d]: name is required", i))
		}
		span, err := s.buildSpan(trace.TraceID, input)
		if err != nil {
			return nil, err
		}
		spans = append(spans, *span)
	}

	logs := make([]*domain.LogEntry, 0, len(batch.Logs))
	for i, input := range batch.Logs {
		if input.Message == "" {
			return nil, apperrors.Validation(fmt.Sprintf("logs[%d]: message is required", i))
		}
		entry, err := s.buildLog(trace.TraceID, trace.UserID, input)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	if err := s.traceRepo.Insert(ctx, trace); err != nil {
		return nil, fmt.Errorf("failed to insert trace: %w", err)
	}
	if len(spans) > 0 {
		if err := s.spanRepo.InsertBatch(ctx, trace.TraceID, spans); err != nil {
			return nil, fmt.Errorf("failed to insert spans: %w", err)
		}
	}
	if len(logs) > 0 {
		if err := s.logRepo.InsertBatch(ctx, logs); err != nil {
			return nil, fmt.Errorf("failed to insert logs: %w", err)
		}
	}

	metrics.RecordIngestedBatch(1, len(spans), len(logs))
	s.logger.Debug("batch ingested",
		zap.String("trace_id", trace.TraceID),
		zap.Int("spans", len(spans)),
		zap.Int("logs", len(logs)),
	)

	if s.realtime != nil {
		s.realtime.PublishTraceIngested(ctx, trace.TraceID)
	}

	return trace, nil
}

// StoreRun persists a finished in-process trace produced by the tracer,
// together with the structured log entries collected during the run. Used by
// the agent-run flow; external batches go through IngestBatch.
func (s *IngestionService) StoreRun(ctx context.Context, trace *domain.Trace, logs []*domain.LogEntry) error {
	if trace == nil {
		return apperrors.Validation("trace is required")
	}

	if err := s.traceRepo.Insert(ctx, trace); err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}
	if len(trace.Spans) > 0 {
		if err := s.spanRepo.InsertBatch(ctx, trace.TraceID, trace.Spans); err != nil {
			return fmt.Errorf("failed to insert spans: %w", err)
		}
	}
	if len(logs) > 0 {
		if err := s.logRepo.InsertBatch(ctx, logs); err != nil {
			return fmt.Errorf("failed to insert logs: %w", err)
		}
	}

	metrics.RecordIngestedBatch(1, len(trace.Spans), len(logs))
	if s.realtime != nil {
		s.realtime.PublishTraceIngested(ctx, trace.TraceID)
	}
	return nil
}

func (s *IngestionService) buildTrace(input *domain.TraceInput) (*domain.Trace, error) {
	now := time.Now().UTC()

	traceID := input.TraceID
	if traceID == "" {
		traceID = id.NewTraceID()
	}

	metadata, err := encodeScrubbed(input.Metadata)
	if err != nil {
		return nil, apperrors.Validation("metadata is not serializable").WithError(err)
	}

	startTime := now
	if input.StartTime != nil {
		startTime = *input.StartTime
	}

	status := input.Status
	if !status.IsValid() {
		status = domain.TraceStatusInProgress
		if input.EndTime != nil {
			status = domain.TraceStatusSuccess
		}
	}

	var durationMs float64
	if input.EndTime != nil {
		durationMs = float64(input.EndTime.Sub(startTime).Microseconds()) / 1000.0
	}

	serviceName := input.ServiceName
	if serviceName == "" {
		serviceName = "unknown"
	}

	return &domain.Trace{
		TraceID:     traceID,
		ServiceName: serviceName,
		UserID:      input.UserID,
		Status:      status,
		Metadata:    metadata,
		StartTime:   startTime,
		EndTime:     input.EndTime,
		DurationMs:  durationMs,
		CreatedAt:   now,
	}, nil
}

func (s *IngestionService) buildSpan(traceID string, input *domain.SpanInput) (*domain.Span, error) {
	now := time.Now().UTC()

	spanID := input.SpanID
	if spanID == "" {
		spanID = id.NewSpanID()
	}

	attributes, err := encodeScrubbed(input.Attributes)
	if err != nil {
		return nil, apperrors.Validation("span attributes are not serializable").WithError(err)
	}

	var events string
	if len(input.Events) > 0 {
		scrubbed := make([]domain.SpanEvent, len(input.Events))
		for i, ev := range input.Events {
			scrubbed[i] = domain.SpanEvent{
				Name:       ev.Name,
				Timestamp:  ev.Timestamp,
				Attributes: scrub.ScrubMap(ev.Attributes),
			}
		}
		data, err := json.Marshal(scrubbed)
		if err != nil {
			return nil, apperrors.Validation("span events are not serializable").WithError(err)
		}
		events = string(data)
	}

	startTime := now
	if input.StartTime != nil {
		startTime = *input.StartTime
	}

	spanType := input.SpanType
	if !spanType.IsValid() {
		spanType = domain.SpanTypeCustom
	}

	status := input.Status
	if !status.IsValid() {
		status = domain.SpanStatusInProgress
		if input.EndTime != nil {
			status = domain.SpanStatusSuccess
		}
	}
	if input.Error != "" {
		status = domain.SpanStatusError
	}

	var durationMs float64
	if input.EndTime != nil {
		durationMs = float64(input.EndTime.Sub(startTime).Microseconds()) / 1000.0
	}

	return &domain.Span{
		SpanID:       spanID,
		TraceID:      traceID,
		ParentSpanID: input.ParentSpanID,
		Name:         input.Name,
		SpanType:     spanType,
		Status:       status,
		StartTime:    startTime,
		EndTime:      input.EndTime,
		DurationMs:   durationMs,
		Attributes:   attributes,
		Events:       events,
		Error:        scrub.Scrub(input.Error),
		CreatedAt:    now,
	}, nil
}

func (s *IngestionService) buildLog(traceID, userID string, input *domain.LogInput) (*domain.LogEntry, error) {
	timestamp := time.Now().UTC()
	if input.Timestamp != nil {
		timestamp = *input.Timestamp
	}

	level, _ := domain.ParseLogLevel(input.Level)

	extra, err := encodeScrubbed(input.Extra)
	if err != nil {
		return nil, apperrors.Validation("log extra is not serializable").WithError(err)
	}

	entryTraceID := input.TraceID
	if entryTraceID == "" {
		entryTraceID = traceID
	}
	entryUserID := input.UserID
	if entryUserID == "" {
		entryUserID = userID
	}

	return &domain.LogEntry{
		Timestamp: timestamp,
		Level:     level,
		Severity:  uint8(level.Severity()),
		Logger:    input.Logger,
		Message:   scrub.Scrub(input.Message),
		TraceID:   entryTraceID,
		SpanID:    input.SpanID,
		UserID:    entryUserID,
		Extra:     extra,
	}, nil
}

// encodeScrubbed scrubs an arbitrary payload and returns its JSON encoding.
// nil encodes to the empty string.
func encodeScrubbed(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(scrub.ScrubValue(v))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
