package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/pagination"
)

// MaxTraceListLimit caps how many traces one list call may return
const MaxTraceListLimit = 100

// DefaultTraceListLimit applies when the caller does not specify a limit
const DefaultTraceListLimit = 50

// maxTraceLogs bounds how many log entries a single-trace read loads
const maxTraceLogs = 1000

// QueryService serves the trace read path: single traces, filtered lists,
// resolved detail views and free-text search.
type QueryService struct {
	traceRepo TraceRepository
	spanRepo  SpanRepository
	logRepo   LogRepository
}

// NewQueryService creates a new query service
func NewQueryService(traceRepo TraceRepository, spanRepo SpanRepository, logRepo LogRepository) *QueryService {
	return &QueryService{
		traceRepo: traceRepo,
		spanRepo:  spanRepo,
		logRepo:   logRepo,
	}
}

// GetTrace retrieves a trace by ID with its spans and logs attached
func (s *QueryService) GetTrace(ctx context.Context, traceID string) (*domain.Trace, error) {
	trace, err := s.traceRepo.GetByID(ctx, traceID)
	if err != nil {
		return nil, err
	}

	spans, err := s.spanRepo.GetByTraceID(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spans: %w", err)
	}
	trace.Spans = spans

	logs, err := s.logRepo.GetByTraceID(ctx, traceID, nil, maxTraceLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	trace.Logs = logs

	return trace, nil
}

// ListTraces retrieves traces with filtering and cursor pagination. The
// cursor string is the encoded cursor returned by a previous call; empty
// means first page.
func (s *QueryService) ListTraces(ctx context.Context, filter *domain.TraceFilter, limit int, cursorStr string) (*domain.TraceList, error) {
	limit = clampLimit(limit)

	var cursor *pagination.Cursor
	if cursorStr != "" {
		c, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			return nil, err
		}
		cursor = c
	}

	return s.traceRepo.List(ctx, filter, limit, 0, cursor)
}

// GetSpans retrieves spans matching the filter
func (s *QueryService) GetSpans(ctx context.Context, filter *domain.SpanFilter, limit int) ([]domain.Span, error) {
	return s.spanRepo.List(ctx, filter, clampLimit(limit))
}

// GetLogs retrieves log entries for a trace, optionally filtered by level
// or minimum severity.
func (s *QueryService) GetLogs(ctx context.Context, traceID string, filter *domain.LogFilter, limit int) ([]domain.LogEntry, error) {
	return s.logRepo.GetByTraceID(ctx, traceID, filter, clampLimit(limit))
}

// TraceDetails returns a trace with its resolved span tree, logs and
// roll-up summary.
func (s *QueryService) TraceDetails(ctx context.Context, traceID string) (*domain.TraceDetail, error) {
	trace, err := s.traceRepo.GetByID(ctx, traceID)
	if err != nil {
		return nil, err
	}

	spans, err := s.spanRepo.GetByTraceID(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spans: %w", err)
	}

	logs, err := s.logRepo.GetByTraceID(ctx, traceID, nil, maxTraceLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}

	hasErrors := trace.Status == domain.TraceStatusError
	for _, span := range spans {
		if span.Status == domain.SpanStatusError {
			hasErrors = true
			break
		}
	}

	return &domain.TraceDetail{
		Trace: trace,
		Tree:  domain.BuildSpanTree(spans),
		Logs:  logs,
		Summary: domain.TraceSummary{
			DurationMs: trace.DurationMs,
			SpanCount:  len(spans),
			LogCount:   len(logs),
			HasErrors:  hasErrors,
		},
	}, nil
}

// SearchTraces finds traces whose metadata or recorded user input matches
// the query, newest first, within the time window.
func (s *QueryService) SearchTraces(ctx context.Context, query string, window time.Duration, limit int) (*domain.TraceList, error) {
	from := time.Now().Add(-window)
	filter := &domain.TraceFilter{
		Search:   &query,
		FromTime: &from,
	}
	return s.traceRepo.List(ctx, filter, clampLimit(limit), 0, nil)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultTraceListLimit
	}
	if limit > MaxTraceListLimit {
		return MaxTraceListLimit
	}
	return limit
}
