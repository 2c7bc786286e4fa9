package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/middleware"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/service"
)

// TracesHandler handles trace query endpoints
type TracesHandler struct {
	queryService *service.QueryService
	logger       *zap.Logger
}

// NewTracesHandler creates a new traces handler
func NewTracesHandler(queryService *service.QueryService, logger *zap.Logger) *TracesHandler {
	return &TracesHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// ListTraces handles GET /v1/traces
func (h *TracesHandler) ListTraces(c *fiber.Ctx) error {
	filter := parseTraceFilter(c)
	limit := parseQueryInt(c, "limit", service.DefaultTraceListLimit)
	cursor := c.Query("cursor")

	list, err := h.queryService.ListTraces(c.Context(), filter, limit, cursor)
	if err != nil {
		if apperrors.IsValidation(err) {
			return appErrorResponse(c, err, "Invalid query")
		}
		h.logger.Error("failed to list traces", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list traces")
	}

	return c.JSON(list)
}

// SearchTraces handles GET /v1/traces/search
func (h *TracesHandler) SearchTraces(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Search query required")
	}

	hours := parseQueryInt(c, "hours", 24)
	limit := parseQueryInt(c, "limit", service.DefaultTraceListLimit)

	list, err := h.queryService.SearchTraces(c.Context(), query, time.Duration(hours)*time.Hour, limit)
	if err != nil {
		h.logger.Error("failed to search traces", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to search traces")
	}

	return c.JSON(list)
}

// GetTrace handles GET /v1/traces/:traceId
func (h *TracesHandler) GetTrace(c *fiber.Ctx) error {
	traceID := c.Params("traceId")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID required")
	}

	trace, err := h.queryService.GetTrace(c.Context(), traceID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Trace not found")
		}
		h.logger.Error("failed to get trace", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get trace")
	}

	return c.JSON(trace)
}

// GetTraceDetails handles GET /v1/traces/:traceId/details. Returns the
// trace with its span tree, logs and a summary suitable for inspection.
func (h *TracesHandler) GetTraceDetails(c *fiber.Ctx) error {
	traceID := c.Params("traceId")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID required")
	}

	detail, err := h.queryService.TraceDetails(c.Context(), traceID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Trace not found")
		}
		h.logger.Error("failed to get trace details", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get trace details")
	}

	return c.JSON(detail)
}

// GetTraceSpans handles GET /v1/traces/:traceId/spans
func (h *TracesHandler) GetTraceSpans(c *fiber.Ctx) error {
	traceID := c.Params("traceId")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID required")
	}

	filter := &domain.SpanFilter{TraceID: traceID}
	if spanType := c.Query("spanType"); spanType != "" {
		st := domain.SpanType(spanType)
		filter.SpanType = &st
	}
	if status := c.Query("status"); status != "" {
		st := domain.SpanStatus(status)
		filter.Status = &st
	}

	spans, err := h.queryService.GetSpans(c.Context(), filter, parseQueryInt(c, "limit", 0))
	if err != nil {
		h.logger.Error("failed to get spans", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get spans")
	}

	return c.JSON(fiber.Map{"spans": spans})
}

// GetTraceLogs handles GET /v1/traces/:traceId/logs
func (h *TracesHandler) GetTraceLogs(c *fiber.Ctx) error {
	traceID := c.Params("traceId")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID required")
	}

	filter := &domain.LogFilter{TraceID: traceID}
	if level := c.Query("level"); level != "" {
		l := domain.LogLevel(level)
		filter.Level = &l
	}
	if minSeverity := parseQueryInt(c, "minSeverity", 0); minSeverity > 0 {
		filter.MinSeverity = &minSeverity
	}

	logs, err := h.queryService.GetLogs(c.Context(), traceID, filter, parseQueryInt(c, "limit", 0))
	if err != nil {
		h.logger.Error("failed to get logs", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get logs")
	}

	return c.JSON(fiber.Map{"logs": logs})
}

// parseTraceFilter parses trace filter from query params
func parseTraceFilter(c *fiber.Ctx) *domain.TraceFilter {
	filter := &domain.TraceFilter{}

	if userID := c.Query("userId"); userID != "" {
		filter.UserID = &userID
	}

	if serviceName := c.Query("serviceName"); serviceName != "" {
		filter.ServiceName = &serviceName
	}

	if status := c.Query("status"); status != "" {
		ts := domain.TraceStatus(status)
		filter.Status = &ts
	}

	if from := c.Query("fromTimestamp"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.FromTime = &t
		}
	}

	if to := c.Query("toTimestamp"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.ToTime = &t
		}
	}

	if minDuration := parseQueryFloat(c, "minDurationMs", 0); minDuration > 0 {
		filter.MinDurationMs = &minDuration
	}

	return filter
}

// RegisterRoutes registers trace query routes
func (h *TracesHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware) {
	v1 := app.Group("/v1", authMiddleware.RequireAuth(), authMiddleware.RequireScope("traces:read"))

	v1.Get("/traces", h.ListTraces)
	v1.Get("/traces/search", h.SearchTraces)
	v1.Get("/traces/:traceId", h.GetTrace)
	v1.Get("/traces/:traceId/details", h.GetTraceDetails)
	v1.Get("/traces/:traceId/spans", h.GetTraceSpans)
	v1.Get("/traces/:traceId/logs", h.GetTraceLogs)
}
