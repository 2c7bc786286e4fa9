package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/middleware"
	"github.com/agentgauge/agentgauge/internal/service"
)

// AnalyticsHandler serves the trace analyzer endpoints
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// Health handles GET /v1/analytics/health
func (h *AnalyticsHandler) Health(c *fiber.Ctx) error {
	summary, err := h.analyticsService.HealthSummary(c.Context(), parseQueryInt(c, "hours", 24))
	if err != nil {
		h.logger.Error("failed to compute health summary", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to compute health summary")
	}
	return c.JSON(summary)
}

// Errors handles GET /v1/analytics/errors
func (h *AnalyticsHandler) Errors(c *fiber.Ctx) error {
	summary, err := h.analyticsService.ErrorSummary(c.Context(), parseQueryInt(c, "hours", 24))
	if err != nil {
		h.logger.Error("failed to compute error summary", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to compute error summary")
	}
	return c.JSON(summary)
}

// FailedTraces handles GET /v1/analytics/failed
func (h *AnalyticsHandler) FailedTraces(c *fiber.Ctx) error {
	traces, err := h.analyticsService.FailedTraces(c.Context(),
		parseQueryInt(c, "hours", 24),
		parseQueryInt(c, "limit", 20),
	)
	if err != nil {
		h.logger.Error("failed to list failed traces", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list failed traces")
	}
	return c.JSON(fiber.Map{"failed_traces": traces})
}

// SlowTraces handles GET /v1/analytics/slow
func (h *AnalyticsHandler) SlowTraces(c *fiber.Ctx) error {
	traces, err := h.analyticsService.SlowTraces(c.Context(),
		parseQueryFloat(c, "thresholdMs", 1000),
		parseQueryInt(c, "hours", 24),
		parseQueryInt(c, "limit", 20),
	)
	if err != nil {
		h.logger.Error("failed to list slow traces", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list slow traces")
	}
	return c.JSON(fiber.Map{"slow_traces": traces})
}

// Latency handles GET /v1/analytics/latency
func (h *AnalyticsHandler) Latency(c *fiber.Ctx) error {
	stats, err := h.analyticsService.LatencyPercentiles(c.Context(), parseQueryInt(c, "hours", 24))
	if err != nil {
		h.logger.Error("failed to compute latency percentiles", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to compute latency percentiles")
	}
	return c.JSON(stats)
}

// SpanPerformance handles GET /v1/analytics/spans
func (h *AnalyticsHandler) SpanPerformance(c *fiber.Ctx) error {
	var spanType *domain.SpanType
	if st := c.Query("spanType"); st != "" {
		t := domain.SpanType(st)
		spanType = &t
	}

	rows, err := h.analyticsService.SpanPerformance(c.Context(), spanType, parseQueryInt(c, "hours", 24))
	if err != nil {
		h.logger.Error("failed to compute span performance", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to compute span performance")
	}
	return c.JSON(fiber.Map{"spans": rows})
}

// Volume handles GET /v1/analytics/volume
func (h *AnalyticsHandler) Volume(c *fiber.Ctx) error {
	buckets, err := h.analyticsService.RequestVolume(c.Context(),
		parseQueryInt(c, "hours", 24),
		parseQueryInt(c, "bucketMinutes", 60),
	)
	if err != nil {
		h.logger.Error("failed to compute request volume", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to compute request volume")
	}
	return c.JSON(fiber.Map{"volume": buckets})
}

// Users handles GET /v1/analytics/users
func (h *AnalyticsHandler) Users(c *fiber.Ctx) error {
	rows, err := h.analyticsService.UserActivity(c.Context(),
		parseQueryInt(c, "hours", 24),
		parseQueryInt(c, "limit", 20),
	)
	if err != nil {
		h.logger.Error("failed to compute user activity", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to compute user activity")
	}
	return c.JSON(fiber.Map{"users": rows})
}

// RegisterRoutes registers analytics routes
func (h *AnalyticsHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware) {
	analytics := app.Group("/v1/analytics",
		authMiddleware.RequireAuth(),
		authMiddleware.RequireScope("analytics:read"),
	)

	analytics.Get("/health", h.Health)
	analytics.Get("/errors", h.Errors)
	analytics.Get("/failed", h.FailedTraces)
	analytics.Get("/slow", h.SlowTraces)
	analytics.Get("/latency", h.Latency)
	analytics.Get("/spans", h.SpanPerformance)
	analytics.Get("/volume", h.Volume)
	analytics.Get("/users", h.Users)
}
