package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/middleware"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/service"
)

// IngestionHandler handles trace ingestion endpoints
type IngestionHandler struct {
	ingestionService *service.IngestionService
	logger           *zap.Logger
}

// NewIngestionHandler creates a new ingestion handler
func NewIngestionHandler(ingestionService *service.IngestionService, logger *zap.Logger) *IngestionHandler {
	return &IngestionHandler{
		ingestionService: ingestionService,
		logger:           logger,
	}
}

// IngestBatch handles POST /v1/traces. External harness processes post a
// trace with its spans and logs in one request; ids are generated when
// absent and the stored trace is echoed back.
func (h *IngestionHandler) IngestBatch(c *fiber.Ctx) error {
	var batch domain.IngestionBatch
	if err := c.BodyParser(&batch); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	trace, err := h.ingestionService.IngestBatch(c.Context(), &batch)
	if err != nil {
		if apperrors.IsValidation(err) {
			return appErrorResponse(c, err, "Invalid batch")
		}
		h.logger.Error("failed to ingest batch", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to ingest batch")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"traceId":   trace.TraceID,
		"spanCount": len(batch.Spans),
		"logCount":  len(batch.Logs),
	})
}

// RegisterRoutes registers ingestion routes
func (h *IngestionHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware, limits ...fiber.Handler) {
	chain := append([]fiber.Handler{authMiddleware.RequireAuth()}, limits...)
	v1 := app.Group("/v1", chain...)
	v1.Post("/traces", authMiddleware.RequireScope("traces:write"), h.IngestBatch)
}
