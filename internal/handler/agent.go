package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/dto"
	"github.com/agentgauge/agentgauge/internal/middleware"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/service"
)

// AgentHandler runs agents under a full trace
type AgentHandler struct {
	runService *service.RunService
	logger     *zap.Logger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(runService *service.RunService, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		runService: runService,
		logger:     logger,
	}
}

// Run handles POST /v1/agent/run. The run is traced end to end; an agent
// failure is reported in the result body, not as an HTTP error.
func (h *AgentHandler) Run(c *fiber.Ctx) error {
	var req dto.AgentRunRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	agentName := req.Agent
	if agentName == "" {
		agentName = "root_agent"
	}

	result, err := h.runService.Run(c.Context(), agentName, req.Input, req.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Unknown agent: "+agentName)
		}
		h.logger.Error("agent run failed", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Agent run failed")
	}

	return c.JSON(result)
}

// RegisterRoutes registers agent routes
func (h *AgentHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware, limits ...fiber.Handler) {
	chain := append([]fiber.Handler{authMiddleware.RequireAuth()}, limits...)
	v1 := app.Group("/v1/agent", chain...)
	v1.Post("/run", authMiddleware.RequireScope("traces:write"), h.Run)
}
