package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/dto"
	"github.com/agentgauge/agentgauge/internal/middleware"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/service"
)

// EvalsHandler handles the eval capture/replay endpoints
type EvalsHandler struct {
	evalService *service.EvalService
	logger      *zap.Logger
}

// NewEvalsHandler creates a new evals handler
func NewEvalsHandler(evalService *service.EvalService, logger *zap.Logger) *EvalsHandler {
	return &EvalsHandler{
		evalService: evalService,
		logger:      logger,
	}
}

// Capture handles POST /v1/eval/capture. The agent runs live; the
// interaction is stored as a draft test case. A tool invocation failure
// surfaces as 502 so callers can distinguish upstream tool breakage from
// harness bugs.
func (h *EvalsHandler) Capture(c *fiber.Ctx) error {
	var req dto.CaptureRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	tc, err := h.evalService.Capture(c.Context(), req.Prompt, req.Context, req.AgentVersion, req.UserEmail, req.Tags)
	if err != nil {
		if apperrors.IsToolInvocation(err) || apperrors.IsValidation(err) {
			return appErrorResponse(c, err, "Capture failed")
		}
		h.logger.Error("capture failed", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Capture failed")
	}

	return c.Status(fiber.StatusCreated).JSON(dto.CaptureResponse{
		TestID:      tc.TestID,
		AgentOutput: tc.AgentOutput,
	})
}

// Run handles POST /v1/eval/run. Replays approved cases synchronously and
// returns one result per case.
func (h *EvalsHandler) Run(c *fiber.Ctx) error {
	var req dto.RunEvalRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	results, err := h.evalService.RunBatch(c.Context(), req.AgentVersion, req.TestIDs)
	if err != nil {
		h.logger.Error("eval run failed", zap.Error(err))
		return appErrorResponse(c, err, "Evaluation run failed")
	}

	return c.JSON(fiber.Map{
		"results": results,
		"summary": domain.Summarize(results),
	})
}

// RunAsync handles POST /v1/eval/run/async. Enqueues the batch and returns
// the pending report id immediately.
func (h *EvalsHandler) RunAsync(c *fiber.Ctx) error {
	var req dto.RunEvalRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	report, err := h.evalService.StartAsyncRun(c.Context(), req.AgentVersion, req.TestIDs)
	if err != nil {
		h.logger.Error("failed to start async eval run", zap.Error(err))
		return appErrorResponse(c, err, "Failed to start evaluation run")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"report_id": report.ID,
		"status":    report.Status,
	})
}

// GetReport handles GET /v1/eval/reports/:reportId
func (h *EvalsHandler) GetReport(c *fiber.Ctx) error {
	reportID := c.Params("reportId")
	if reportID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Report ID required")
	}

	report, err := h.evalService.GetReport(c.Context(), reportID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Report not found")
		}
		h.logger.Error("failed to get report", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get report")
	}

	return c.JSON(report)
}

// ExportReport handles POST /v1/eval/reports/:reportId/export. Queues a
// finished report for export to object storage.
func (h *EvalsHandler) ExportReport(c *fiber.Ctx) error {
	reportID := c.Params("reportId")
	if reportID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Report ID required")
	}

	req := dto.ExportReportRequest{Format: "json"}
	if len(c.Body()) > 0 {
		if err := dto.ParseAndValidate(c, &req); err != nil {
			return err
		}
		if req.Format == "" {
			req.Format = "json"
		}
	}

	if err := h.evalService.ExportReport(c.Context(), reportID, req.Format); err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Report not found")
		}
		if apperrors.IsValidation(err) {
			return appErrorResponse(c, err, "Report is not exportable")
		}
		h.logger.Error("failed to queue report export", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to queue report export")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"report_id": reportID,
		"format":    req.Format,
		"status":    "queued",
	})
}

// ListReports handles GET /v1/eval/reports
func (h *EvalsHandler) ListReports(c *fiber.Ctx) error {
	limit := parseQueryInt(c, "limit", 50)
	offset := parseQueryInt(c, "offset", 0)

	reports, err := h.evalService.ListReports(c.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list reports", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list reports")
	}

	return c.JSON(fiber.Map{"reports": reports})
}

// ListTestCases handles GET /v1/eval/cases
func (h *EvalsHandler) ListTestCases(c *fiber.Ctx) error {
	filter := &domain.TestCaseFilter{}
	if status := c.Query("status"); status != "" {
		s := domain.TestCaseStatus(status)
		filter.Status = &s
	}
	if version := c.Query("agentVersion"); version != "" {
		filter.AgentVersion = &version
	}
	if tag := c.Query("tag"); tag != "" {
		filter.Tag = &tag
	}

	limit := parseQueryInt(c, "limit", 50)
	offset := parseQueryInt(c, "offset", 0)

	cases, err := h.evalService.ListTestCases(c.Context(), filter, limit, offset)
	if err != nil {
		h.logger.Error("failed to list test cases", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list test cases")
	}

	return c.JSON(fiber.Map{"test_cases": cases})
}

// GetTestCase handles GET /v1/eval/cases/:testId
func (h *EvalsHandler) GetTestCase(c *fiber.Ctx) error {
	testID := c.Params("testId")
	if testID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Test ID required")
	}

	tc, err := h.evalService.GetTestCase(c.Context(), testID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Test case not found")
		}
		h.logger.Error("failed to get test case", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to get test case")
	}

	return c.JSON(tc)
}

// ReviewTestCase handles PATCH /v1/eval/cases/:testId/review. Reviewers
// approve or reject drafts, optionally correcting the expected output.
func (h *EvalsHandler) ReviewTestCase(c *fiber.Ctx) error {
	testID := c.Params("testId")
	if testID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Test ID required")
	}

	var req dto.ReviewTestCaseRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.evalService.ReviewTestCase(c.Context(), testID, domain.TestCaseStatus(req.Status), req.ExpectedOutput); err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Test case not found")
		}
		return appErrorResponse(c, err, "Failed to review test case")
	}

	return c.JSON(fiber.Map{"test_id": testID, "status": req.Status})
}

// DeleteTestCase handles DELETE /v1/eval/cases/:testId
func (h *EvalsHandler) DeleteTestCase(c *fiber.Ctx) error {
	testID := c.Params("testId")
	if testID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Test ID required")
	}

	if err := h.evalService.DeleteTestCase(c.Context(), testID); err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Test case not found")
		}
		h.logger.Error("failed to delete test case", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to delete test case")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RunMCP handles POST /v1/eval/mcp. Ad-hoc capture-and-compare without
// persisting a test case.
func (h *EvalsHandler) RunMCP(c *fiber.Ctx) error {
	var req dto.MCPEvalRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.evalService.RunMCPEvaluation(c.Context(), req.Prompt, req.Expected, req.Context)
	if err != nil {
		if apperrors.IsToolInvocation(err) || apperrors.IsValidation(err) {
			return appErrorResponse(c, err, "Evaluation failed")
		}
		h.logger.Error("mcp evaluation failed", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Evaluation failed")
	}

	return c.JSON(result)
}

// RegisterRoutes registers eval routes
func (h *EvalsHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware, limits ...fiber.Handler) {
	chain := append([]fiber.Handler{authMiddleware.RequireAuth()}, limits...)
	eval := app.Group("/v1/eval", chain...)

	write := authMiddleware.RequireScope("evals:write")
	read := authMiddleware.RequireScope("evals:read")

	eval.Post("/capture", write, h.Capture)
	eval.Post("/run", write, h.Run)
	eval.Post("/run/async", write, h.RunAsync)
	eval.Post("/mcp", write, h.RunMCP)

	eval.Get("/reports", read, h.ListReports)
	eval.Get("/reports/:reportId", read, h.GetReport)
	eval.Post("/reports/:reportId/export", write, h.ExportReport)

	eval.Get("/cases", read, h.ListTestCases)
	eval.Get("/cases/:testId", read, h.GetTestCase)
	eval.Patch("/cases/:testId/review", write, h.ReviewTestCase)
	eval.Delete("/cases/:testId", write, h.DeleteTestCase)
}
