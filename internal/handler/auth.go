package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/dto"
	"github.com/agentgauge/agentgauge/internal/middleware"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ExchangeToken handles POST /v1/auth/token. Exchanges a verified API key
// for a short-lived session JWT, so browser clients (SSE in particular)
// never carry the long-lived key.
func (h *AuthHandler) ExchangeToken(c *fiber.Ctx) error {
	var req dto.TokenExchangeRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	token, expiresAt, err := h.authService.ExchangeToken(c.Context(), req.APIKey)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Invalid API key")
		}
		h.logger.Error("token exchange failed", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Token exchange failed")
	}

	return c.JSON(dto.TokenExchangeResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(app *fiber.App, _ *middleware.AuthMiddleware) {
	app.Post("/v1/auth/token", h.ExchangeToken)
}
