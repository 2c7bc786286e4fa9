package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/dto"
	"github.com/agentgauge/agentgauge/internal/middleware"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/service"
)

// APIKeysHandler handles API key management endpoints
type APIKeysHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAPIKeysHandler creates a new API keys handler
func NewAPIKeysHandler(authService *service.AuthService, logger *zap.Logger) *APIKeysHandler {
	return &APIKeysHandler{
		authService: authService,
		logger:      logger,
	}
}

// ListAPIKeys handles GET /v1/api-keys
func (h *APIKeysHandler) ListAPIKeys(c *fiber.Ctx) error {
	list, err := h.authService.ListAPIKeys(c.Context())
	if err != nil {
		h.logger.Error("failed to list API keys", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list API keys")
	}

	response := make([]fiber.Map, len(list.APIKeys))
	for i, key := range list.APIKeys {
		response[i] = fiber.Map{
			"id":         key.ID,
			"name":       key.Name,
			"keyPreview": key.KeyPreview,
			"scopes":     key.Scopes,
			"expiresAt":  key.ExpiresAt,
			"lastUsedAt": key.LastUsedAt,
			"createdAt":  key.CreatedAt,
		}
	}

	return c.JSON(fiber.Map{
		"data":       response,
		"totalCount": list.TotalCount,
	})
}

// CreateAPIKey handles POST /v1/api-keys
func (h *APIKeysHandler) CreateAPIKey(c *fiber.Ctx) error {
	var req dto.CreateAPIKeyRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.authService.CreateAPIKey(c.Context(), &domain.APIKeyInput{
		Name:      req.Name,
		Scopes:    req.Scopes,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.logger.Error("failed to create API key", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to create API key")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         result.APIKey.ID,
		"name":       result.APIKey.Name,
		"secretKey":  result.SecretKey, // Only returned on creation
		"keyPreview": result.APIKey.KeyPreview,
		"scopes":     result.APIKey.Scopes,
		"expiresAt":  result.APIKey.ExpiresAt,
		"createdAt":  result.APIKey.CreatedAt,
		"note":       "This is the only time the full secret key will be shown. Please save it securely.",
	})
}

// UpdateAPIKey handles PATCH /v1/api-keys/:keyId
func (h *APIKeysHandler) UpdateAPIKey(c *fiber.Ctx) error {
	keyID, err := uuid.Parse(c.Params("keyId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid key ID")
	}

	var req dto.UpdateAPIKeyRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return err
	}

	key, err := h.authService.UpdateAPIKey(c.Context(), keyID, &domain.APIKeyInput{
		Name:      req.Name,
		Scopes:    req.Scopes,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "API key not found")
		}
		h.logger.Error("failed to update API key", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to update API key")
	}

	return c.JSON(key)
}

// DeleteAPIKey handles DELETE /v1/api-keys/:keyId
func (h *APIKeysHandler) DeleteAPIKey(c *fiber.Ctx) error {
	keyID, err := uuid.Parse(c.Params("keyId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid key ID")
	}

	if err := h.authService.RevokeAPIKey(c.Context(), keyID); err != nil {
		if apperrors.IsNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "API key not found")
		}
		h.logger.Error("failed to delete API key", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to delete API key")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers API key routes. Key management is gated on the
// bootstrap admin token or a key with the admin scope.
func (h *APIKeysHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware) {
	v1 := app.Group("/v1/api-keys", authMiddleware.RequireAdmin())

	v1.Get("/", h.ListAPIKeys)
	v1.Post("/", h.CreateAPIKey)
	v1.Patch("/:keyId", h.UpdateAPIKey)
	v1.Delete("/:keyId", h.DeleteAPIKey)
}
