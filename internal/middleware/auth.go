package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/service"
)

// ContextKey type for context keys
type ContextKey string

const (
	// Context keys
	ContextKeyAPIKey   ContextKey = "apiKeyContext"
	ContextKeyAuthType ContextKey = "authType"
)

// AuthType represents the type of authentication used
type AuthType string

const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeJWT    AuthType = "jwt"
	AuthTypeAdmin  AuthType = "admin_token"
)

// AuthMiddleware handles authentication
type AuthMiddleware struct {
	authService *service.AuthService
	adminToken  string
}

// NewAuthMiddleware creates a new auth middleware. adminToken bootstraps
// key management before any API key exists; empty disables it.
func NewAuthMiddleware(authService *service.AuthService, adminToken string) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		adminToken:  adminToken,
	}
}

// RequireAuth authenticates the request by API key or session JWT and
// installs the key context for scope checks downstream.
func (m *AuthMiddleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey := extractAPIKey(c); apiKey != "" {
			key, err := m.authService.VerifyAPIKey(c.Context(), apiKey)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   "Unauthorized",
					"message": "Invalid API key",
				})
			}
			c.Locals(string(ContextKeyAPIKey), &domain.APIKeyContext{
				APIKeyID: key.ID,
				Scopes:   key.Scopes,
			})
			c.Locals(string(ContextKeyAuthType), AuthTypeAPIKey)
			return c.Next()
		}

		if token := extractBearerToken(c); token != "" {
			keyCtx, err := m.authService.ValidateToken(token)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   "Unauthorized",
					"message": "Invalid or expired token",
				})
			}
			c.Locals(string(ContextKeyAPIKey), keyCtx)
			c.Locals(string(ContextKeyAuthType), AuthTypeJWT)
			return c.Next()
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "Unauthorized",
			"message": "API key or token required",
		})
	}
}

// RequireScope gates a route on an API key scope. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		keyCtx, ok := GetAPIKeyContext(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "Unauthorized",
				"message": "Authentication required",
			})
		}
		if !keyCtx.HasScope(scope) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "Forbidden",
				"message": "Missing required scope: " + scope,
			})
		}
		return c.Next()
	}
}

// RequireAdmin allows the bootstrap admin token or a key carrying the
// admin scope. Used for API key management routes.
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.adminToken != "" {
			token := extractBearerToken(c)
			if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(m.adminToken)) == 1 {
				c.Locals(string(ContextKeyAuthType), AuthTypeAdmin)
				return c.Next()
			}
		}

		if apiKey := extractAPIKey(c); apiKey != "" {
			key, err := m.authService.VerifyAPIKey(c.Context(), apiKey)
			if err == nil && key.HasScope("admin:write") {
				c.Locals(string(ContextKeyAPIKey), &domain.APIKeyContext{
					APIKeyID: key.ID,
					Scopes:   key.Scopes,
				})
				c.Locals(string(ContextKeyAuthType), AuthTypeAPIKey)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "Unauthorized",
			"message": "Admin credentials required",
		})
	}
}

// OptionalAuth tries to authenticate but continues even if it fails
func (m *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey := extractAPIKey(c); apiKey != "" {
			if key, err := m.authService.VerifyAPIKey(c.Context(), apiKey); err == nil {
				c.Locals(string(ContextKeyAPIKey), &domain.APIKeyContext{
					APIKeyID: key.ID,
					Scopes:   key.Scopes,
				})
				c.Locals(string(ContextKeyAuthType), AuthTypeAPIKey)
				return c.Next()
			}
		}

		if token := extractBearerToken(c); token != "" {
			if keyCtx, err := m.authService.ValidateToken(token); err == nil {
				c.Locals(string(ContextKeyAPIKey), keyCtx)
				c.Locals(string(ContextKeyAuthType), AuthTypeJWT)
			}
		}

		return c.Next()
	}
}

// extractAPIKey extracts an API key from the request. Keys carry the
// "ag_" prefix, which distinguishes them from session JWTs on the
// Authorization header.
func extractAPIKey(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		if strings.HasPrefix(token, "ag_") {
			return token
		}
	}

	if apiKey := c.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	return ""
}

// extractBearerToken extracts a session JWT (or admin token) from the
// Authorization header. SSE clients that cannot set headers may pass the
// token as a query parameter instead.
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(token, "ag_") {
			return token
		}
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// GetAPIKeyContext gets the authenticated key context from the request
func GetAPIKeyContext(c *fiber.Ctx) (*domain.APIKeyContext, bool) {
	keyCtx, ok := c.Locals(string(ContextKeyAPIKey)).(*domain.APIKeyContext)
	return keyCtx, ok
}

// GetAuthType gets the authentication type from context
func GetAuthType(c *fiber.Ctx) (AuthType, bool) {
	authType, ok := c.Locals(string(ContextKeyAuthType)).(AuthType)
	return authType, ok
}
