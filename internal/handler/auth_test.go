package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExchangeToken(t *testing.T) {
	t.Run("exchanges a valid key for a session token", func(t *testing.T) {
		mw, authService, rawKey := newTestAuth(t, []string{"traces:read"})

		app := fiber.New()
		NewAuthHandler(authService, zap.NewNop()).RegisterRoutes(app, mw)

		resp := postJSON(t, app, "/v1/auth/token", "", map[string]any{
			"apiKey": rawKey,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]any
		respBody, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(respBody, &result))
		assert.NotEmpty(t, result["token"])
		assert.NotEmpty(t, result["expiresAt"])

		// The issued token authenticates a protected route.
		protected := fiber.New()
		protected.Get("/whoami", mw.RequireAuth(), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+result["token"].(string))
		authResp, err := protected.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, authResp.StatusCode)
	})

	t.Run("rejects an unknown key", func(t *testing.T) {
		mw, authService, _ := newTestAuth(t, nil)

		app := fiber.New()
		NewAuthHandler(authService, zap.NewNop()).RegisterRoutes(app, mw)

		resp := postJSON(t, app, "/v1/auth/token", "", map[string]any{
			"apiKey": "ag_nosuchkey00000000000000000000000",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("requires a key in the body", func(t *testing.T) {
		mw, authService, _ := newTestAuth(t, nil)

		app := fiber.New()
		NewAuthHandler(authService, zap.NewNop()).RegisterRoutes(app, mw)

		resp := postJSON(t, app, "/v1/auth/token", "", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
