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

	"github.com/agentgauge/agentgauge/internal/service"
)

func setupAPIKeysApp(t *testing.T) (*fiber.App, *service.AuthService) {
	t.Helper()

	mw, authService, _ := newTestAuth(t, nil)

	app := fiber.New()
	NewAPIKeysHandler(authService, zap.NewNop()).RegisterRoutes(app, mw)

	return app, authService
}

func adminPost(t *testing.T, app *fiber.App, target string, body any) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestCreateAPIKeyEndpoint(t *testing.T) {
	t.Run("returns the secret key exactly once", func(t *testing.T) {
		app, _ := setupAPIKeysApp(t)

		resp := adminPost(t, app, "/v1/api-keys/", map[string]any{
			"name":   "ci harness",
			"scopes": []string{"traces:write", "evals:read"},
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result map[string]any
		respBody, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(respBody, &result))

		secret := result["secretKey"].(string)
		assert.True(t, len(secret) > 10)
		assert.Contains(t, result["keyPreview"], "...")
		assert.NotContains(t, result["keyPreview"], secret[7:])

		// The listing never exposes more than the preview.
		req := httptest.NewRequest(http.MethodGet, "/v1/api-keys/", nil)
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
		listResp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, listResp.StatusCode)

		listBody, _ := io.ReadAll(listResp.Body)
		assert.NotContains(t, string(listBody), secret)
	})

	t.Run("requires a name", func(t *testing.T) {
		app, _ := setupAPIKeysApp(t)

		resp := adminPost(t, app, "/v1/api-keys/", map[string]any{
			"scopes": []string{"traces:read"},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects non-admin callers", func(t *testing.T) {
		mw, authService, rawKey := newTestAuth(t, []string{"traces:write"})

		app := fiber.New()
		NewAPIKeysHandler(authService, zap.NewNop()).RegisterRoutes(app, mw)

		req := httptest.NewRequest(http.MethodPost, "/v1/api-keys/", jsonBody(t, map[string]any{"name": "sneaky"}))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", rawKey)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestDeleteAPIKeyEndpoint(t *testing.T) {
	app, _ := setupAPIKeysApp(t)

	resp := adminPost(t, app, "/v1/api-keys/", map[string]any{"name": "short lived"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	respBody, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(respBody, &created))

	req := httptest.NewRequest(http.MethodDelete, "/v1/api-keys/"+created["id"].(string), nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)

	deleteResp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, deleteResp.StatusCode)

	// Malformed IDs are rejected before hitting the store.
	req = httptest.NewRequest(http.MethodDelete, "/v1/api-keys/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)

	badResp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}
