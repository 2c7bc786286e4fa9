package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/service"
)

func setupIngestionApp(t *testing.T) (*fiber.App, *MockTraceRepository, *MockSpanRepository, *MockLogRepository, string) {
	t.Helper()

	traceRepo := new(MockTraceRepository)
	spanRepo := new(MockSpanRepository)
	logRepo := new(MockLogRepository)

	svc := service.NewIngestionService(zap.NewNop(), traceRepo, spanRepo, logRepo, nil)
	mw, _, rawKey := newTestAuth(t, []string{"traces:write"})

	app := fiber.New()
	NewIngestionHandler(svc, zap.NewNop()).RegisterRoutes(app, mw)

	return app, traceRepo, spanRepo, logRepo, rawKey
}

func postJSON(t *testing.T, app *fiber.App, target, rawKey string, body any) *http.Response {
	t.Helper()

	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if rawKey != "" {
		req.Header.Set("X-API-Key", rawKey)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestIngestBatch(t *testing.T) {
	t.Run("stores trace with spans and logs", func(t *testing.T) {
		app, traceRepo, spanRepo, logRepo, rawKey := setupIngestionApp(t)

		traceRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Trace")).Return(nil)
		spanRepo.On("InsertBatch", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("[]domain.Span")).Return(nil)
		logRepo.On("InsertBatch", mock.Anything, mock.AnythingOfType("[]*domain.LogEntry")).Return(nil)

		resp := postJSON(t, app, "/v1/traces", rawKey, map[string]any{
			"trace": map[string]any{
				"serviceName": "desk-agent",
				"userId":      "trader-1",
			},
			"spans": []map[string]any{
				{"name": "agent_execution", "spanType": "agent"},
			},
			"logs": []map[string]any{
				{"level": "INFO", "message": "run started"},
			},
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result map[string]any
		respBody, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(respBody, &result))
		assert.NotEmpty(t, result["traceId"])
		assert.Equal(t, float64(1), result["spanCount"])
		assert.Equal(t, float64(1), result["logCount"])

		traceRepo.AssertExpectations(t)
		spanRepo.AssertExpectations(t)
		logRepo.AssertExpectations(t)
	})

	t.Run("returns 400 when trace is missing", func(t *testing.T) {
		app, _, _, _, rawKey := setupIngestionApp(t)

		resp := postJSON(t, app, "/v1/traces", rawKey, map[string]any{
			"spans": []map[string]any{{"name": "orphan"}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("returns 400 for a span without a name", func(t *testing.T) {
		app, _, _, _, rawKey := setupIngestionApp(t)

		resp := postJSON(t, app, "/v1/traces", rawKey, map[string]any{
			"trace": map[string]any{"serviceName": "desk-agent"},
			"spans": []map[string]any{{"spanType": "tool"}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("returns 401 without credentials", func(t *testing.T) {
		app, _, _, _, _ := setupIngestionApp(t)

		resp := postJSON(t, app, "/v1/traces", "", map[string]any{
			"trace": map[string]any{"serviceName": "desk-agent"},
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("returns 403 for a key without the write scope", func(t *testing.T) {
		traceRepo := new(MockTraceRepository)
		svc := service.NewIngestionService(zap.NewNop(), traceRepo, new(MockSpanRepository), new(MockLogRepository), nil)
		mw, _, rawKey := newTestAuth(t, []string{"traces:read"})

		app := fiber.New()
		NewIngestionHandler(svc, zap.NewNop()).RegisterRoutes(app, mw)

		resp := postJSON(t, app, "/v1/traces", rawKey, map[string]any{
			"trace": map[string]any{"serviceName": "desk-agent"},
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("scrubs PII from trace metadata before storage", func(t *testing.T) {
		app, traceRepo, _, _, rawKey := setupIngestionApp(t)

		var stored *domain.Trace
		traceRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Trace")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*domain.Trace)
			}).Return(nil)

		resp := postJSON(t, app, "/v1/traces", rawKey, map[string]any{
			"trace": map[string]any{
				"serviceName": "desk-agent",
				"metadata":    map[string]any{"contact": "reach me at trader@bank.com"},
			},
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		require.NotNil(t, stored)
		assert.NotContains(t, stored.Metadata, "trader@bank.com")
	})
}
