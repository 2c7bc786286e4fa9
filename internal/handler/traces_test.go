package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/pagination"
	"github.com/agentgauge/agentgauge/internal/service"
)

func setupTracesApp(t *testing.T) (*fiber.App, *MockTraceRepository, *MockSpanRepository, *MockLogRepository, string) {
	t.Helper()

	traceRepo := new(MockTraceRepository)
	spanRepo := new(MockSpanRepository)
	logRepo := new(MockLogRepository)

	svc := service.NewQueryService(traceRepo, spanRepo, logRepo)
	mw, _, rawKey := newTestAuth(t, []string{"traces:read"})

	app := fiber.New()
	NewTracesHandler(svc, zap.NewNop()).RegisterRoutes(app, mw)

	return app, traceRepo, spanRepo, logRepo, rawKey
}

func getJSON(t *testing.T, app *fiber.App, target, rawKey string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if rawKey != "" {
		req.Header.Set("X-API-Key", rawKey)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var result map[string]any
	respBody, _ := io.ReadAll(resp.Body)
	if len(respBody) > 0 {
		_ = json.Unmarshal(respBody, &result)
	}
	return resp, result
}

func TestListTraces(t *testing.T) {
	t.Run("returns trace page", func(t *testing.T) {
		app, traceRepo, _, _, rawKey := setupTracesApp(t)

		traceRepo.On("List", mock.Anything, mock.AnythingOfType("*domain.TraceFilter"), service.DefaultTraceListLimit, 0, mock.Anything).
			Return(&domain.TraceList{
				Traces:     []domain.Trace{{TraceID: "0af7651916cd43dd8448eb211c80319c"}},
				TotalCount: 1,
			}, nil)

		resp, result := getJSON(t, app, "/v1/traces", rawKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		traces := result["traces"].([]any)
		assert.Len(t, traces, 1)

		traceRepo.AssertExpectations(t)
	})

	t.Run("passes filters through", func(t *testing.T) {
		app, traceRepo, _, _, rawKey := setupTracesApp(t)

		var captured *domain.TraceFilter
		traceRepo.On("List", mock.Anything, mock.AnythingOfType("*domain.TraceFilter"), 10, 0, mock.Anything).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(*domain.TraceFilter)
			}).
			Return(&domain.TraceList{}, nil)

		resp, _ := getJSON(t, app, "/v1/traces?userId=trader-1&status=error&limit=10", rawKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		require.NotNil(t, captured)
		require.NotNil(t, captured.UserID)
		assert.Equal(t, "trader-1", *captured.UserID)
		require.NotNil(t, captured.Status)
		assert.Equal(t, domain.TraceStatusError, *captured.Status)
	})
}

func TestGetTrace(t *testing.T) {
	t.Run("returns trace with spans and logs", func(t *testing.T) {
		app, traceRepo, spanRepo, logRepo, rawKey := setupTracesApp(t)

		traceID := "0af7651916cd43dd8448eb211c80319c"
		traceRepo.On("GetByID", mock.Anything, traceID).
			Return(&domain.Trace{TraceID: traceID, Status: domain.TraceStatusSuccess}, nil)
		spanRepo.On("GetByTraceID", mock.Anything, traceID).
			Return([]domain.Span{{SpanID: "b7ad6b7169203331", Name: "agent_execution"}}, nil)
		logRepo.On("GetByTraceID", mock.Anything, traceID, (*domain.LogFilter)(nil), mock.AnythingOfType("int")).
			Return([]domain.LogEntry{{Message: "run started"}}, nil)

		resp, result := getJSON(t, app, "/v1/traces/"+traceID, rawKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, traceID, result["traceId"])
		assert.Len(t, result["spans"].([]any), 1)
		assert.Len(t, result["logs"].([]any), 1)
	})

	t.Run("returns 404 for unknown trace", func(t *testing.T) {
		app, traceRepo, _, _, rawKey := setupTracesApp(t)

		traceRepo.On("GetByID", mock.Anything, "missing").
			Return(nil, apperrors.NotFound("trace"))

		resp, _ := getJSON(t, app, "/v1/traces/missing", rawKey)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGetTraceDetails(t *testing.T) {
	app, traceRepo, spanRepo, logRepo, rawKey := setupTracesApp(t)

	traceID := "0af7651916cd43dd8448eb211c80319c"
	traceRepo.On("GetByID", mock.Anything, traceID).
		Return(&domain.Trace{TraceID: traceID, Status: domain.TraceStatusSuccess}, nil)
	spanRepo.On("GetByTraceID", mock.Anything, traceID).
		Return([]domain.Span{
			{SpanID: "a000000000000001", Name: "agent_execution", SpanType: domain.SpanTypeAgent},
			{SpanID: "a000000000000002", ParentSpanID: "a000000000000001", Name: "get_client_rfq_history", SpanType: domain.SpanTypeTool, Status: domain.SpanStatusError},
		}, nil)
	logRepo.On("GetByTraceID", mock.Anything, traceID, (*domain.LogFilter)(nil), mock.AnythingOfType("int")).
		Return([]domain.LogEntry{}, nil)

	resp, result := getJSON(t, app, "/v1/traces/"+traceID+"/details", rawKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	summary := result["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["span_count"])
	assert.Equal(t, true, summary["has_errors"])
}

func TestGetTraceSpans(t *testing.T) {
	app, _, spanRepo, _, rawKey := setupTracesApp(t)

	var captured *domain.SpanFilter
	spanRepo.On("List", mock.Anything, mock.AnythingOfType("*domain.SpanFilter"), mock.AnythingOfType("int")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.SpanFilter)
		}).
		Return([]domain.Span{{SpanID: "b7ad6b7169203331", SpanType: domain.SpanTypeTool}}, nil)

	resp, result := getJSON(t, app, "/v1/traces/abc/spans?spanType=tool", rawKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, result["spans"].([]any), 1)

	require.NotNil(t, captured)
	assert.Equal(t, "abc", captured.TraceID)
	require.NotNil(t, captured.SpanType)
	assert.Equal(t, domain.SpanTypeTool, *captured.SpanType)
}

func TestGetTraceLogs(t *testing.T) {
	app, _, _, logRepo, rawKey := setupTracesApp(t)

	var captured *domain.LogFilter
	logRepo.On("GetByTraceID", mock.Anything, "abc", mock.AnythingOfType("*domain.LogFilter"), mock.AnythingOfType("int")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(*domain.LogFilter)
		}).
		Return([]domain.LogEntry{{Message: "tool failed"}}, nil)

	resp, result := getJSON(t, app, "/v1/traces/abc/logs?minSeverity=30", rawKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, result["logs"].([]any), 1)

	require.NotNil(t, captured)
	require.NotNil(t, captured.MinSeverity)
	assert.Equal(t, 30, *captured.MinSeverity)
}

func TestSearchTraces(t *testing.T) {
	t.Run("requires a query", func(t *testing.T) {
		app, _, _, _, rawKey := setupTracesApp(t)

		resp, _ := getJSON(t, app, "/v1/traces/search", rawKey)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("searches within the window", func(t *testing.T) {
		app, traceRepo, _, _, rawKey := setupTracesApp(t)

		var captured *domain.TraceFilter
		traceRepo.On("List", mock.Anything, mock.AnythingOfType("*domain.TraceFilter"), mock.AnythingOfType("int"), 0, (*pagination.Cursor)(nil)).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(*domain.TraceFilter)
			}).
			Return(&domain.TraceList{}, nil)

		resp, _ := getJSON(t, app, "/v1/traces/search?q=barrier&hours=6", rawKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		require.NotNil(t, captured)
		require.NotNil(t, captured.Search)
		assert.Equal(t, "barrier", *captured.Search)
		require.NotNil(t, captured.FromTime)
		assert.WithinDuration(t, time.Now().Add(-6*time.Hour), *captured.FromTime, time.Minute)
	})
}
