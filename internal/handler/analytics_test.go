package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/service"
)

func setupAnalyticsApp(t *testing.T) (*fiber.App, *MockAnalyticsRepository, string) {
	t.Helper()

	repo := new(MockAnalyticsRepository)
	svc := service.NewAnalyticsService(zap.NewNop(), repo, nil)
	mw, _, rawKey := newTestAuth(t, []string{"analytics:read"})

	app := fiber.New()
	NewAnalyticsHandler(svc, zap.NewNop()).RegisterRoutes(app, mw)

	return app, repo, rawKey
}

func TestAnalyticsHealth(t *testing.T) {
	t.Run("reports degraded above the error threshold", func(t *testing.T) {
		app, repo, rawKey := setupAnalyticsApp(t)

		repo.On("RequestCounts", mock.Anything, 24*time.Hour).
			Return(uint64(100), uint64(10), nil)
		repo.On("LatencyPercentiles", mock.Anything, 24*time.Hour).
			Return(&domain.LatencyStats{P95Ms: 420, AvgMs: 120}, nil)
		repo.On("RequestVolume", mock.Anything, time.Hour, 15*time.Minute).
			Return([]domain.VolumeBucket{}, nil)

		resp, result := getJSON(t, app, "/v1/analytics/health", rawKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(domain.HealthStateDegraded), result["status"])
		assert.Equal(t, float64(10), result["error_rate"])
		assert.Equal(t, float64(24), result["period_hours"])
	})

	t.Run("reports healthy at exactly five percent errors", func(t *testing.T) {
		app, repo, rawKey := setupAnalyticsApp(t)

		repo.On("RequestCounts", mock.Anything, mock.Anything).
			Return(uint64(100), uint64(5), nil)
		repo.On("LatencyPercentiles", mock.Anything, mock.Anything).
			Return(&domain.LatencyStats{}, nil)
		repo.On("RequestVolume", mock.Anything, mock.Anything, mock.Anything).
			Return([]domain.VolumeBucket{}, nil)

		resp, result := getJSON(t, app, "/v1/analytics/health", rawKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(domain.HealthStateHealthy), result["status"])
	})
}

func TestAnalyticsSlowTraces(t *testing.T) {
	app, repo, rawKey := setupAnalyticsApp(t)

	repo.On("SlowTraces", mock.Anything, float64(2500), 6*time.Hour, 20).
		Return([]domain.SlowTrace{{TraceID: "0af7651916cd43dd8448eb211c80319c", DurationMs: 3200}}, nil)

	resp, result := getJSON(t, app, "/v1/analytics/slow?thresholdMs=2500&hours=6", rawKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, result["slow_traces"].([]any), 1)

	repo.AssertExpectations(t)
}

func TestAnalyticsSpanPerformance(t *testing.T) {
	app, repo, rawKey := setupAnalyticsApp(t)

	var captured *domain.SpanType
	repo.On("SpanPerformance", mock.Anything, mock.Anything, 24*time.Hour).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.SpanType)
		}).
		Return([]domain.SpanPerfRow{{Name: "get_client_rfq_history"}}, nil)

	resp, result := getJSON(t, app, "/v1/analytics/spans?spanType=tool", rawKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, result["spans"].([]any), 1)

	require.NotNil(t, captured)
	assert.Equal(t, domain.SpanTypeTool, *captured)
}

func TestAnalyticsScopeEnforced(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := service.NewAnalyticsService(zap.NewNop(), repo, nil)
	mw, _, rawKey := newTestAuth(t, []string{"traces:read"})

	app := fiber.New()
	NewAnalyticsHandler(svc, zap.NewNop()).RegisterRoutes(app, mw)

	resp, _ := getJSON(t, app, "/v1/analytics/latency", rawKey)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
