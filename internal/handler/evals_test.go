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

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/service"
)

func setupEvalsApp(t *testing.T) (*fiber.App, *MockTestCaseRepository, *MockReportRepository, string) {
	t.Helper()

	testCases := new(MockTestCaseRepository)
	reports := new(MockReportRepository)

	svc := service.NewEvalService(zap.NewNop(), config.EvalConfig{}, testCases, reports, nil, nil)
	mw, _, rawKey := newTestAuth(t, []string{"evals:write", "evals:read"})

	app := fiber.New()
	NewEvalsHandler(svc, zap.NewNop()).RegisterRoutes(app, mw)

	return app, testCases, reports, rawKey
}

func TestCaptureTestCase(t *testing.T) {
	t.Run("stores draft case with recorded tool calls", func(t *testing.T) {
		app, testCases, _, rawKey := setupEvalsApp(t)

		var stored *domain.EvalTestCase
		testCases.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.EvalTestCase")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*domain.EvalTestCase)
			}).Return(nil)

		resp := postJSON(t, app, "/v1/eval/capture", rawKey, map[string]any{
			"prompt":        "Why did client ACME stop trading with us?",
			"context":       map[string]any{"client_id": "ACME"},
			"agent_version": "v2.1",
			"tags":          []string{"rfq"},
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result map[string]any
		respBody, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(respBody, &result))
		assert.NotEmpty(t, result["test_id"])
		assert.NotEmpty(t, result["agent_output"])

		require.NotNil(t, stored)
		assert.Equal(t, domain.TestCaseStatusDraft, stored.Status)
		assert.Equal(t, stored.AgentOutput, stored.ExpectedOutput)
		assert.NotEmpty(t, stored.ToolCallTrace)
		assert.Equal(t, "v2.1", stored.AgentVersion)
	})

	t.Run("returns 400 without a prompt", func(t *testing.T) {
		app, _, _, rawKey := setupEvalsApp(t)

		resp := postJSON(t, app, "/v1/eval/capture", rawKey, map[string]any{
			"context": map[string]any{"client_id": "ACME"},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRunEvalBatch(t *testing.T) {
	t.Run("replays approved cases and summarizes", func(t *testing.T) {
		app, testCases, _, rawKey := setupEvalsApp(t)

		// An approved case captured from the simulated desk agent. Replaying
		// against the same deterministic agent reproduces the output exactly.
		approved := capturedCase(t)
		testCases.On("LoadApproved", mock.Anything, []string(nil)).
			Return([]domain.EvalTestCase{approved}, nil)

		resp := postJSON(t, app, "/v1/eval/run", rawKey, map[string]any{
			"agent_version": "v2.2",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Results []domain.EvalResult `json:"results"`
			Summary domain.EvalSummary  `json:"summary"`
		}
		respBody, _ := io.ReadAll(resp.Body)
		require.NoError(t, json.Unmarshal(respBody, &result))

		require.Len(t, result.Results, 1)
		assert.True(t, result.Results[0].Passed)
		assert.Equal(t, 1, result.Summary.Passed)
	})

	t.Run("returns 400 without an agent version", func(t *testing.T) {
		app, _, _, rawKey := setupEvalsApp(t)

		resp := postJSON(t, app, "/v1/eval/run", rawKey, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

// capturedCase runs a real capture against the deterministic dispatcher so
// the stored tool-call trace matches what a replay will ask for.
func capturedCase(t *testing.T) domain.EvalTestCase {
	t.Helper()

	testCases := new(MockTestCaseRepository)
	var stored *domain.EvalTestCase
	testCases.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.EvalTestCase")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.EvalTestCase)
		}).Return(nil)

	svc := service.NewEvalService(zap.NewNop(), config.EvalConfig{}, testCases, new(MockReportRepository), nil, nil)
	_, err := svc.Capture(t.Context(), "Suggest a better barrier for the NVDA autocall", map[string]any{"underlying": "NVDA"}, "v2.1", "", nil)
	require.NoError(t, err)
	require.NotNil(t, stored)

	tc := *stored
	tc.Status = domain.TestCaseStatusApproved
	return tc
}

func TestRunEvalAsync(t *testing.T) {
	app, _, reports, rawKey := setupEvalsApp(t)

	// No enqueuer is configured, so starting an async run must fail before
	// a report leaks into storage.
	resp := postJSON(t, app, "/v1/eval/run/async", rawKey, map[string]any{
		"agent_version": "v2.2",
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	reports.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetEvalReport(t *testing.T) {
	t.Run("returns stored report", func(t *testing.T) {
		app, _, reports, rawKey := setupEvalsApp(t)

		reports.On("GetByID", mock.Anything, "rep-1").
			Return(&domain.EvalReport{
				ID:           "rep-1",
				AgentVersion: "v2.2",
				Status:       domain.JobStatusCompleted,
				CreatedAt:    time.Now().UTC(),
			}, nil)

		resp, result := getJSON(t, app, "/v1/eval/reports/rep-1", rawKey)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "rep-1", result["id"])
	})

	t.Run("returns 404 for unknown report", func(t *testing.T) {
		app, _, reports, rawKey := setupEvalsApp(t)

		reports.On("GetByID", mock.Anything, "missing").
			Return(nil, apperrors.NotFound("report"))

		resp, _ := getJSON(t, app, "/v1/eval/reports/missing", rawKey)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListTestCases(t *testing.T) {
	app, testCases, _, rawKey := setupEvalsApp(t)

	var captured *domain.TestCaseFilter
	testCases.On("List", mock.Anything, mock.AnythingOfType("*domain.TestCaseFilter"), 50, 0).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.TestCaseFilter)
		}).
		Return([]domain.EvalTestCase{{TestID: "tc-1", Status: domain.TestCaseStatusDraft}}, nil)

	resp, result := getJSON(t, app, "/v1/eval/cases?status=draft", rawKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, result["test_cases"].([]any), 1)

	require.NotNil(t, captured)
	require.NotNil(t, captured.Status)
	assert.Equal(t, domain.TestCaseStatusDraft, *captured.Status)
}

func TestReviewTestCase(t *testing.T) {
	t.Run("approves with corrected output", func(t *testing.T) {
		app, testCases, _, rawKey := setupEvalsApp(t)

		testCases.On("UpdateExpectedOutput", mock.Anything, "tc-1", "the corrected answer").Return(nil)
		testCases.On("UpdateStatus", mock.Anything, "tc-1", domain.TestCaseStatusApproved).Return(nil)

		req := httptest.NewRequest(http.MethodPatch, "/v1/eval/cases/tc-1/review",
			jsonBody(t, map[string]any{"status": "approved", "expected_output": "the corrected answer"}))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", rawKey)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		testCases.AssertExpectations(t)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		app, _, _, rawKey := setupEvalsApp(t)

		req := httptest.NewRequest(http.MethodPatch, "/v1/eval/cases/tc-1/review",
			jsonBody(t, map[string]any{"status": "maybe"}))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", rawKey)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeleteTestCase(t *testing.T) {
	app, testCases, _, rawKey := setupEvalsApp(t)

	testCases.On("Delete", mock.Anything, "tc-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/v1/eval/cases/tc-1", nil)
	req.Header.Set("X-API-Key", rawKey)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRunMCPEval(t *testing.T) {
	app, _, _, rawKey := setupEvalsApp(t)

	resp := postJSON(t, app, "/v1/eval/mcp", rawKey, map[string]any{
		"prompt":   "Suggest a better barrier for the NVDA autocall",
		"expected": "Consider lowering barrier to 75% for NVDA. Adds ~1.2M vega. Historical win rate improves by 22%.",
		"context":  map[string]any{"underlying": "NVDA"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.EvalResult
	respBody, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(respBody, &result))
	assert.True(t, result.Passed)
}
