//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite runs end-to-end API tests against a running AgentGauge instance
type E2ETestSuite struct {
	suite.Suite
	baseURL string
	apiKey  string
	client  *http.Client
}

func TestE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}

func (s *E2ETestSuite) SetupSuite() {
	s.baseURL = os.Getenv("AGENTGAUGE_API_URL")
	if s.baseURL == "" {
		s.baseURL = "http://localhost:8080"
	}

	s.apiKey = os.Getenv("AGENTGAUGE_API_KEY")
	if s.apiKey == "" {
		s.T().Fatal("AGENTGAUGE_API_KEY environment variable is required")
	}

	s.client = &http.Client{
		Timeout: 30 * time.Second,
	}

	// Wait for API to be ready
	s.waitForAPI()
}

func (s *E2ETestSuite) waitForAPI() {
	maxAttempts := 30
	for i := 0; i < maxAttempts; i++ {
		resp, err := s.client.Get(s.baseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(1 * time.Second)
	}
	s.T().Fatal("API failed to become ready within timeout")
}

// ============ HELPER METHODS ============

func (s *E2ETestSuite) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-API-Key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return s.client.Do(req)
}

func (s *E2ETestSuite) parseResponse(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)

	if v != nil {
		err = json.Unmarshal(body, v)
		require.NoError(s.T(), err, "Failed to parse response: %s", string(body))
	}
}

// ============ HEALTH CHECK TESTS ============

func (s *E2ETestSuite) TestHealthEndpoint() {
	resp, err := s.client.Get(s.baseURL + "/health")
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.parseResponse(resp, &result)
	assert.Contains(s.T(), []interface{}{"healthy", "degraded"}, result["status"])
}

// ============ TRACE TESTS ============

func (s *E2ETestSuite) TestTraceLifecycle() {
	userID := fmt.Sprintf("e2e-user-%d", time.Now().UnixNano())
	start := time.Now().UTC().Add(-2 * time.Second)
	end := start.Add(1200 * time.Millisecond)

	batch := map[string]interface{}{
		"trace": map[string]interface{}{
			"serviceName": "e2e-desk-agent",
			"userId":      userID,
			"status":      "success",
			"startTime":   start.Format(time.RFC3339Nano),
			"endTime":     end.Format(time.RFC3339Nano),
			"metadata":    map[string]string{"environment": "e2e"},
		},
		"spans": []map[string]interface{}{
			{
				"name":     "agent_execution",
				"spanType": "agent",
				"status":   "success",
			},
			{
				"name":     "get_client_rfq_history",
				"spanType": "tool",
				"status":   "success",
			},
		},
		"logs": []map[string]interface{}{
			{
				"level":   "INFO",
				"message": "agent run completed",
			},
		},
	}

	resp, err := s.doRequest("POST", "/v1/traces", batch)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	var createResult map[string]interface{}
	s.parseResponse(resp, &createResult)
	traceID := createResult["traceId"].(string)
	assert.NotEmpty(s.T(), traceID)
	assert.Equal(s.T(), float64(2), createResult["spanCount"])

	// Get the trace with spans and logs attached
	resp, err = s.doRequest("GET", "/v1/traces/"+traceID, nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var getResult map[string]interface{}
	s.parseResponse(resp, &getResult)
	assert.Equal(s.T(), traceID, getResult["traceId"])
	assert.Equal(s.T(), "e2e-desk-agent", getResult["serviceName"])
	assert.Len(s.T(), getResult["spans"], 2)

	// Details includes the span tree and summary
	resp, err = s.doRequest("GET", "/v1/traces/"+traceID+"/details", nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var details map[string]interface{}
	s.parseResponse(resp, &details)
	summary := details["summary"].(map[string]interface{})
	assert.Equal(s.T(), float64(2), summary["span_count"])

	// List traces filtered by user
	resp, err = s.doRequest("GET", "/v1/traces?userId="+userID, nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var listResult map[string]interface{}
	s.parseResponse(resp, &listResult)
	traces := listResult["traces"].([]interface{})
	assert.GreaterOrEqual(s.T(), len(traces), 1)
}

// ============ EVAL TESTS ============

func (s *E2ETestSuite) TestEvalCaptureAndRun() {
	// Capture a draft test case from a live agent run
	captureInput := map[string]interface{}{
		"prompt":        "Suggest a better barrier for the NVDA autocall",
		"context":       map[string]string{"underlying": "NVDA", "client_id": "ACME"},
		"agent_version": "e2e-v1",
	}

	resp, err := s.doRequest("POST", "/v1/eval/capture", captureInput)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	var captureResult map[string]interface{}
	s.parseResponse(resp, &captureResult)
	testID := captureResult["test_id"].(string)
	assert.NotEmpty(s.T(), testID)
	assert.NotEmpty(s.T(), captureResult["agent_output"])

	// Approve the captured case
	reviewInput := map[string]interface{}{"status": "approved"}
	resp, err = s.doRequest("PATCH", "/v1/eval/cases/"+testID+"/review", reviewInput)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Replay it: the deterministic agent must reproduce its own output
	runInput := map[string]interface{}{
		"agent_version": "e2e-v1",
		"test_ids":      []string{testID},
	}

	resp, err = s.doRequest("POST", "/v1/eval/run", runInput)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var runResult map[string]interface{}
	s.parseResponse(resp, &runResult)
	results := runResult["results"].([]interface{})
	require.Len(s.T(), results, 1)
	first := results[0].(map[string]interface{})
	assert.True(s.T(), first["passed"].(bool))
	assert.Equal(s.T(), float64(1), first["similarity"])
}

// ============ AGENT RUN TESTS ============

func (s *E2ETestSuite) TestAgentRun() {
	runInput := map[string]interface{}{
		"agent":   "root_agent",
		"input":   "Suggest a better barrier for the TSLA autocall",
		"user_id": "e2e-trader",
	}

	resp, err := s.doRequest("POST", "/v1/agent/run", runInput)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.parseResponse(resp, &result)
	assert.NotEmpty(s.T(), result["trace_id"])
	assert.Equal(s.T(), "success", result["status"])
	assert.NotEmpty(s.T(), result["output"])
}

// ============ ANALYTICS TESTS ============

func (s *E2ETestSuite) TestAnalyticsHealth() {
	resp, err := s.doRequest("GET", "/v1/analytics/health?hours=24", nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.parseResponse(resp, &result)
	assert.Equal(s.T(), float64(24), result["period_hours"])
	assert.Contains(s.T(), []interface{}{"healthy", "degraded"}, result["status"])
}

// ============ AUTH TESTS ============

func (s *E2ETestSuite) TestTokenExchange() {
	resp, err := s.doRequest("POST", "/v1/auth/token", map[string]interface{}{
		"apiKey": s.apiKey,
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	s.parseResponse(resp, &result)
	token := result["token"].(string)
	assert.NotEmpty(s.T(), token)

	// The session token must authenticate API calls
	req, err := http.NewRequest("GET", s.baseURL+"/v1/traces", nil)
	require.NoError(s.T(), err)
	req.Header.Set("Authorization", "Bearer "+token)

	tokenResp, err := s.client.Do(req)
	require.NoError(s.T(), err)
	defer tokenResp.Body.Close()
	assert.Equal(s.T(), http.StatusOK, tokenResp.StatusCode)
}

// ============ ERROR HANDLING TESTS ============

func (s *E2ETestSuite) TestUnauthorizedAccess() {
	req, err := http.NewRequest("GET", s.baseURL+"/v1/traces", nil)
	require.NoError(s.T(), err)
	// No auth header

	resp, err := s.client.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (s *E2ETestSuite) TestInvalidAPIKey() {
	req, err := http.NewRequest("GET", s.baseURL+"/v1/traces", nil)
	require.NoError(s.T(), err)
	req.Header.Set("X-API-Key", "ag_invalidinvalidinvalidinvalidinval")

	resp, err := s.client.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusUnauthorized, resp.StatusCode)
}

func (s *E2ETestSuite) TestNotFound() {
	resp, err := s.doRequest("GET", "/v1/traces/ffffffffffffffffffffffffffffffff", nil)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *E2ETestSuite) TestInvalidInput() {
	// A batch without a trace is rejected
	resp, err := s.doRequest("POST", "/v1/traces", map[string]interface{}{
		"spans": []map[string]interface{}{{"name": "orphan"}},
	})
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
}
