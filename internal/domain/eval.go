package domain

import "time"

// ToolCallRecord captures one tool invocation made during a capture-mode
// agent run. Args and Result hold the redacted and scrubbed forms; the
// ToolID is always computed from the raw arguments so that replay lookups
// are unaffected by redaction.
type ToolCallRecord struct {
	ToolID    string         `json:"tool_id"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	Result    any            `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

// EvalTestCase is a captured agent interaction promoted into a regression
// test. A case starts as a draft with ExpectedOutput equal to the captured
// AgentOutput; reviewers edit and approve it before it participates in runs.
type EvalTestCase struct {
	TestID         string           `json:"test_id" db:"test_id"`
	InputPrompt    string           `json:"input_prompt" db:"input_prompt"`
	InputContext   map[string]any   `json:"input_context"`
	AgentOutput    string           `json:"agent_output" db:"agent_output"`
	ExpectedOutput string           `json:"expected_output" db:"expected_output"`
	Status         TestCaseStatus   `json:"status" db:"status"`
	AgentVersion   string           `json:"agent_version" db:"agent_version"`
	CreatedBy      string           `json:"created_by" db:"created_by"`
	Tags           []string         `json:"tags"`
	ToolCallTrace  []ToolCallRecord `json:"tool_call_trace"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// TestCaseFilter represents filter options for querying test cases
type TestCaseFilter struct {
	TestIDs      []string
	Status       *TestCaseStatus
	AgentVersion *string
	Tag          *string
}

// EvalResult is the outcome of replaying one approved test case against a
// candidate agent version.
type EvalResult struct {
	TestID         string  `json:"test_id"`
	Passed         bool    `json:"passed"`
	Similarity     float64 `json:"similarity"`
	ActualOutput   string  `json:"actual_output"`
	ExpectedOutput string  `json:"expected_output"`
}

// EvalSummary aggregates a batch of eval results
type EvalSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summarize computes the summary for a batch of results
func Summarize(results []EvalResult) EvalSummary {
	s := EvalSummary{Total: len(results)}
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// EvalReport is the persisted outcome of an asynchronous evaluation batch
type EvalReport struct {
	ID           string       `json:"id" db:"id"`
	AgentVersion string       `json:"agent_version" db:"agent_version"`
	Status       JobStatus    `json:"status" db:"status"`
	Results      []EvalResult `json:"results"`
	Summary      EvalSummary  `json:"summary"`
	Error        string       `json:"error,omitempty" db:"error"`
	ObjectKey    string       `json:"object_key,omitempty" db:"object_key"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}
