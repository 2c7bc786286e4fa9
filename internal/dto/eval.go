package dto

// CaptureRequest represents the eval capture payload. The agent runs live
// against the prompt and the interaction is stored as a draft test case.
type CaptureRequest struct {
	Prompt       string         `json:"prompt" validate:"required,min=1"`
	Context      map[string]any `json:"context,omitempty"`
	AgentVersion string         `json:"agent_version,omitempty"`
	UserEmail    string         `json:"user_email,omitempty" validate:"omitempty,email"`
	Tags         []string       `json:"tags,omitempty"`
}

// CaptureResponse echoes the stored draft case identity
type CaptureResponse struct {
	TestID      string `json:"test_id"`
	AgentOutput string `json:"agent_output"`
}

// RunEvalRequest represents a synchronous or asynchronous batch run payload
type RunEvalRequest struct {
	AgentVersion string   `json:"agent_version" validate:"required"`
	TestIDs      []string `json:"test_ids,omitempty"`
}

// ReviewTestCaseRequest represents a reviewer decision on a draft case
type ReviewTestCaseRequest struct {
	Status         string  `json:"status" validate:"required,oneof=draft approved rejected"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
}

// ExportReportRequest selects the encoding for a report export
type ExportReportRequest struct {
	Format string `json:"format,omitempty" validate:"omitempty,oneof=json csv"`
}

// MCPEvalRequest represents an ad-hoc capture-and-compare evaluation
type MCPEvalRequest struct {
	Prompt   string         `json:"prompt" validate:"required,min=1"`
	Expected string         `json:"expected" validate:"required"`
	Context  map[string]any `json:"context,omitempty"`
}
