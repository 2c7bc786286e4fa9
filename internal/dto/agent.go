package dto

// AgentRunRequest represents a traced agent run payload
type AgentRunRequest struct {
	Agent  string `json:"agent,omitempty"`
	Input  string `json:"input" validate:"required,min=1"`
	UserID string `json:"user_id,omitempty"`
}
