// Package evaluator runs file-driven evaluation sets against an agent and
// scores the answers. Sets and their criteria configs are plain JSON
// documents scanned from a folder, so eval suites live next to the agent
// code they exercise.
package evaluator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agentgauge/agentgauge/internal/validator"
)

// EvalSet is a collection of conversational eval cases
type EvalSet struct {
	EvalCases []EvalCase `json:"eval_cases" validate:"required,min=1,dive"`
}

// EvalCase is one scripted conversation to evaluate
type EvalCase struct {
	EvalID       string             `json:"eval_id" validate:"required"`
	Conversation []ConversationTurn `json:"conversation" validate:"required,min=1"`
}

// ConversationTurn is one message of a scripted conversation. Only turns
// with user content participate in prompt extraction.
type ConversationTurn struct {
	UserContent *Content `json:"user_content,omitempty"`
}

// Content is a multi-part message body
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is one fragment of message content
type Part struct {
	Text string `json:"text"`
}

// LastUserMessage returns the text of the case's last user-authored turn.
// The conversation is scanned in reverse; the first part of the first
// matching turn wins.
func (c *EvalCase) LastUserMessage() (string, bool) {
	for i := len(c.Conversation) - 1; i >= 0; i-- {
		turn := c.Conversation[i]
		if turn.UserContent == nil || len(turn.UserContent.Parts) == 0 {
			continue
		}
		return turn.UserContent.Parts[0].Text, true
	}
	return "", false
}

// Criterion is the scoring rule for one eval case (or the "default" entry)
type Criterion struct {
	Metric        string   `json:"metric" validate:"required"`
	Instruction   string   `json:"instruction,omitempty"`
	ExpectedTools []string `json:"expected_tools,omitempty"`
	OrderedTools  bool     `json:"ordered_tools"`
	Threshold     float64  `json:"threshold" validate:"gte=0,lte=1"`
}

// SetConfig pairs an eval set with its scoring criteria. Criteria are keyed
// by eval_id, with "default" as the fallback entry.
type SetConfig struct {
	EvalSetID    string               `json:"eval_set_id"`
	DefaultAgent string               `json:"default_agent,omitempty"`
	Criteria     map[string]Criterion `json:"criteria" validate:"required,dive"`
}

// DefaultThreshold applies when neither the case nor "default" has criteria
const DefaultThreshold = 0.7

// CriterionFor resolves the criterion for an eval case: exact eval_id match,
// then "default", then the built-in threshold with no metric.
func (c *SetConfig) CriterionFor(evalID string) Criterion {
	if crit, ok := c.Criteria[evalID]; ok {
		return crit
	}
	if crit, ok := c.Criteria["default"]; ok {
		return crit
	}
	return Criterion{Threshold: DefaultThreshold}
}

// LoadEvalSet reads and validates an eval set document
func LoadEvalSet(path string) (*EvalSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read eval set %s: %w", path, err)
	}

	var set EvalSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse eval set %s: %w", path, err)
	}
	if err := validator.Validate(&set); err != nil {
		return nil, fmt.Errorf("invalid eval set %s: %w", path, err)
	}

	return &set, nil
}

// LoadSetConfig reads and validates a test config document
func LoadSetConfig(path string) (*SetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test config %s: %w", path, err)
	}

	var cfg SetConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse test config %s: %w", path, err)
	}
	if err := validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid test config %s: %w", path, err)
	}

	return &cfg, nil
}
