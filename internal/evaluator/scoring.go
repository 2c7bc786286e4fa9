package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/circuitbreaker"
)

// Scorer judges an agent answer against a criterion, returning a score in
// [0,1] and a human-readable reason.
type Scorer interface {
	Score(ctx context.Context, crit Criterion, question, answer string) (float64, string, error)
}

// MockModel short-circuits scoring for offline runs
const MockModel = "mock"

// NewScorer builds the scorer for a judge model name. "mock" needs no
// credentials or network; anything else goes to the LLM judge.
func NewScorer(model string, cfg config.EvalConfig) Scorer {
	if model == "" {
		model = cfg.DefaultModel
	}
	if model == "" || model == MockModel {
		return &MockScorer{}
	}
	return NewLLMScorer(model, cfg)
}

// MockScorer always passes. Used in tests and offline eval runs.
type MockScorer struct{}

// Score implements Scorer with a fixed passing verdict
func (s *MockScorer) Score(_ context.Context, _ Criterion, _, _ string) (float64, string, error) {
	return 1.0, "Mock evaluation passed", nil
}

// LLMScorer asks a judge model to grade the answer. The judge call runs
// behind a circuit breaker so a flapping provider fails eval cases fast
// instead of hanging every batch.
type LLMScorer struct {
	client  *openai.Client
	model   string
	breaker *circuitbreaker.CircuitBreaker
}

// NewLLMScorer creates an LLM judge scorer
func NewLLMScorer(model string, cfg config.EvalConfig) *LLMScorer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &LLMScorer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		breaker: circuitbreaker.GetCircuitBreaker("llm_judge"),
	}
}

type judgeVerdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

const judgeSystemPrompt = `You grade an AI agent's answer to a user question.
Respond with a single JSON object: {"score": <0.0-1.0>, "reason": "<one sentence>"}.`

// Score implements Scorer via a chat completion
func (s *LLMScorer) Score(ctx context.Context, crit Criterion, question, answer string) (float64, string, error) {
	var sb strings.Builder
	if crit.Instruction != "" {
		sb.WriteString("Grading instruction: ")
		sb.WriteString(crit.Instruction)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Question:\n%s\n\nAgent answer:\n%s\n", question, answer)

	resp, err := circuitbreaker.ExecuteWithResult(s.breaker, ctx, func() (openai.ChatCompletionResponse, error) {
		return s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: sb.String()},
			},
			Temperature: 0,
		})
	})
	if err != nil {
		return 0, "", fmt.Errorf("judge call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, "", fmt.Errorf("judge returned no choices")
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, "", err
	}
	return verdict.Score, verdict.Reason, nil
}

// parseVerdict extracts the {"score","reason"} object from judge output,
// tolerating surrounding prose.
func parseVerdict(content string) (*judgeVerdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("judge response contains no JSON object: %q", content)
	}

	var verdict judgeVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse judge verdict: %w", err)
	}
	if verdict.Score < 0 {
		verdict.Score = 0
	}
	if verdict.Score > 1 {
		verdict.Score = 1
	}
	return &verdict, nil
}

// ScoreToolUsage grades recorded tool calls against the criterion's expected
// tool list. Ordered criteria require the expected list to appear as a
// subsequence of the actual call sequence and score the matched prefix;
// unordered criteria score the fraction of expected tools that were called
// at all.
func ScoreToolUsage(crit Criterion, calls []domain.ToolCallRecord) (float64, string) {
	if len(crit.ExpectedTools) == 0 {
		return 1.0, "no expected tools configured"
	}

	actual := make([]string, len(calls))
	for i, call := range calls {
		actual[i] = call.ToolName
	}

	if crit.OrderedTools {
		matched := 0
		for _, name := range actual {
			if matched < len(crit.ExpectedTools) && name == crit.ExpectedTools[matched] {
				matched++
			}
		}
		score := float64(matched) / float64(len(crit.ExpectedTools))
		return score, fmt.Sprintf("matched %d of %d expected tools in order", matched, len(crit.ExpectedTools))
	}

	seen := make(map[string]bool, len(actual))
	for _, name := range actual {
		seen[name] = true
	}
	present := 0
	for _, name := range crit.ExpectedTools {
		if seen[name] {
			present++
		}
	}
	score := float64(present) / float64(len(crit.ExpectedTools))
	return score, fmt.Sprintf("%d of %d expected tools were called", present, len(crit.ExpectedTools))
}
