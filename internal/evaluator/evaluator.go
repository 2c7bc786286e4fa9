package evaluator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/pkg/logger"
)

// Agent is anything that can answer a user prompt
type Agent interface {
	Query(ctx context.Context, text string) (string, error)
}

// ToolRecorder is implemented by agents whose tool calls are recorded.
// Tool-usage criteria need it; agents without it fall back to the scorer.
type ToolRecorder interface {
	RecordedCalls() []domain.ToolCallRecord
}

// AgentFactory builds a fresh agent per eval case so concurrent cases never
// share executor state.
type AgentFactory func() Agent

// Status is the verdict for one eval case
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// CaseResult is the outcome of one eval case
type CaseResult struct {
	EvalID    string  `json:"eval_id"`
	Status    Status  `json:"status"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Reason    string  `json:"reason"`
	Answer    string  `json:"answer,omitempty"`
}

// Summary aggregates a report's results
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// Report is the outcome of running one eval set
type Report struct {
	EvalSetID string       `json:"eval_set_id"`
	Timestamp time.Time    `json:"timestamp"`
	Results   []CaseResult `json:"results"`
	Summary   Summary      `json:"summary"`
}

// metric name that grades recorded tool calls instead of the answer text
const metricToolUsage = "tool_usage"

// Evaluator runs eval sets with a fixed scorer and concurrency bound
type Evaluator struct {
	scorer      Scorer
	concurrency int
}

// New creates an evaluator. Concurrency below 1 runs cases sequentially.
func New(scorer Scorer, concurrency int) *Evaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Evaluator{scorer: scorer, concurrency: concurrency}
}

// RunEvalSet loads the set and config at the given paths and evaluates every
// case. A failing case never aborts the batch: errors are folded into the
// case's result and the run continues. Results keep the set's case order.
func (e *Evaluator) RunEvalSet(ctx context.Context, setPath, configPath string, newAgent AgentFactory) (*Report, error) {
	set, err := LoadEvalSet(setPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadSetConfig(configPath)
	if err != nil {
		return nil, err
	}

	results := make([]CaseResult, len(set.EvalCases))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i := range set.EvalCases {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = e.runCase(ctx, &set.EvalCases[idx], cfg, newAgent)
		}(i)
	}
	wg.Wait()

	report := &Report{
		EvalSetID: cfg.EvalSetID,
		Timestamp: time.Now().UTC(),
		Results:   results,
	}
	for _, r := range results {
		report.Summary.Total++
		switch r.Status {
		case StatusPass:
			report.Summary.Passed++
		case StatusError:
			report.Summary.Errors++
		default:
			report.Summary.Failed++
		}
	}

	logger.Info("eval set finished",
		zap.String("eval_set", cfg.EvalSetID),
		zap.Int("total", report.Summary.Total),
		zap.Int("passed", report.Summary.Passed),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("errors", report.Summary.Errors),
	)

	return report, nil
}

// runCase evaluates a single case in isolation: a panic or error becomes an
// ERROR result, never a crashed batch.
func (e *Evaluator) runCase(ctx context.Context, c *EvalCase, cfg *SetConfig, newAgent AgentFactory) (result CaseResult) {
	crit := cfg.CriterionFor(c.EvalID)
	result = CaseResult{EvalID: c.EvalID, Threshold: crit.Threshold}

	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusError
			result.Score = 0
			result.Reason = fmt.Sprintf("Evaluation execution failed: panic: %v", r)
		}
	}()

	prompt, ok := c.LastUserMessage()
	if !ok {
		result.Status = StatusError
		result.Reason = "Evaluation execution failed: conversation has no user message"
		return result
	}

	agent := newAgent()
	answer, err := agent.Query(ctx, prompt)
	if err != nil {
		result.Status = StatusError
		result.Reason = fmt.Sprintf("Evaluation execution failed: %v", err)
		return result
	}
	result.Answer = answer

	score, reason, err := e.scoreCase(ctx, crit, agent, prompt, answer)
	if err != nil {
		result.Status = StatusError
		result.Score = 0
		result.Reason = fmt.Sprintf("Evaluation execution failed: %v", err)
		return result
	}

	result.Score = score
	result.Reason = reason
	if score >= crit.Threshold {
		result.Status = StatusPass
	} else {
		result.Status = StatusFail
	}
	return result
}

// scoreCase picks the grading path: tool-usage criteria grade the agent's
// recorded calls when any exist, everything else goes to the scorer.
func (e *Evaluator) scoreCase(ctx context.Context, crit Criterion, agent Agent, prompt, answer string) (float64, string, error) {
	if crit.Metric == metricToolUsage {
		if recorder, ok := agent.(ToolRecorder); ok {
			if calls := recorder.RecordedCalls(); len(calls) > 0 {
				score, reason := ScoreToolUsage(crit, calls)
				return score, reason, nil
			}
		}
		// No recorded calls to grade; judge the answer instead.
	}
	return e.scorer.Score(ctx, crit, prompt, answer)
}
