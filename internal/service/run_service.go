package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/tracer"
)

// AgentRunResult is the outcome of one traced agent run
type AgentRunResult struct {
	TraceID string             `json:"trace_id"`
	Output  string             `json:"output,omitempty"`
	Status  domain.TraceStatus `json:"status"`
	Error   string             `json:"error,omitempty"`
}

// RunnableAgent answers one user turn. The built-in simulated desk agent
// implements it; real agents plug in the same way.
type RunnableAgent interface {
	Query(ctx context.Context, text string) (string, error)
}

// AgentRegistry resolves agent names to fresh agent instances. Each run
// gets its own instance so executors are never shared.
type AgentRegistry interface {
	NewAgent(name string) (RunnableAgent, bool)
}

// RunService executes agent turns under a full trace: a trace wraps the
// run, an agent span wraps the query, structured logs are collected, and
// everything is flushed to storage whether the run succeeds or fails.
type RunService struct {
	tracer    *tracer.Tracer
	agents    AgentRegistry
	ingestion *IngestionService
	logger    *zap.Logger
}

// NewRunService creates a new run service
func NewRunService(logger *zap.Logger, tr *tracer.Tracer, agents AgentRegistry, ingestion *IngestionService) *RunService {
	return &RunService{
		logger:    logger.Named("run"),
		tracer:    tr,
		agents:    agents,
		ingestion: ingestion,
	}
}

// Run executes one agent turn for the user and persists the resulting
// trace, spans and logs. The trace is flushed even when the agent fails;
// the run error is reflected in the trace status, not returned.
func (s *RunService) Run(ctx context.Context, agentName, input, userID string) (*AgentRunResult, error) {
	agent, ok := s.agents.NewAgent(agentName)
	if !ok {
		return nil, apperrors.NotFound("agent")
	}

	ctx, tc, err := s.tracer.StartTrace(ctx, userID, map[string]any{
		"user_input": input,
		"agent":      agentName,
	})
	if err != nil {
		return nil, err
	}

	runLogger := tracer.NewLogger("agent_runner", domain.LogLevelDebug)
	var logs []*domain.LogEntry
	collect := func(entry *domain.LogEntry) {
		if entry != nil {
			logs = append(logs, entry)
		}
	}

	var output string
	runErr := s.tracer.Span(ctx, "agent_execution", domain.SpanTypeAgent, map[string]any{
		"agent": agentName,
	}, func(ctx context.Context, span *tracer.ActiveSpan) error {
		collect(runLogger.Info(ctx, "agent run started", map[string]any{"agent": agentName}))

		out, err := agent.Query(ctx, input)
		if err != nil {
			collect(runLogger.Error(ctx, "agent run failed", map[string]any{"error": err.Error()}))
			return err
		}

		output = out
		span.SetAttribute("output_length", len(out))
		collect(runLogger.Info(ctx, "agent run completed", nil))
		return nil
	})

	status := domain.TraceStatusSuccess
	if runErr != nil {
		status = domain.TraceStatusError
	}

	_, trace, err := s.tracer.EndTrace(ctx, status)
	if err != nil {
		return nil, err
	}

	if err := s.ingestion.StoreRun(context.WithoutCancel(ctx), trace, logs); err != nil {
		s.logger.Error("failed to persist agent run",
			zap.String("trace_id", tc.TraceID()),
			zap.Error(err),
		)
	}

	result := &AgentRunResult{
		TraceID: trace.TraceID,
		Output:  output,
		Status:  status,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result, nil
}

// deskAgentRegistry serves the built-in simulated agents
type deskAgentRegistry struct {
	factories map[string]func() RunnableAgent
}

// NewDeskAgentRegistry returns the registry of built-in agents. root_agent
// is the simulated trading desk agent used throughout the eval harness.
func NewDeskAgentRegistry(factories map[string]func() RunnableAgent) AgentRegistry {
	return &deskAgentRegistry{factories: factories}
}

func (r *deskAgentRegistry) NewAgent(name string) (RunnableAgent, bool) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}
