// Package executor drives tool calls for agent runs. In capture mode every
// call goes to the live dispatcher and is recorded; in replay mode results
// come exclusively from a previously captured trace and no live call is
// ever made. Each concurrent case gets its own Executor: mode, recorded
// calls and the mock map are per-instance state.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentgauge/agentgauge/internal/domain"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/fingerprint"
	"github.com/agentgauge/agentgauge/internal/pkg/metrics"
	"github.com/agentgauge/agentgauge/internal/pkg/scrub"
)

// Dispatcher resolves live tool calls by name. Implementations fail with an
// error on unknown tools or downstream failures.
type Dispatcher interface {
	Call(ctx context.Context, toolName string, args map[string]any) (any, error)
}

// Executor invokes tools in a fixed mode decided at construction
type Executor struct {
	mode       domain.ExecutionMode
	dispatcher Dispatcher

	mu       sync.Mutex
	recorded []domain.ToolCallRecord

	// mocks is read-only after construction
	mocks map[string]any
}

// NewCaptureExecutor creates an executor that performs live calls through
// the dispatcher and records each one.
func NewCaptureExecutor(dispatcher Dispatcher) *Executor {
	return &Executor{
		mode:       domain.ModeCapture,
		dispatcher: dispatcher,
	}
}

// NewReplayExecutor creates an executor that answers tool calls from a
// previously captured tool-call trace.
func NewReplayExecutor(trace []domain.ToolCallRecord) *Executor {
	mocks := make(map[string]any, len(trace))
	for _, record := range trace {
		mocks[record.ToolID] = record.Result
	}
	return &Executor{
		mode:  domain.ModeReplay,
		mocks: mocks,
	}
}

// Mode returns the execution mode fixed at construction
func (e *Executor) Mode() domain.ExecutionMode {
	return e.mode
}

// InvokeTool executes one tool call. The lookup key is always computed from
// the raw arguments, so stored redaction never affects replay matching.
//
// Replay: a missing key fails hard with a REPLAY_MISSING error, flagging
// drift between the fixture and current agent behavior. Capture: the live
// result is returned raw, while the stored record holds the redacted and
// scrubbed forms of args and result.
func (e *Executor) InvokeTool(ctx context.Context, toolName string, args map[string]any) (any, error) {
	toolID := fingerprint.ToolID(toolName, args)

	if e.mode == domain.ModeReplay {
		result, ok := e.mocks[toolID]
		metrics.RecordReplayLookup(ok)
		if !ok {
			return nil, apperrors.ReplayMissing(toolID)
		}
		return result, nil
	}

	result, err := e.dispatcher.Call(ctx, toolName, args)
	if err != nil {
		return nil, apperrors.ToolInvocation(toolName, err)
	}

	record := domain.ToolCallRecord{
		ToolID:    toolID,
		ToolName:  toolName,
		Args:      sanitizeArgs(args),
		Result:    sanitizeValue(result),
		Timestamp: time.Now().UTC(),
	}

	e.mu.Lock()
	e.recorded = append(e.recorded, record)
	e.mu.Unlock()

	return result, nil
}

// RecordedCalls returns a copy of the calls captured so far
func (e *Executor) RecordedCalls() []domain.ToolCallRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ToolCallRecord, len(e.recorded))
	copy(out, e.recorded)
	return out
}

// RunAgent performs one simulated desk turn: pull the client's RFQ history,
// benchmark pricing for the underlying, check the desk exposure impact,
// then synthesize a recommendation. Real agents replace this loop; the only
// hard contract is that every tool call routes through InvokeTool.
func (e *Executor) RunAgent(ctx context.Context, prompt string, agentContext map[string]any) (string, error) {
	clientID := stringValue(agentContext, "client_id", "DEFAULT")
	underlying := stringValue(agentContext, "underlying", "SPX")

	if _, err := e.InvokeTool(ctx, "get_client_rfq_history", map[string]any{"client_id": clientID}); err != nil {
		return "", err
	}
	if _, err := e.InvokeTool(ctx, "market_pricing_benchmark", map[string]any{"underlying": underlying}); err != nil {
		return "", err
	}
	if _, err := e.InvokeTool(ctx, "desk_exposure_impact", map[string]any{"underlying": underlying, "tenor": "3Y"}); err != nil {
		return "", err
	}

	return fmt.Sprintf("Consider lowering barrier to 75%% for %s. Adds ~1.2M vega. Historical win rate improves by 22%%.", underlying), nil
}

// sanitizeArgs produces the storable form of call arguments: plain JSON
// types, sensitive keys redacted, then PII patterns scrubbed.
func sanitizeArgs(args map[string]any) map[string]any {
	plain, ok := toPlain(args).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return scrub.ScrubMap(scrub.RedactSensitiveMap(plain))
}

// sanitizeValue does the same for an arbitrary result value
func sanitizeValue(v any) any {
	return scrub.ScrubValue(scrub.RedactSensitive(toPlain(v)))
}

// toPlain converts any value to plain JSON types so redaction and scrubbing
// reach inside typed results.
func toPlain(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}

func stringValue(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
