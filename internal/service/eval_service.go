package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/evaluator"
	"github.com/agentgauge/agentgauge/internal/executor"
	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
	"github.com/agentgauge/agentgauge/internal/pkg/id"
	"github.com/agentgauge/agentgauge/internal/pkg/metrics"
)

// TestCaseRepository defines persistence for captured eval test cases
type TestCaseRepository interface {
	// Upsert inserts a case or refreshes the captured outputs of an
	// existing one. Review status survives re-capture.
	Upsert(ctx context.Context, tc *domain.EvalTestCase) error
	// GetByID retrieves a case by test ID.
	GetByID(ctx context.Context, testID string) (*domain.EvalTestCase, error)
	// LoadApproved returns approved cases, optionally restricted to IDs.
	LoadApproved(ctx context.Context, testIDs []string) ([]domain.EvalTestCase, error)
	// List returns cases matching the filter.
	List(ctx context.Context, filter *domain.TestCaseFilter, limit, offset int) ([]domain.EvalTestCase, error)
	// UpdateStatus moves a case through the review lifecycle.
	UpdateStatus(ctx context.Context, testID string, status domain.TestCaseStatus) error
	// UpdateExpectedOutput edits the golden output of a case.
	UpdateExpectedOutput(ctx context.Context, testID, expected string) error
	// Delete removes a case.
	Delete(ctx context.Context, testID string) error
	// Count returns the number of cases, optionally per status.
	Count(ctx context.Context, status *domain.TestCaseStatus) (int64, error)
}

// ReportRepository defines persistence for asynchronous eval reports
type ReportRepository interface {
	Create(ctx context.Context, report *domain.EvalReport) error
	GetByID(ctx context.Context, id string) (*domain.EvalReport, error)
	Complete(ctx context.Context, report *domain.EvalReport) error
	SetObjectKey(ctx context.Context, id, objectKey string) error
	List(ctx context.Context, limit, offset int) ([]domain.EvalReport, error)
}

// EvalEnqueuer hands an eval batch to the background worker
type EvalEnqueuer interface {
	EnqueueEvalRun(ctx context.Context, reportID, agentVersion string, testIDs []string) error
	EnqueueReportExport(ctx context.Context, reportID, format string) error
}

// passSimilarity is the similarity at or above which a replayed case passes
const passSimilarity = 0.99

// mcpPassThreshold is the pass threshold for one-off MCP evaluations
const mcpPassThreshold = 0.8

// EvalService owns the capture/replay test-case lifecycle.
//
// Capture runs the agent live, records every tool call redacted and
// scrubbed, and stores a draft test case whose expected output starts as
// whatever the agent produced. Once a reviewer approves the case, RunBatch
// replays it against a candidate agent version with zero live tool calls.
type EvalService struct {
	cfg       config.EvalConfig
	testCases TestCaseRepository
	reports   ReportRepository
	enqueuer  EvalEnqueuer
	realtime  *RealtimeService
	logger    *zap.Logger

	// newDispatcher builds the live dispatcher used in capture mode.
	// Swappable in tests.
	newDispatcher func() executor.Dispatcher
}

// NewEvalService creates a new eval service. enqueuer and realtime may be
// nil; async runs and events are then unavailable.
func NewEvalService(
	logger *zap.Logger,
	cfg config.EvalConfig,
	testCases TestCaseRepository,
	reports ReportRepository,
	enqueuer EvalEnqueuer,
	realtime *RealtimeService,
) *EvalService {
	return &EvalService{
		logger:        logger.Named("eval"),
		cfg:           cfg,
		testCases:     testCases,
		reports:       reports,
		enqueuer:      enqueuer,
		realtime:      realtime,
		newDispatcher: func() executor.Dispatcher { return executor.NewDeskDispatcher() },
	}
}

// Capture runs the agent live against the prompt and stores the interaction
// as a draft test case. The expected output is initialized to the agent's
// output; ToolCallTrace holds the redacted recordings. Tool failures
// propagate as TOOL_INVOCATION errors.
func (s *EvalService) Capture(ctx context.Context, prompt string, agentContext map[string]any, agentVersion, userEmail string, tags []string) (*domain.EvalTestCase, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperrors.Validation("prompt is required")
	}

	exec := executor.NewCaptureExecutor(s.newDispatcher())
	output, err := exec.RunAgent(ctx, prompt, agentContext)
	if err != nil {
		return nil, err
	}

	tc := &domain.EvalTestCase{
		TestID:         id.NewTestCaseID(),
		InputPrompt:    prompt,
		InputContext:   agentContext,
		AgentOutput:    output,
		ExpectedOutput: output,
		Status:         domain.TestCaseStatusDraft,
		AgentVersion:   agentVersion,
		CreatedBy:      userEmail,
		Tags:           tags,
		ToolCallTrace:  exec.RecordedCalls(),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.testCases.Upsert(ctx, tc); err != nil {
		return nil, fmt.Errorf("failed to store test case: %w", err)
	}

	metrics.RecordCapture()
	s.logger.Info("test case captured",
		zap.String("test_id", tc.TestID),
		zap.String("agent_version", agentVersion),
		zap.Int("tool_calls", len(tc.ToolCallTrace)),
	)

	if s.realtime != nil {
		s.realtime.PublishCaseCaptured(ctx, tc.TestID)
	}

	return tc, nil
}

// RunBatch replays approved test cases against the candidate agent version
// and returns one result per case. A case whose replay fails produces a
// failed result rather than aborting the batch.
func (s *EvalService) RunBatch(ctx context.Context, agentVersion string, testIDs []string) ([]domain.EvalResult, error) {
	cases, err := s.testCases.LoadApproved(ctx, testIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load approved cases: %w", err)
	}

	results := make([]domain.EvalResult, 0, len(cases))
	for i := range cases {
		result := s.replayCase(ctx, &cases[i])
		metrics.RecordEvalResult(result.Passed)
		results = append(results, result)
	}

	summary := domain.Summarize(results)
	s.logger.Info("eval batch completed",
		zap.String("agent_version", agentVersion),
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
	)

	return results, nil
}

// replayCase runs one approved case in replay mode. Every tool call is
// served from the stored trace; a missing recording fails the case hard.
func (s *EvalService) replayCase(ctx context.Context, tc *domain.EvalTestCase) domain.EvalResult {
	result := domain.EvalResult{
		TestID:         tc.TestID,
		ExpectedOutput: tc.ExpectedOutput,
	}

	exec := executor.NewReplayExecutor(tc.ToolCallTrace)
	actual, err := exec.RunAgent(ctx, tc.InputPrompt, tc.InputContext)
	if err != nil {
		if apperrors.IsReplayMissing(err) {
			result.ActualOutput = "Replay error: " + err.Error()
		} else {
			result.ActualOutput = "Runtime error: " + err.Error()
		}
		return result
	}

	result.ActualOutput = actual
	result.Similarity = outputSimilarity(actual, tc.ExpectedOutput)
	result.Passed = result.Similarity >= passSimilarity
	return result
}

// StartAsyncRun creates a pending report and enqueues the batch for the
// background worker. The returned report carries the ID to poll.
func (s *EvalService) StartAsyncRun(ctx context.Context, agentVersion string, testIDs []string) (*domain.EvalReport, error) {
	if s.enqueuer == nil {
		return nil, apperrors.Internal("async eval runs are not configured")
	}

	report := &domain.EvalReport{
		ID:           id.NewUUID(),
		AgentVersion: agentVersion,
		Status:       domain.JobStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	if err := s.enqueuer.EnqueueEvalRun(ctx, report.ID, agentVersion, testIDs); err != nil {
		report.Status = domain.JobStatusFailed
		report.Error = "failed to enqueue evaluation"
		if completeErr := s.reports.Complete(ctx, report); completeErr != nil {
			s.logger.Error("failed to mark report failed", zap.String("report_id", report.ID), zap.Error(completeErr))
		}
		return nil, fmt.Errorf("failed to enqueue eval run: %w", err)
	}

	return report, nil
}

// ExportReport enqueues a completed report for export to object storage.
// Reports still running cannot be exported.
func (s *EvalService) ExportReport(ctx context.Context, reportID, format string) error {
	if s.enqueuer == nil {
		return apperrors.Internal("report exports are not configured")
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	if !report.Status.IsTerminal() {
		return apperrors.Validation(fmt.Sprintf("report %s is still %s", report.ID, report.Status))
	}

	if err := s.enqueuer.EnqueueReportExport(ctx, reportID, format); err != nil {
		return fmt.Errorf("failed to enqueue report export: %w", err)
	}
	return nil
}

// ExecuteReport runs a previously enqueued batch and stores the outcome on
// the report. Called by the eval worker.
func (s *EvalService) ExecuteReport(ctx context.Context, reportID, agentVersion string, testIDs []string) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}

	results, err := s.RunBatch(ctx, agentVersion, testIDs)
	if err != nil {
		report.Status = domain.JobStatusFailed
		report.Error = err.Error()
		if completeErr := s.reports.Complete(ctx, report); completeErr != nil {
			return fmt.Errorf("failed to store failed report: %w", completeErr)
		}
		return err
	}

	report.Status = domain.JobStatusCompleted
	report.Results = results
	report.Summary = domain.Summarize(results)
	if err := s.reports.Complete(ctx, report); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	if s.realtime != nil {
		s.realtime.PublishEvalCompleted(ctx, report.ID, report.Summary.Passed, report.Summary.Failed)
	}

	return nil
}

// GetReport retrieves a stored eval report by ID
func (s *EvalService) GetReport(ctx context.Context, reportID string) (*domain.EvalReport, error) {
	return s.reports.GetByID(ctx, reportID)
}

// AttachReportObject records the object-storage key of an exported report.
// Called by the export worker after the upload succeeds.
func (s *EvalService) AttachReportObject(ctx context.Context, reportID, objectKey string) error {
	return s.reports.SetObjectKey(ctx, reportID, objectKey)
}

// ListReports returns recent eval reports, newest first
func (s *EvalService) ListReports(ctx context.Context, limit, offset int) ([]domain.EvalReport, error) {
	return s.reports.List(ctx, clampLimit(limit), offset)
}

// GetTestCase retrieves a test case by ID
func (s *EvalService) GetTestCase(ctx context.Context, testID string) (*domain.EvalTestCase, error) {
	return s.testCases.GetByID(ctx, testID)
}

// ListTestCases returns test cases matching the filter
func (s *EvalService) ListTestCases(ctx context.Context, filter *domain.TestCaseFilter, limit, offset int) ([]domain.EvalTestCase, error) {
	return s.testCases.List(ctx, filter, clampLimit(limit), offset)
}

// ReviewTestCase moves a case through the review lifecycle and optionally
// replaces its expected output in the same step.
func (s *EvalService) ReviewTestCase(ctx context.Context, testID string, status domain.TestCaseStatus, expectedOutput *string) error {
	if !status.IsValid() {
		return apperrors.Validation("invalid test case status")
	}
	if expectedOutput != nil {
		if err := s.testCases.UpdateExpectedOutput(ctx, testID, *expectedOutput); err != nil {
			return err
		}
	}
	return s.testCases.UpdateStatus(ctx, testID, status)
}

// DeleteTestCase removes a test case
func (s *EvalService) DeleteTestCase(ctx context.Context, testID string) error {
	return s.testCases.Delete(ctx, testID)
}

// RunMCPEvaluation runs one ad-hoc capture evaluation of the live agent
// against an expected output, without storing a test case.
func (s *EvalService) RunMCPEvaluation(ctx context.Context, prompt, expected string, agentContext map[string]any) (*domain.EvalResult, error) {
	exec := executor.NewCaptureExecutor(s.newDispatcher())
	actual, err := exec.RunAgent(ctx, prompt, agentContext)
	if err != nil {
		return nil, err
	}

	similarity := outputSimilarity(actual, expected)
	return &domain.EvalResult{
		TestID:         "mcp_adhoc",
		Passed:         similarity >= mcpPassThreshold,
		Similarity:     similarity,
		ActualOutput:   actual,
		ExpectedOutput: expected,
	}, nil
}

// RunFileEvaluation runs every eval-set/config pair under root against the
// built-in agent, scored with the configured model.
func (s *EvalService) RunFileEvaluation(ctx context.Context, root string, concurrency int) ([]*evaluator.Report, error) {
	pairs, err := evaluator.ScanConfigPairs(root)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, apperrors.NotFound("eval set")
	}

	runner := evaluator.New(evaluator.NewScorer("", s.cfg), concurrency)

	newAgent := func() evaluator.Agent {
		return executor.NewSimulatedDeskAgent(executor.NewCaptureExecutor(s.newDispatcher()))
	}

	reports := make([]*evaluator.Report, 0, len(pairs))
	for _, pair := range pairs {
		report, err := runner.RunEvalSet(ctx, pair.EvalSetPath, pair.ConfigPath, newAgent)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// outputSimilarity is the exact-match similarity of two outputs after
// trimming surrounding whitespace: 1.0 on equality, 0.0 otherwise.
func outputSimilarity(actual, expected string) float64 {
	if strings.TrimSpace(actual) == strings.TrimSpace(expected) {
		return 1.0
	}
	return 0.0
}
