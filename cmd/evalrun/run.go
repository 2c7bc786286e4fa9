package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentgauge/agentgauge/internal/config"
	"github.com/agentgauge/agentgauge/internal/evaluator"
	"github.com/agentgauge/agentgauge/internal/executor"
)

var (
	evalFolder  string
	agentName   string
	judgeModel  string
	concurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every eval set found in a folder",
	Long: `Run discovers *.evalset.json files under --folder, pairs each with its
*.test_config.json, and evaluates the agent against every case. Answers
are graded by the configured judge model; "mock" always passes and needs
no credentials.

Exit code is 0 only when every case passes.

Examples:
  evalrun run --folder ./evals
  evalrun run --folder ./evals --agent root_agent --concurrency 8
  evalrun run --folder ./evals --model gpt-4o-mini`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runEvals,
}

func init() {
	runCmd.Flags().StringVar(&evalFolder, "folder", "", "Folder containing eval sets (required)")
	runCmd.Flags().StringVar(&agentName, "agent", "root_agent", "Built-in agent to evaluate")
	runCmd.Flags().StringVar(&judgeModel, "model", evaluator.MockModel, "Judge model for answer grading")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 4, "Cases evaluated in parallel per set")
	_ = runCmd.MarkFlagRequired("folder")
}

func runEvals(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pairs, err := evaluator.ScanConfigPairs(evalFolder)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no eval sets found under %s", evalFolder)
	}
	logVerbose("found %d eval set(s) under %s", len(pairs), evalFolder)

	factory, err := agentFactory(agentName)
	if err != nil {
		return err
	}

	eval := evaluator.New(evaluator.NewScorer(judgeModel, cfg.Eval), concurrency)

	var total evaluator.Summary
	for _, pair := range pairs {
		report, err := eval.RunEvalSet(cmd.Context(), pair.EvalSetPath, pair.ConfigPath, factory)
		if err != nil {
			return err
		}
		printReport(report)

		total.Total += report.Summary.Total
		total.Passed += report.Summary.Passed
		total.Failed += report.Summary.Failed
		total.Errors += report.Summary.Errors
	}

	if len(pairs) > 1 {
		printSummary("all sets", total)
	}
	if total.Failed > 0 || total.Errors > 0 {
		return fmt.Errorf("%d of %d cases did not pass", total.Failed+total.Errors, total.Total)
	}
	return nil
}

// agentFactory resolves a built-in agent name. Each case gets a fresh
// executor so recorded tool calls never leak between cases.
func agentFactory(name string) (evaluator.AgentFactory, error) {
	switch name {
	case "root_agent":
		return func() evaluator.Agent {
			return executor.NewSimulatedDeskAgent(executor.NewCaptureExecutor(executor.NewDeskDispatcher()))
		}, nil
	}
	return nil, fmt.Errorf("unknown agent: %s", name)
}

func printReport(report *evaluator.Report) {
	for _, r := range report.Results {
		fmt.Printf("[%s] %s: Score=%.2f | Reason=%s\n", r.Status, r.EvalID, r.Score, r.Reason)
	}
	printSummary(report.EvalSetID, report.Summary)
}

func printSummary(name string, s evaluator.Summary) {
	fmt.Println("==============")
	fmt.Printf("Eval set: %s\n", name)
	fmt.Printf("Total:  %d\n", s.Total)
	fmt.Printf("Passed: %d\n", s.Passed)
	fmt.Printf("Failed: %d\n", s.Failed)
	fmt.Printf("Errors: %d\n", s.Errors)
	fmt.Println("==============")
}
