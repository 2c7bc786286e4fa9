package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentgauge/agentgauge/internal/pkg/logger"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	// Global flags
	logLevel string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "evalrun",
	Short: "AgentGauge eval runner - file-driven agent evaluation",
	Long: `evalrun discovers *.evalset.json / *.test_config.json pairs in a folder
and evaluates the configured agent against every case.

Example:
  evalrun run --folder ./evals
  evalrun run --folder ./evals --agent root_agent --model mock
  evalrun run --folder ./evals --model gpt-4o-mini --concurrency 8`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if verbose {
			level = "debug"
		}
		return logger.Init(logger.Config{Level: level, Format: "console"})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// logVerbose logs a message if verbose mode is enabled
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[evalrun] "+format+"\n", args...)
	}
}
