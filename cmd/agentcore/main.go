// Package main provides the CLI entry point for agentcore, the core agent
// orchestration runtime: tool registry, token accounting, context
// compaction, message bus, subagent manager, cron service, and agent driver
// wired against Anthropic and OpenAI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	commit     = "none"
	configPath string
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd attaches every subcommand to the root. Kept separate from
// main so tests can build the tree without calling os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore - core agent orchestration runtime",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "agentcore.yaml", "Path to the settings file")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildCronCmd(),
		buildSubagentCmd(),
	)

	return rootCmd
}
