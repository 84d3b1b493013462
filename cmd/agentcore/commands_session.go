package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// buildRunCmd starts an interactive session: a read-eval-print loop handing
// each line of input to the Driver's main turn and printing its answer.
// Session state lives only in the Driver's in-memory message history for
// this one process; nothing is persisted across runs.
func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.driver.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSession(ctx, a)
		},
	}
}

func runSession(ctx context.Context, a *app) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("agentcore session started. Type a message, or Ctrl-D to exit.")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		// The driver streams its answer to the console UI chunk by chunk as
		// it arrives (agent.ConsoleUI.PrintAgentMessage); the returned text
		// is the same content already printed, not a second copy to show.
		if _, err := a.driver.Run(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}
