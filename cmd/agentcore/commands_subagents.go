package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildSubagentCmd groups the listing/status commands the external-interfaces
// surface names for the Subagent Manager.
func buildSubagentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subagent",
		Short: "Inspect background subagents",
	}
	cmd.AddCommand(buildSubagentListCmd(), buildSubagentStatusCmd())
	return cmd
}

func buildSubagentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List currently running subagents",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			running := a.subagents.ListRunning()
			if len(running) == 0 {
				fmt.Println("no subagents running")
				return nil
			}
			for _, sa := range running {
				fmt.Printf("%s\t%s\t%s\t%s\n", sa.ID, sa.Label, sa.State, sa.Task)
			}
			return nil
		},
	}
}

func buildSubagentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <subagent-id>",
		Short: "Show the status of one subagent",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			result := a.subagents.Status(args[0])
			if !result.Found {
				return fmt.Errorf("subagent: unknown id %s", args[0])
			}
			sa := result.Subagent
			fmt.Printf("id: %s\nlabel: %s\nstate: %s\ntask: %s\n", sa.ID, sa.Label, sa.State, sa.Task)
			if sa.Result != "" {
				fmt.Printf("result: %s\n", sa.Result)
			}
			if sa.Error != "" {
				fmt.Printf("error: %s\n", sa.Error)
			}
			return nil
		},
	}
}
