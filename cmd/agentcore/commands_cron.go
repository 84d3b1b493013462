package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftlab/agentcore/internal/cron"
)

// buildCronCmd groups the add/list/enable/disable/remove/run subcommands
// the external-interfaces surface names for the Cron Service.
func buildCronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(
		buildCronAddCmd(),
		buildCronListCmd(),
		buildCronEnableCmd(),
		buildCronDisableCmd(),
		buildCronRemoveCmd(),
		buildCronRunCmd(),
	)
	return cmd
}

func buildCronAddCmd() *cobra.Command {
	var (
		name     string
		task     string
		at       int64
		every    int64
		expr     string
		tz       string
		priority int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job (exactly one of --at, --every, --cron)",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newCronApp(configPath)
			if err != nil {
				return err
			}
			defer a.cron.Stop()

			schedule, err := buildSchedule(at, every, expr, tz)
			if err != nil {
				return err
			}

			id, err := a.cron.Add(name, schedule, task, priority)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Job name")
	cmd.Flags().StringVar(&task, "task", "", "Task text handed to the spawned subagent")
	cmd.Flags().Int64Var(&at, "at", 0, "Fire once at this unix millisecond timestamp")
	cmd.Flags().Int64Var(&every, "every", 0, "Fire every N milliseconds")
	cmd.Flags().StringVar(&expr, "cron", "", "Standard cron expression")
	cmd.Flags().StringVar(&tz, "tz", "", "Timezone for --cron (default UTC)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Job priority")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// newCronApp wires the app and starts its Cron Service so the in-memory job
// map reflects what was last persisted — each CLI invocation is a fresh
// process, so every cron subcommand needs this before touching a.cron.
// Stop is deferred by the caller to let the scheduling loop exit cleanly.
func newCronApp(configPath string) (*app, error) {
	a, err := newApp(configPath)
	if err != nil {
		return nil, err
	}
	if err := a.cron.Start(); err != nil {
		return nil, err
	}
	return a, nil
}

func buildSchedule(at, every int64, expr, tz string) (cron.Schedule, error) {
	set := 0
	if at > 0 {
		set++
	}
	if every > 0 {
		set++
	}
	if expr != "" {
		set++
	}
	if set != 1 {
		return cron.Schedule{}, fmt.Errorf("exactly one of --at, --every, --cron is required")
	}

	switch {
	case at > 0:
		return cron.NewAtSchedule(at)
	case every > 0:
		return cron.NewEverySchedule(every)
	default:
		return cron.NewCronSchedule(expr, tz)
	}
}

func buildCronListCmd() *cobra.Command {
	var enabledOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newCronApp(configPath)
			if err != nil {
				return err
			}
			defer a.cron.Stop()
			for _, job := range a.cron.List(enabledOnly) {
				fmt.Printf("%s\t%s\tenabled=%t\tnext_run_at_ms=%d\tlast_status=%s\n",
					job.ID, job.Name, job.Enabled, job.State.NextRunAtMS, job.State.LastStatus)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled-only", false, "Only list enabled jobs")
	return cmd
}

func buildCronEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <job-id>",
		Short: "Enable a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newCronApp(configPath)
			if err != nil {
				return err
			}
			defer a.cron.Stop()
			if !a.cron.Enable(args[0], true) {
				return fmt.Errorf("cron: unknown job %s", args[0])
			}
			return nil
		},
	}
}

func buildCronDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <job-id>",
		Short: "Disable a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newCronApp(configPath)
			if err != nil {
				return err
			}
			defer a.cron.Stop()
			if !a.cron.Enable(args[0], false) {
				return fmt.Errorf("cron: unknown job %s", args[0])
			}
			return nil
		},
	}
}

func buildCronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newCronApp(configPath)
			if err != nil {
				return err
			}
			defer a.cron.Stop()
			if !a.cron.Remove(args[0]) {
				return fmt.Errorf("cron: unknown job %s", args[0])
			}
			return nil
		},
	}
}

func buildCronRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Fire a job immediately, outside its normal schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newCronApp(configPath)
			if err != nil {
				return err
			}
			defer a.cron.Stop()
			if !a.cron.RunNow(args[0]) {
				return fmt.Errorf("cron: unknown job %s", args[0])
			}
			return nil
		},
	}
}
