package subagents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftlab/agentcore/internal/tools"
)

// spawnArgsSchema is the argument schema advertised to the model. It mirrors
// the fields Spawn accepts; parent_id is supplied by the wiring layer from
// the calling agent's own identity, not by the model.
var spawnArgsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"task": {"type": "string", "description": "The task for the background agent to complete"},
		"label": {"type": "string", "description": "A short label for the background task"},
		"max_iterations": {"type": "integer", "minimum": 1, "description": "Tool-call budget for the background agent"}
	},
	"required": ["task"]
}`)

// SpawnToolDefinition builds the spawn_subagent tool definition registered
// into the root registry. parentID identifies the agent instance making the
// spawn call (used for status listing and as the parent_id recorded on the
// Subagent).
func SpawnToolDefinition(m *Manager, parentID string) tools.Definition {
	return tools.Definition{
		Name:           SpawnToolName,
		Description:    "Spawn a background agent to work on a task concurrently. Returns a subagent id for tracking with subagent_status.",
		ArgumentSchema: spawnArgsSchema,
		Invoke: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Task          string `json:"task"`
				Label         string `json:"label"`
				MaxIterations int    `json:"max_iterations"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			id, err := m.Spawn(ctx, in.Task, in.Label, parentID, in.MaxIterations)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Background task spawned with id %s. Use subagent_status to check progress.", id), nil
		},
	}
}

var statusArgsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"id": {"type": "string", "description": "Subagent id to check; omit to list all running subagents"}
	}
}`)

// StatusToolDefinition builds the subagent_status tool.
func StatusToolDefinition(m *Manager) tools.Definition {
	return tools.Definition{
		Name:           "subagent_status",
		Description:    "Check the status of a background task, or list all currently running ones.",
		ArgumentSchema: statusArgsSchema,
		Invoke: func(_ context.Context, args json.RawMessage) (string, error) {
			var in struct {
				ID string `json:"id"`
			}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("invalid arguments: %w", err)
				}
			}
			if in.ID != "" {
				st := m.Status(in.ID)
				if !st.Found {
					return "", fmt.Errorf("subagent not found: %s", in.ID)
				}
				return formatStatus(st.Subagent), nil
			}
			running := m.ListRunning()
			if len(running) == 0 {
				return "No background tasks are currently running.", nil
			}
			out := fmt.Sprintf("%d/%d background tasks running:\n", len(running), m.cfg.MaxConcurrent)
			for _, sa := range running {
				out += fmt.Sprintf("- %s (%s): %s\n", sa.Label, sa.ID, sa.Task)
			}
			return out, nil
		},
	}
}

func formatStatus(sa Subagent) string {
	base := fmt.Sprintf("Subagent %s (%s)\nState: %s\nTask: %s\n", sa.Label, sa.ID, sa.State, sa.Task)
	switch sa.State {
	case StateCompleted:
		base += fmt.Sprintf("Result: %s\n", sa.Result)
	case StateFailed:
		base += fmt.Sprintf("Error: %s\n", sa.Error)
	}
	return base
}
