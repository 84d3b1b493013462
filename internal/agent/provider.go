// Package agent implements the Agent Driver: the Planner/Coder team,
// the selector/routing protocol between them, the streaming main loop, and
// the headless variant used inside subagent workers.
package agent

import (
	"context"

	"github.com/driftlab/agentcore/pkg/models"
)

// Tool describes one callable handed to a ChatCompletion request. It mirrors
// internal/tools.Definition without importing that package, so a provider
// implementation only ever needs this narrow view.
type Tool struct {
	Name        string
	Description string
	Schema      []byte
}

// CompletionRequest is one call to a model provider.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []*models.Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// CompletionChunk is one event in a streaming completion response. Exactly
// one of Text, ToolCall, Thinking, Done, Error is meaningful per chunk:
// tool-call requests carry the id the caller must echo back on the matching
// tool result, and Thinking text is accumulated into the assistant
// message's Reasoning field. The backends in internal/providers do not send
// Reasoning back to the model on later requests.
type CompletionChunk struct {
	Text     string
	ToolCall *models.ToolCall
	Thinking string
	Done     bool
	Error    error

	// InputTokens/OutputTokens are populated only on the final (Done) chunk.
	InputTokens  int
	OutputTokens int
}

// ChatCompletion is the sole outbound LLM capability the driver depends on.
// Concrete backends (internal/providers) wrap a vendor SDK behind this
// interface; retries and logging/accounting live in the AccountingClient
// wrapper (NewAccountingClient), not in the backend itself.
type ChatCompletion interface {
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
	Name() string
}

// drainChunks reads every chunk of a completion to the end (Done or Error),
// assembling the full assistant message. Used by both the streaming driver
// loop (which also forwards each chunk to the UI as it arrives) and
// RunTask's headless path.
func drainChunks(chunks <-chan *CompletionChunk, onChunk func(*CompletionChunk)) (*models.Message, error) {
	msg := &models.Message{Role: models.RoleAssistant}
	for chunk := range chunks {
		if onChunk != nil {
			onChunk(chunk)
		}
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		if chunk.Text != "" {
			msg.Content += chunk.Text
		}
		if chunk.Thinking != "" {
			msg.Reasoning += chunk.Thinking
		}
		if chunk.ToolCall != nil {
			msg.ToolCalls = append(msg.ToolCalls, *chunk.ToolCall)
		}
		if chunk.Done {
			break
		}
	}
	return msg, nil
}
