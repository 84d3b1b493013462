// Package models holds the wire types shared across the agent core: the
// conversation Message, tool call/result pairs, and the role enum. These are
// the only types that cross package boundaries between the driver, the token
// accountant, and the compressor.
package models

import "encoding/json"

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request emitted by the model specifying a tool
// and its arguments.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing a ToolCall, fed back into the
// conversation as a message of role "tool".
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message is one immutable entry in a conversation history. Once appended,
// a Message is never mutated; compaction replaces a prefix of the history
// with a new summary Message rather than editing existing ones.
type Message struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	ToolCalls  []ToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	// Reasoning carries an opaque provider-specific reasoning trace. It is
	// never interpreted or re-tokenized, only length-counted (see
	// internal/tokens). The provider backends do not send it back to the
	// model on subsequent calls.
	Reasoning string `json:"reasoning,omitempty"`

	// Metadata carries auxiliary flags such as compaction markers
	// ({"compressed": true}); it is never inspected by the provider.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsSystem reports whether this message has the system role.
func (m *Message) IsSystem() bool {
	return m != nil && m.Role == RoleSystem
}

// textForCounting returns the text that should be charged against a model's
// token budget: the message content plus any tool call arguments and the
// opaque reasoning trace.
func (m *Message) textForCounting() string {
	if m == nil {
		return ""
	}
	s := m.Content
	for _, tc := range m.ToolCalls {
		s += string(tc.Name) + string(tc.Input)
	}
	for _, tr := range m.ToolResults {
		s += tr.Content
	}
	s += m.Reasoning
	return s
}

// TextForCounting exposes textForCounting for the token accountant.
func (m *Message) TextForCounting() string {
	return m.textForCounting()
}
