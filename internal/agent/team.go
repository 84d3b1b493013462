package agent

import (
	"context"
	"strings"

	"github.com/driftlab/agentcore/pkg/models"
)

// Role identifies a team participant. Planner plans and re-plans; Coder is
// the only role that executes tools and produces user-visible replies.
type Role string

const (
	RolePlanner Role = "planner"
	RoleCoder   Role = "coder"
)

// TerminateSentinel, when it appears in a Coder TextMessage, ends the run.
const TerminateSentinel = "TERMINATE"

// EventKind classifies one event in the team's streaming output.
type EventKind string

const (
	EventTextMessage         EventKind = "text_message"
	EventToolCallRequest     EventKind = "tool_call_request"
	EventToolCallExecution   EventKind = "tool_call_execution"
	EventModelStreamingChunk EventKind = "model_client_streaming_chunk"
	EventCodeGeneration      EventKind = "code_generation_event"
)

// StreamEvent is one item the team emits while running a turn. Exactly one
// of Text/ToolCall/ToolResult is populated, depending on Kind.
type StreamEvent struct {
	Kind       EventKind
	Role       Role
	Text       string
	ToolCall   *models.ToolCall
	ToolResult *models.ToolResult

	// Reasoning is true when Kind is EventTextMessage and the text was
	// classified as a short in-progress thought rather than a final answer.
	Reasoning bool
}

// reasoningPrefixes are the short lead-ins that mark a Coder TextMessage as
// a reasoning aside rather than a final answer. Matching is case-insensitive
// against the trimmed text.
var reasoningPrefixes = []string{
	"i'll", "i will", "let me", "next,", "next i", "first,", "first i",
	"now i", "now let's", "let's",
}

// classifyReasoning reports whether text should render as dimmed reasoning:
// short text beginning with one of the prefixes above. Long messages are
// always treated as final answers even if they happen to start that way.
func classifyReasoning(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > 160 {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range reasoningPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// RoleSelector is consulted only when the deterministic table below has no
// matching rule, falling back to a model-based selector asked which role
// should speak next.
type RoleSelector interface {
	SelectNext(ctx context.Context, history []StreamEvent) (Role, error)
}

// selectorState is the minimal state the deterministic table needs: who
// spoke last, what kind of event they produced, and whether a tool call is
// still awaiting its result.
type selectorState struct {
	lastSpeaker     Role
	lastKind        EventKind
	pendingToolCall bool
	finalText       string
}

// nextSpeaker implements the deterministic planner/coder turn-taking table.
// ok is false only when no deterministic rule applies, signaling the caller
// to consult a RoleSelector fallback.
func nextSpeaker(s selectorState) (role Role, terminate bool, ok bool) {
	switch {
	case s.lastSpeaker == "":
		// start of turn: user just spoke.
		return RolePlanner, false, true

	case s.lastSpeaker == RolePlanner:
		// Planner never acts twice in a row.
		return RoleCoder, false, true

	case s.lastSpeaker == RoleCoder && s.pendingToolCall:
		// Coder must receive its own tool result before anyone else speaks.
		return RoleCoder, false, true

	case s.lastSpeaker == RoleCoder && s.lastKind == EventToolCallExecution:
		return RolePlanner, false, true

	case s.lastSpeaker == RoleCoder && s.lastKind == EventTextMessage:
		if strings.Contains(s.finalText, TerminateSentinel) {
			return "", true, true
		}
		return RolePlanner, false, true

	default:
		return "", false, false
	}
}
