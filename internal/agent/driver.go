package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/driftlab/agentcore/internal/bus"
	"github.com/driftlab/agentcore/internal/tools"
	"github.com/driftlab/agentcore/pkg/models"
)

// DriverConfig tunes one Driver instance.
type DriverConfig struct {
	PlannerModel string
	CoderModel   string

	PlannerSystemPrompt string
	CoderSystemPrompt   string

	Temperature float64
	MaxTokens   int

	// MaxMessages bounds the conversation history length a single turn may
	// grow to before the driver forces termination (default 1000).
	MaxMessages int

	// MaxToolIterations bounds how many tool-call round-trips a single turn
	// may take before the driver forces termination (default 300).
	MaxToolIterations int

	// EmergencyTruncateN is how many of the most recent messages (including
	// system prompts) survive an emergency cleanup after a token-limit error
	// (default 30).
	EmergencyTruncateN int
}

func (c *DriverConfig) applyDefaults() {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 1000
	}
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = 300
	}
	if c.EmergencyTruncateN <= 0 {
		c.EmergencyTruncateN = 30
	}
	if c.PlannerSystemPrompt == "" {
		c.PlannerSystemPrompt = "You are the planner. Decide what the coder should do next. " +
			"You never call tools yourself."
	}
	if c.CoderSystemPrompt == "" {
		c.CoderSystemPrompt = "You are the coder. Use the available tools to carry out the " +
			"planner's instructions. When the task is fully done, end your final message " +
			"with the word " + TerminateSentinel + "."
	}
}

// Driver runs the Planner/Coder team loop described by the selector
// protocol in team.go. It is the sole consumer of ChatCompletion,
// tools.Registry, ApprovalChecker, and ToolResultGuard; subagent workers get
// their own Driver instance built by a subagents.DriverFactory closure in
// the bootstrap layer, with UI set to NoopUI.
type Driver struct {
	planner ChatCompletion
	coder   ChatCompletion

	registry *tools.Registry
	approval *ApprovalChecker
	guard    ToolResultGuard
	selector RoleSelector

	ui      UI
	msgBus  *bus.Bus
	metrics *Metrics
	logger  *slog.Logger
	cfg     DriverConfig

	mu         sync.Mutex
	teamActive bool
	pending    []string
	history    []*models.Message

	detectCancel context.CancelFunc
	detectDone   chan struct{}
}

// NewDriver wires a Driver. msgBus may be nil to disable the system-message
// detector (used by headless subagent drivers that have no conversation to
// inject into).
func NewDriver(planner, coder ChatCompletion, registry *tools.Registry, approval *ApprovalChecker, guard ToolResultGuard, selector RoleSelector, ui UI, msgBus *bus.Bus, metrics *Metrics, logger *slog.Logger, cfg DriverConfig) *Driver {
	cfg.applyDefaults()
	if ui == nil {
		ui = NoopUI{}
	}
	if approval == nil {
		approval = NewApprovalChecker(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Driver{
		planner:  planner,
		coder:    coder,
		registry: registry,
		approval: approval,
		guard:    guard,
		selector: selector,
		ui:       ui,
		msgBus:   msgBus,
		metrics:  metrics,
		logger:   logger.With("component", "agent.driver"),
		cfg:      cfg,
	}

	if msgBus != nil {
		ctx, cancel := context.WithCancel(context.Background())
		d.detectCancel = cancel
		d.detectDone = make(chan struct{})
		go d.detectSystemMessages(ctx)
	}
	return d
}

// Close stops the background system-message detector. Safe to call once
// per Driver; a nil msgBus Driver has nothing to stop.
func (d *Driver) Close() {
	if d.detectCancel != nil {
		d.detectCancel()
		<-d.detectDone
	}
}

// Run appends userText to the conversation this Driver owns and returns the
// team's final answer for the resulting turn. The history from every prior
// call to Run or RunTask on this Driver is still present, so the team sees
// the full conversation, not just the latest line.
func (d *Driver) Run(ctx context.Context, userText string) (string, error) {
	return d.runTurn(ctx, &models.Message{Role: models.RoleUser, Content: userText})
}

// RunTask satisfies subagents.TaskRunner: a headless turn appending task to
// this Driver's history. Subagent workers are spawned with their own fresh
// Driver instance per task, so in practice this still behaves as a
// single-shot conversation; the appending behavior only matters when a
// caller reuses one Driver across multiple RunTask calls.
func (d *Driver) RunTask(ctx context.Context, task string) (string, error) {
	return d.runTurn(ctx, &models.Message{Role: models.RoleUser, Content: task})
}

// runTurn appends msg to the Driver's persisted history, drives the result
// through the selector loop until termination, then writes the loop's
// resulting history back before returning the final text.
func (d *Driver) runTurn(ctx context.Context, msg *models.Message) (string, error) {
	d.mu.Lock()
	d.teamActive = true
	history := append(d.history, msg)
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.teamActive = false
		d.mu.Unlock()
	}()

	finalText, finalHistory, err := d.loopUntilTerminate(ctx, history)

	d.mu.Lock()
	d.history = finalHistory
	d.mu.Unlock()

	if d.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		d.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	}
	return finalText, err
}

// loopUntilTerminate repeatedly resolves the next speaker and steps it,
// folding in any system messages queued while the team was active, until
// the selector signals termination or a cap is hit. It returns the history
// as it stood when the loop ended, so the caller can persist it.
func (d *Driver) loopUntilTerminate(ctx context.Context, history []*models.Message) (string, []*models.Message, error) {
	state := selectorState{}
	var eventLog []StreamEvent
	toolIterations := 0

	for {
		if err := ctx.Err(); err != nil {
			return state.finalText, history, err
		}

		if len(history) >= d.cfg.MaxMessages {
			d.ui.PrintWarning(fmt.Sprintf("ending turn: conversation reached %d messages", d.cfg.MaxMessages))
			return state.finalText, history, nil
		}

		for _, extra := range d.drainPending() {
			history = append(history, &models.Message{Role: models.RoleSystem, Content: extra})
			d.ui.PrintInfo(extra)
			state = selectorState{}
		}

		role, terminate, ok := nextSpeaker(state)
		if !ok {
			if d.selector == nil {
				return state.finalText, history, fmt.Errorf("agent: no deterministic rule applied and no fallback RoleSelector configured")
			}
			selected, err := d.selector.SelectNext(ctx, eventLog)
			if err != nil {
				return state.finalText, history, fmt.Errorf("agent: fallback role selection failed: %w", err)
			}
			role = selected
		}
		if terminate {
			return state.finalText, history, nil
		}

		event, newHistory, err := d.step(ctx, role, history)
		if err != nil {
			if isTokenLimitError(err) {
				history = d.emergencyTruncate(history)
				d.ui.PrintWarning("context truncated after a token-limit error; not retrying this turn")
				return state.finalText, history, err
			}
			return state.finalText, history, err
		}
		history = newHistory
		eventLog = append(eventLog, event)

		state.lastSpeaker = role
		state.lastKind = event.Kind
		if event.Kind == EventTextMessage {
			state.finalText = event.Text
		}

		if event.Kind == EventToolCallExecution {
			toolIterations++
			if toolIterations >= d.cfg.MaxToolIterations {
				d.ui.PrintWarning(fmt.Sprintf("ending turn: reached %d tool-call iterations", d.cfg.MaxToolIterations))
				return state.finalText, history, nil
			}
		}
	}
}

// step runs one full model round-trip for role: calls the model, forwards
// every chunk to the UI as it is produced, and executes any resulting tool
// calls inline through approval and the result guard before returning. This
// collapses the selector's transient "tool-call requested, no result yet"
// state into a single synchronous call, since ChatCompletion resolves one
// full round-trip per invocation rather than exposing a long-lived
// generator.
func (d *Driver) step(ctx context.Context, role Role, history []*models.Message) (StreamEvent, []*models.Message, error) {
	client, model, system := d.clientFor(role)

	req := &CompletionRequest{
		Model:       model,
		System:      system,
		Messages:    history,
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	}
	if d.registry != nil {
		for _, def := range d.registry.ListDefinitions() {
			req.Tools = append(req.Tools, Tool{Name: def.Name, Description: def.Description, Schema: def.ArgumentSchema})
		}
	}

	d.ui.StartThinking(string(role) + " is thinking")
	chunks, err := client.Complete(ctx, req)
	d.ui.StopThinking()
	if err != nil {
		return StreamEvent{}, history, err
	}

	agentName := string(role)
	msg, err := drainChunks(chunks, func(c *CompletionChunk) {
		if c.Thinking != "" {
			d.ui.PrintThinking(c.Thinking)
		}
		if c.Text != "" {
			d.ui.PrintAgentMessage(c.Text, agentName)
		}
	})
	if err != nil {
		return StreamEvent{}, history, err
	}
	history = append(history, msg)

	if len(msg.ToolCalls) == 0 {
		reasoning := classifyReasoning(msg.Content)
		return StreamEvent{Kind: EventTextMessage, Role: role, Text: msg.Content, Reasoning: reasoning}, history, nil
	}

	var lastResult *models.ToolResult
	for _, call := range msg.ToolCalls {
		result := d.executeToolCall(ctx, call)
		lastResult = &result
		history = append(history, &models.Message{Role: models.RoleTool, ToolCallID: call.ID, Content: result.Content, ToolResults: []models.ToolResult{result}})
		if d.metrics != nil {
			status := "ok"
			if result.IsError {
				status = "error"
			}
			d.metrics.ToolCallsTotal.WithLabelValues(call.Name, status).Inc()
		}
	}

	return StreamEvent{Kind: EventToolCallExecution, Role: role, ToolCall: &msg.ToolCalls[len(msg.ToolCalls)-1], ToolResult: lastResult}, history, nil
}

// executeToolCall applies the approval policy, runs the tool, then applies
// the result guard. Approval decisions other than "allowed" never reach the
// registry.
func (d *Driver) executeToolCall(ctx context.Context, call models.ToolCall) models.ToolResult {
	decision, reason := d.approval.Check(call)
	switch decision {
	case ApprovalDenied:
		return models.ToolResult{ToolCallID: call.ID, Content: "tool call denied: " + reason, IsError: true}
	case ApprovalPending:
		answer, err := d.ui.GetUserInput(fmt.Sprintf("Allow tool call %q (%s)? [y/N] ", call.Name, reason))
		if err != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return models.ToolResult{ToolCallID: call.ID, Content: "tool call declined by user", IsError: true}
		}
	}

	if d.registry == nil {
		return models.ToolResult{ToolCallID: call.ID, Content: "no tool registry configured", IsError: true}
	}

	out, err := d.registry.Execute(ctx, call.Name, call.Input)
	result := models.ToolResult{ToolCallID: call.ID, Content: out}
	if err != nil {
		result.Content = err.Error()
		result.IsError = true
	}
	return d.guard.Apply(call.Name, result)
}

func (d *Driver) clientFor(role Role) (ChatCompletion, string, string) {
	if role == RolePlanner {
		return d.planner, d.cfg.PlannerModel, d.cfg.PlannerSystemPrompt
	}
	return d.coder, d.cfg.CoderModel, d.cfg.CoderSystemPrompt
}

// emergencyTruncate keeps only the most recent N messages (default 30,
// including system prompts). It is a blunt cut, not a system-preserving
// partition like compaction's — the emergency path trades conversational
// continuity for guaranteed recovery.
func (d *Driver) emergencyTruncate(history []*models.Message) []*models.Message {
	n := d.cfg.EmergencyTruncateN
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// detectSystemMessages polls the bus for the Driver's lifetime, queuing
// content for the next turn while a team is active or printing it directly
// when the conversation is idle.
func (d *Driver) detectSystemMessages(ctx context.Context) {
	defer close(d.detectDone)
	for {
		msg, ok := d.msgBus.ConsumeContext(ctx)
		if !ok {
			return
		}
		d.mu.Lock()
		active := d.teamActive
		if active {
			d.pending = append(d.pending, msg.Content)
		}
		d.mu.Unlock()
		if !active {
			d.ui.PrintInfo(msg.Content)
		}
	}
}

func (d *Driver) drainPending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil
	}
	out := d.pending
	d.pending = nil
	return out
}
