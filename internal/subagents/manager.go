// Package subagents implements the Subagent Manager: spawning,
// tracking, bounding, and post-processing background agent tasks, and
// publishing their results to the Message Bus (internal/bus) for
// auto-injection into the active conversation.
package subagents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftlab/agentcore/internal/bus"
	"github.com/driftlab/agentcore/internal/tools"
)

// ErrLimitReached is returned by Spawn when max_concurrent running subagents
// are already active.
var ErrLimitReached = errors.New("subagents: max concurrent subagents reached")

// State is the lifecycle state of a Subagent.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Subagent is the record the manager owns for one spawned background task.
type Subagent struct {
	ID            string
	Label         string
	Task          string
	ParentID      string
	State         State
	Result        string
	Error         string
	CreatedAt     time.Time
	CompletedAt   time.Time
	MaxIterations int
}

// snapshot returns a value copy safe to hand to callers without exposing the
// manager's internal pointer.
func (s *Subagent) snapshot() Subagent {
	return *s
}

// TaskRunner is satisfied by a headless Agent Driver instance (internal/agent).
// Subagents depends on agent only through this interface so that agent never
// needs to import subagents back — the spawn_subagent tool itself lives in
// this package and is wired into the root tool registry by the bootstrap
// layer (cmd/agentcore).
type TaskRunner interface {
	RunTask(ctx context.Context, task string) (string, error)
}

// DriverFactory builds a headless TaskRunner scoped to one subagent: its own
// restricted tool registry view and its own max-iteration budget.
type DriverFactory func(registry *tools.Registry, label string, maxIterations int) TaskRunner

// SpawnToolName is always stripped from a subagent's effective registry,
// regardless of caller-supplied overrides — this is the invariant that
// prevents recursive spawning.
const SpawnToolName = "spawn_subagent"

// Config configures a Manager.
type Config struct {
	// MaxConcurrent bounds |running_subagents| (default 10).
	MaxConcurrent int

	// DefaultMaxIterations is used when Spawn's maxIterations argument is 0.
	DefaultMaxIterations int

	// MainOnlyTools are additional tool names hidden from every subagent's
	// registry view, beyond SpawnToolName.
	MainOnlyTools []string
}

// Manager owns the running set and result cache for spawned subagents.
type Manager struct {
	mu       sync.Mutex
	running  map[string]*Subagent
	cache    map[string]*Subagent
	runningN int

	cfg      Config
	registry *tools.Registry
	factory  DriverFactory
	bus      *bus.Bus
	events   *bus.EventLog
	logger   *slog.Logger
	now      func() time.Time

	onRunningChange func(n int)
}

// SetRunningGauge installs a callback invoked with the current running
// count after every spawn/completion. The bootstrap layer uses this to feed
// a Prometheus gauge without this package importing a metrics library
// directly.
func (m *Manager) SetRunningGauge(fn func(n int)) {
	m.mu.Lock()
	m.onRunningChange = fn
	m.mu.Unlock()
}

// New creates a Manager. registry is the parent (unrestricted) tool
// registry; each subagent worker derives its own Subset view from it.
func New(cfg Config, registry *tools.Registry, factory DriverFactory, msgBus *bus.Bus, events *bus.EventLog, logger *slog.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.DefaultMaxIterations <= 0 {
		cfg.DefaultMaxIterations = 15
	}
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = bus.NewEventLog()
	}
	return &Manager{
		running:  make(map[string]*Subagent),
		cache:    make(map[string]*Subagent),
		cfg:      cfg,
		registry: registry,
		factory:  factory,
		bus:      msgBus,
		events:   events,
		logger:   logger.With("component", "subagents"),
		now:      time.Now,
	}
}

// Spawn starts a new background worker for task. label defaults to
// "background task" when empty; maxIterations defaults to
// Config.DefaultMaxIterations when 0.
func (m *Manager) Spawn(ctx context.Context, task, label, parentID string, maxIterations int) (string, error) {
	if label == "" {
		label = "background task"
	}
	if maxIterations <= 0 {
		maxIterations = m.cfg.DefaultMaxIterations
	}

	m.mu.Lock()
	if m.runningN >= m.cfg.MaxConcurrent {
		m.mu.Unlock()
		return "", ErrLimitReached
	}
	id := newSubagentID()
	sa := &Subagent{
		ID:            id,
		Label:         label,
		Task:          task,
		ParentID:      parentID,
		State:         StateRunning,
		CreatedAt:     m.now(),
		MaxIterations: maxIterations,
	}
	m.running[id] = sa
	m.runningN++
	onChange := m.onRunningChange
	n := m.runningN
	m.mu.Unlock()
	if onChange != nil {
		onChange(n)
	}

	m.events.Append(bus.SubagentEvent{SubagentID: id, ParentID: parentID, Type: bus.SubagentEventSpawned, Payload: task})
	m.logger.Info("subagent spawned", "id", id, "label", label, "parent_id", parentID)

	go m.run(ctx, sa)

	return id, nil
}

// run executes the worker procedure. It always terminates the subagent's
// state exactly once, and always publishes a SystemMessage.
func (m *Manager) run(ctx context.Context, sa *Subagent) {
	result, err := m.runSafely(ctx, sa)
	if err != nil {
		m.complete(sa, "", err)
		return
	}
	m.complete(sa, result, nil)
}

// runSafely recovers from a panic during worker setup or execution so that
// a programming error in a subagent never crashes the host process.
func (m *Manager) runSafely(ctx context.Context, sa *Subagent) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subagent worker panicked: %v", r)
		}
	}()

	scoped := m.registry.Subset(append([]string{SpawnToolName}, m.cfg.MainOnlyTools...)...)
	driver := m.factory(scoped, sa.Label, sa.MaxIterations)
	return driver.RunTask(ctx, sa.Task)
}

func (m *Manager) complete(sa *Subagent, result string, runErr error) {
	m.mu.Lock()
	sa.CompletedAt = m.now()
	if runErr != nil {
		sa.State = StateFailed
		sa.Error = runErr.Error()
	} else {
		sa.State = StateCompleted
		sa.Result = result
	}
	delete(m.running, sa.ID)
	m.runningN--
	m.cache[sa.ID] = sa
	snapshot := sa.snapshot()
	onChange := m.onRunningChange
	n := m.runningN
	m.mu.Unlock()
	if onChange != nil {
		onChange(n)
	}

	if runErr != nil {
		m.events.Append(bus.SubagentEvent{SubagentID: sa.ID, ParentID: sa.ParentID, Type: bus.SubagentEventFailed, Payload: runErr.Error()})
		m.logger.Warn("subagent failed", "id", sa.ID, "label", sa.Label, "error", runErr)
	} else {
		m.events.Append(bus.SubagentEvent{SubagentID: sa.ID, ParentID: sa.ParentID, Type: bus.SubagentEventCompleted, Payload: result})
		m.logger.Info("subagent completed", "id", sa.ID, "label", sa.Label)
	}

	m.bus.Publish(formatResultMessage(snapshot))
}

// formatResultMessage renders the SystemMessage body so the driver can
// inject it as a natural continuation of the conversation.
func formatResultMessage(sa Subagent) bus.SystemMessage {
	if sa.State == StateFailed {
		return bus.SystemMessage{
			Type:     bus.MessageTypeSubagentResult,
			SenderID: "subagent:" + sa.ID,
			Content: fmt.Sprintf(
				"[Background Task '%s' failed]\nTask: %s\nResult:\n%s\nPlease summarize this naturally for the user in 1-2 sentences. Do not mention \"subagent\" or task ids.",
				sa.Label, sa.Task, sa.Error,
			),
			Metadata: map[string]any{"subagent_id": sa.ID, "state": string(sa.State)},
		}
	}
	return bus.SystemMessage{
		Type:     bus.MessageTypeSubagentResult,
		SenderID: "subagent:" + sa.ID,
		Content: fmt.Sprintf(
			"[Background Task '%s' completed successfully]\nTask: %s\nResult:\n%s\nPlease summarize this naturally for the user in 1-2 sentences. Do not mention \"subagent\" or task ids.",
			sa.Label, sa.Task, sa.Result,
		),
		Metadata: map[string]any{"subagent_id": sa.ID, "state": string(sa.State)},
	}
}

// StatusResult is returned by Status.
type StatusResult struct {
	Subagent
	Found bool
}

// Status returns the current record for id, checking the running set first
// and falling back to the result cache.
func (m *Manager) Status(id string) StatusResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sa, ok := m.running[id]; ok {
		return StatusResult{Subagent: sa.snapshot(), Found: true}
	}
	if sa, ok := m.cache[id]; ok {
		return StatusResult{Subagent: sa.snapshot(), Found: true}
	}
	return StatusResult{Found: false}
}

// ListRunning returns a snapshot of every currently running subagent.
func (m *Manager) ListRunning() []Subagent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subagent, 0, len(m.running))
	for _, sa := range m.running {
		out = append(out, sa.snapshot())
	}
	return out
}

// RunningCount returns |running_subagents|.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningN
}

func newSubagentID() string {
	return uuid.NewString()[:8]
}
