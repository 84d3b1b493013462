package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/driftlab/agentcore/internal/tools"
	"github.com/driftlab/agentcore/pkg/models"
)

// scriptedClient replies with one scripted message per call to Complete,
// in order, ignoring the request content. Exhausting the script fails the
// test rather than blocking, since a well-formed turn must always stay
// within the number of scripted turns.
type scriptedClient struct {
	t       *testing.T
	name    string
	replies []*CompletionChunk
	calls   int
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if c.calls >= len(c.replies) {
		c.t.Fatalf("%s: script exhausted after %d calls", c.name, c.calls)
	}
	reply := c.replies[c.calls]
	c.calls++
	ch := make(chan *CompletionChunk, 2)
	ch <- reply
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func textReply(text string) *CompletionChunk { return &CompletionChunk{Text: text} }

func toolCallReply(id, name, args string) *CompletionChunk {
	return &CompletionChunk{ToolCall: &models.ToolCall{ID: id, Name: name, Input: json.RawMessage(args)}}
}

func echoRegistry() *tools.Registry {
	r := tools.New()
	_ = r.Register(tools.Definition{
		Name:        "echo",
		Description: "echoes its input",
		Invoke: func(ctx context.Context, args json.RawMessage) (string, error) {
			return string(args), nil
		},
	})
	return r
}

// allowAllPolicy lets every tool call through without a UI round-trip, so
// tests can exercise tool execution deterministically; NoopUI's
// GetUserInput always returns an empty string, which DefaultApprovalPolicy's
// pending-by-default behavior would otherwise read as a decline.
func allowAllPolicy() *ApprovalPolicy {
	policy := DefaultApprovalPolicy()
	policy.DefaultDecision = ApprovalAllowed
	return policy
}

func newTestDriver(planner, coder ChatCompletion, registry *tools.Registry) *Driver {
	return NewDriver(planner, coder, registry, NewApprovalChecker(allowAllPolicy()), ToolResultGuard{}, nil, NoopUI{}, nil, nil, nil, DriverConfig{})
}

func TestDriver_Run_PlannerThenCoderTerminatesOnSentinel(t *testing.T) {
	planner := &scriptedClient{t: t, name: "planner", replies: []*CompletionChunk{textReply("tell the coder to say hi")}}
	coder := &scriptedClient{t: t, name: "coder", replies: []*CompletionChunk{textReply("hi there. TERMINATE")}}

	d := newTestDriver(planner, coder, nil)
	out, err := d.Run(context.Background(), "please greet the user")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out, "hi there") {
		t.Fatalf("final text = %q, want it to contain the coder's last message", out)
	}
	if planner.calls != 1 || coder.calls != 1 {
		t.Fatalf("planner.calls=%d coder.calls=%d, want 1 and 1", planner.calls, coder.calls)
	}
}

func TestDriver_Run_CoderExecutesToolThenReturnsToPlanner(t *testing.T) {
	// Only the coder's own final message can carry the TERMINATE sentinel
	// (team.go's nextSpeaker only checks it when the coder was last to
	// speak), so the planner's second turn must still hand back to the
	// coder for the actual sign-off.
	planner := &scriptedClient{t: t, name: "planner", replies: []*CompletionChunk{
		textReply("use the echo tool"),
		textReply("looks good, wrap it up"),
	}}
	coder := &scriptedClient{t: t, name: "coder", replies: []*CompletionChunk{
		toolCallReply("call-1", "echo", `"hello"`),
		textReply("echoed hello. TERMINATE"),
	}}

	d := newTestDriver(planner, coder, echoRegistry())
	out, err := d.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out, "echoed hello") {
		t.Fatalf("final text = %q, want the coder's closing message", out)
	}
	if coder.calls != 2 {
		t.Fatalf("coder.calls = %d, want 2 (one tool call, one sign-off)", coder.calls)
	}
	if planner.calls != 2 {
		t.Fatalf("planner.calls = %d, want 2", planner.calls)
	}
}

func TestDriver_Run_ToolCallWithoutApprovalIsDenied(t *testing.T) {
	planner := &scriptedClient{t: t, name: "planner", replies: []*CompletionChunk{
		textReply("run the dangerous tool"),
		textReply("understood, wrapping up"),
	}}
	coder := &scriptedClient{t: t, name: "coder", replies: []*CompletionChunk{
		toolCallReply("call-1", "rm_everything", `{}`),
		textReply("acknowledged the denial, stopping. TERMINATE"),
	}}

	registry := tools.New()
	_ = registry.Register(tools.Definition{
		Name: "rm_everything",
		Invoke: func(ctx context.Context, args json.RawMessage) (string, error) {
			t.Fatal("denied tool call must never reach Invoke")
			return "", nil
		},
	})

	policy := allowAllPolicy()
	policy.Denylist = []string{"rm_everything"}
	d := NewDriver(planner, coder, registry, NewApprovalChecker(policy), ToolResultGuard{}, nil, NoopUI{}, nil, nil, nil, DriverConfig{})

	out, err := d.Run(context.Background(), "clean up")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(out, "stopping") {
		t.Fatalf("final text = %q", out)
	}
	if coder.calls != 2 {
		t.Fatalf("coder.calls = %d, want 2", coder.calls)
	}
}

func TestDriver_RunTask_SatisfiesHeadlessPath(t *testing.T) {
	planner := &scriptedClient{t: t, name: "planner", replies: []*CompletionChunk{textReply("go")}}
	coder := &scriptedClient{t: t, name: "coder", replies: []*CompletionChunk{textReply("done. TERMINATE")}}

	d := newTestDriver(planner, coder, nil)
	out, err := d.RunTask(context.Background(), "background work")
	if err != nil {
		t.Fatalf("RunTask returned error: %v", err)
	}
	if !strings.Contains(out, "done") {
		t.Fatalf("final text = %q", out)
	}
}

func TestDriver_Run_MaxMessagesCapEndsTurnWithoutError(t *testing.T) {
	planner := &scriptedClient{t: t, name: "planner", replies: []*CompletionChunk{
		textReply("keep going"), textReply("keep going"), textReply("keep going"),
	}}
	coder := &scriptedClient{t: t, name: "coder", replies: []*CompletionChunk{
		textReply("still working"), textReply("still working"),
	}}

	d := NewDriver(planner, coder, nil, NewApprovalChecker(DefaultApprovalPolicy()), ToolResultGuard{}, nil, NoopUI{}, nil, nil, nil, DriverConfig{MaxMessages: 3})
	_, err := d.Run(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

// recordingClient is like scriptedClient but also captures the Messages of
// every request it receives, so a test can assert on what history a later
// call saw.
type recordingClient struct {
	t       *testing.T
	name    string
	replies []*CompletionChunk
	calls   int
	seen    [][]*models.Message
}

func (c *recordingClient) Name() string { return c.name }

func (c *recordingClient) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if c.calls >= len(c.replies) {
		c.t.Fatalf("%s: script exhausted after %d calls", c.name, c.calls)
	}
	c.seen = append(c.seen, req.Messages)
	reply := c.replies[c.calls]
	c.calls++
	ch := make(chan *CompletionChunk, 2)
	ch <- reply
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func TestDriver_Run_SecondCallSeesFirstCallsHistory(t *testing.T) {
	planner := &recordingClient{t: t, name: "planner", replies: []*CompletionChunk{
		textReply("tell the coder to say hi"),
		textReply("tell the coder to say bye"),
	}}
	coder := &recordingClient{t: t, name: "coder", replies: []*CompletionChunk{
		textReply("hi there. TERMINATE"),
		textReply("bye there. TERMINATE"),
	}}

	d := newTestDriver(planner, coder, nil)
	if _, err := d.Run(context.Background(), "say hi"); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if _, err := d.Run(context.Background(), "now say bye"); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}

	// The planner's second call must see the first turn's user message and
	// the coder's first reply, not just the newly appended "now say bye".
	secondReq := planner.seen[1]
	var sawFirstUserMsg, sawFirstCoderReply bool
	for _, m := range secondReq {
		if m.Content == "say hi" {
			sawFirstUserMsg = true
		}
		if strings.Contains(m.Content, "hi there") {
			sawFirstCoderReply = true
		}
	}
	if !sawFirstUserMsg {
		t.Fatalf("planner's second request did not include the first turn's user message: %+v", secondReq)
	}
	if !sawFirstCoderReply {
		t.Fatalf("planner's second request did not include the first turn's coder reply: %+v", secondReq)
	}
	if len(d.history) == 0 {
		t.Fatalf("Driver.history is empty after two turns")
	}
}

func TestEmergencyTruncate_KeepsOnlyMostRecentN(t *testing.T) {
	d := newTestDriver(nil, nil, nil)
	d.cfg.EmergencyTruncateN = 2
	history := []*models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "one"},
		{Role: models.RoleAssistant, Content: "two"},
		{Role: models.RoleUser, Content: "three"},
	}
	out := d.emergencyTruncate(history)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Content != "two" || out[1].Content != "three" {
		t.Fatalf("unexpected truncated tail: %+v", out)
	}
}
