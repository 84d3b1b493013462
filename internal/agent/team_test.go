package agent

import "testing"

func TestNextSpeaker_StartGoesToPlanner(t *testing.T) {
	role, terminate, ok := nextSpeaker(selectorState{})
	if !ok || terminate || role != RolePlanner {
		t.Fatalf("got (%s, %v, %v), want (planner, false, true)", role, terminate, ok)
	}
}

func TestNextSpeaker_PlannerAlwaysHandsToCoder(t *testing.T) {
	role, terminate, ok := nextSpeaker(selectorState{lastSpeaker: RolePlanner})
	if !ok || terminate || role != RoleCoder {
		t.Fatalf("got (%s, %v, %v), want (coder, false, true)", role, terminate, ok)
	}
}

func TestNextSpeaker_PendingToolCallKeepsCoderSpeaking(t *testing.T) {
	role, terminate, ok := nextSpeaker(selectorState{lastSpeaker: RoleCoder, pendingToolCall: true})
	if !ok || terminate || role != RoleCoder {
		t.Fatalf("got (%s, %v, %v), want (coder, false, true)", role, terminate, ok)
	}
}

func TestNextSpeaker_ToolResultReturnsToPlanner(t *testing.T) {
	role, terminate, ok := nextSpeaker(selectorState{lastSpeaker: RoleCoder, lastKind: EventToolCallExecution})
	if !ok || terminate || role != RolePlanner {
		t.Fatalf("got (%s, %v, %v), want (planner, false, true)", role, terminate, ok)
	}
}

func TestNextSpeaker_FinalAnswerWithoutSentinelContinuesToPlanner(t *testing.T) {
	role, terminate, ok := nextSpeaker(selectorState{lastSpeaker: RoleCoder, lastKind: EventTextMessage, finalText: "Here is the fix."})
	if !ok || terminate || role != RolePlanner {
		t.Fatalf("got (%s, %v, %v), want (planner, false, true)", role, terminate, ok)
	}
}

func TestNextSpeaker_FinalAnswerWithSentinelTerminates(t *testing.T) {
	_, terminate, ok := nextSpeaker(selectorState{lastSpeaker: RoleCoder, lastKind: EventTextMessage, finalText: "All done. TERMINATE"})
	if !ok || !terminate {
		t.Fatalf("terminate = %v, ok = %v, want (true, true)", terminate, ok)
	}
}

func TestNextSpeaker_UnrecognizedStateFallsBackToSelector(t *testing.T) {
	_, _, ok := nextSpeaker(selectorState{lastSpeaker: RoleCoder, lastKind: EventModelStreamingChunk})
	if ok {
		t.Fatal("expected no deterministic rule to apply for a bare streaming-chunk state")
	}
}

func TestClassifyReasoning_ShortPrefixedTextIsReasoning(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I'll check the config file first.", true},
		{"Let me look at the test output.", true},
		{"Next, I will update the handler.", true},
		{"The fix adds a nil check before dereferencing the pointer.", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := classifyReasoning(tc.text); got != tc.want {
			t.Errorf("classifyReasoning(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestClassifyReasoning_LongTextIsNeverReasoningEvenWithPrefix(t *testing.T) {
	long := "I'll " + stringsRepeat("x", 200)
	if classifyReasoning(long) {
		t.Fatal("long text should never classify as reasoning regardless of prefix")
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s[0])
	}
	return string(out)
}
