package tokens

import (
	"strings"
	"testing"

	"github.com/driftlab/agentcore/pkg/models"
)

func buildHistory(n int, wordsPerMessage int) []*models.Message {
	msgs := make([]*models.Message, 0, n)
	word := strings.Repeat("token ", wordsPerMessage)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, &models.Message{ID: "m", Role: role, Content: word})
	}
	return msgs
}

func TestAccountant_UnknownModelUsesConservativeDefault(t *testing.T) {
	a := New(DefaultLimits(), nil)
	if got := a.Limit("some-unlisted-model"); got != defaultLimit {
		t.Fatalf("Limit = %d, want %d", got, defaultLimit)
	}
}

func TestAccountant_ShouldCompressThreshold(t *testing.T) {
	a := New(NewLimits(map[string]int{"deepseek-chat": 131_072}), nil)

	// ~166k tokens of text at ~4 chars/token.
	history := buildHistory(100, 1100)
	if !a.ShouldCompress(history, "deepseek-chat", 0.80) {
		t.Fatalf("count=%d limit=%d: expected ShouldCompress=true", a.Count(history, "deepseek-chat"), a.Limit("deepseek-chat"))
	}

	small := buildHistory(2, 10)
	if a.ShouldCompress(small, "deepseek-chat", 0.80) {
		t.Fatal("small history should not trigger compression")
	}
}

func TestAccountant_CountIncludesReasoningAndToolCalls(t *testing.T) {
	a := New(nil, nil)
	bare := []*models.Message{{ID: "1", Role: models.RoleAssistant, Content: "hi"}}
	withExtras := []*models.Message{{
		ID:        "1",
		Role:      models.RoleAssistant,
		Content:   "hi",
		Reasoning: strings.Repeat("x", 400),
	}}
	if a.Count(withExtras, "gpt-4o") <= a.Count(bare, "gpt-4o") {
		t.Fatal("reasoning trace length must be charged against the token count")
	}
	withToolCall := []*models.Message{{
		ID:        "1",
		Role:      models.RoleAssistant,
		Content:   "hi",
		ToolCalls: []models.ToolCall{{ID: "c1", Name: "search", Input: []byte(`{"query":"token accounting"}`)}},
	}}
	if a.Count(withToolCall, "gpt-4o") <= a.Count(bare, "gpt-4o") {
		t.Fatal("tool call name and arguments must be charged against the token count")
	}
}
