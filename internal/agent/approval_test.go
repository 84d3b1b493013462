package agent

import (
	"testing"

	"github.com/driftlab/agentcore/pkg/models"
)

func TestApprovalChecker_DenylistWinsOverAllowlist(t *testing.T) {
	c := NewApprovalChecker(&ApprovalPolicy{
		Allowlist: []string{"shell"},
		Denylist:  []string{"shell"},
	})
	decision, _ := c.Check(models.ToolCall{Name: "shell"})
	if decision != ApprovalDenied {
		t.Fatalf("decision = %s, want denied", decision)
	}
}

func TestApprovalChecker_SafeBinAllowedByDefault(t *testing.T) {
	c := NewApprovalChecker(nil)
	decision, _ := c.Check(models.ToolCall{Name: "cat"})
	if decision != ApprovalAllowed {
		t.Fatalf("decision = %s, want allowed", decision)
	}
}

func TestApprovalChecker_RequireApprovalIsPending(t *testing.T) {
	c := NewApprovalChecker(&ApprovalPolicy{RequireApproval: []string{"delete_*"}, DefaultDecision: ApprovalAllowed})
	decision, _ := c.Check(models.ToolCall{Name: "delete_file"})
	if decision != ApprovalPending {
		t.Fatalf("decision = %s, want pending", decision)
	}
}

func TestApprovalChecker_DefaultDecisionAppliesWhenNoRuleMatches(t *testing.T) {
	c := NewApprovalChecker(&ApprovalPolicy{DefaultDecision: ApprovalAllowed})
	decision, _ := c.Check(models.ToolCall{Name: "read_file"})
	if decision != ApprovalAllowed {
		t.Fatalf("decision = %s, want allowed", decision)
	}
}

func TestMatchesPattern_WildcardForms(t *testing.T) {
	cases := []struct {
		patterns []string
		tool     string
		want     bool
	}{
		{[]string{"*"}, "anything", true},
		{[]string{"shell"}, "shell", true},
		{[]string{"shell"}, "shell2", false},
		{[]string{"read_*"}, "read_file", true},
		{[]string{"read_*"}, "write_file", false},
		{[]string{"*_file"}, "read_file", true},
		{[]string{"*_file"}, "read_dir", false},
	}
	for _, tc := range cases {
		if got := matchesPattern(tc.patterns, tc.tool); got != tc.want {
			t.Errorf("matchesPattern(%v, %q) = %v, want %v", tc.patterns, tc.tool, got, tc.want)
		}
	}
}
