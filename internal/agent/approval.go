package agent

import (
	"strings"
	"sync"
	"time"

	"github.com/driftlab/agentcore/pkg/models"
)

// ApprovalDecision is the result of an approval check for a tool call.
type ApprovalDecision string

const (
	ApprovalAllowed ApprovalDecision = "allowed"
	ApprovalDenied  ApprovalDecision = "denied"
	ApprovalPending ApprovalDecision = "pending"
)

// ApprovalPolicy configures which tools execute outright, which are always
// refused, and which require an interactive yes/no before the driver runs
// them.
type ApprovalPolicy struct {
	Allowlist       []string
	Denylist        []string
	RequireApproval []string
	SafeBins        []string
	DefaultDecision ApprovalDecision
	RequestTTL      time.Duration
}

// DefaultApprovalPolicy allows a handful of read-only binaries outright and
// otherwise asks before anything not explicitly allow/deny-listed runs.
func DefaultApprovalPolicy() *ApprovalPolicy {
	return &ApprovalPolicy{
		SafeBins:        []string{"cat", "head", "tail", "wc", "sort", "uniq", "grep"},
		DefaultDecision: ApprovalPending,
		RequestTTL:      5 * time.Minute,
	}
}

// ApprovalChecker evaluates tool calls against a policy. One checker is
// shared by a driver and, when a subagent runs, by its Subset-scoped driver
// too (the policy travels with the TaskRunner, not the registry).
type ApprovalChecker struct {
	mu     sync.RWMutex
	policy *ApprovalPolicy
}

// NewApprovalChecker builds a checker; a nil policy falls back to
// DefaultApprovalPolicy.
func NewApprovalChecker(policy *ApprovalPolicy) *ApprovalChecker {
	if policy == nil {
		policy = DefaultApprovalPolicy()
	}
	return &ApprovalChecker{policy: policy}
}

// SetPolicy swaps the active policy.
func (c *ApprovalChecker) SetPolicy(policy *ApprovalPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if policy == nil {
		policy = DefaultApprovalPolicy()
	}
	c.policy = policy
}

// Check evaluates a proposed tool call and returns the decision plus a short
// human-readable reason, in priority order: denylist, allowlist, safe bins,
// require_approval, then the policy's default decision.
func (c *ApprovalChecker) Check(call models.ToolCall) (ApprovalDecision, string) {
	c.mu.RLock()
	policy := c.policy
	c.mu.RUnlock()

	name := call.Name
	switch {
	case matchesPattern(policy.Denylist, name):
		return ApprovalDenied, "tool in denylist"
	case matchesPattern(policy.Allowlist, name):
		return ApprovalAllowed, "tool in allowlist"
	case matchesPattern(policy.SafeBins, name):
		return ApprovalAllowed, "tool is a safe bin"
	case matchesPattern(policy.RequireApproval, name):
		return ApprovalPending, "tool requires approval"
	}

	if policy.DefaultDecision == "" {
		return ApprovalPending, "default policy"
	}
	return policy.DefaultDecision, "default policy"
}

// matchesPattern reports whether toolName matches any pattern in patterns.
// Supported forms: exact match, "*" (match everything), "prefix*", "*suffix".
func matchesPattern(patterns []string, toolName string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if pattern == "*" || pattern == toolName {
			return true
		}
		if len(pattern) > 1 && strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(toolName, pattern[:len(pattern)-1]) {
				return true
			}
		}
		if len(pattern) > 1 && strings.HasPrefix(pattern, "*") {
			if strings.HasSuffix(toolName, pattern[1:]) {
				return true
			}
		}
	}
	return false
}
