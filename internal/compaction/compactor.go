// Package compaction implements the Context Compressor: replacing an
// old prefix of a conversation with a model-generated summary once the
// Token Accountant decides compression is due.
package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftlab/agentcore/internal/tokens"
	"github.com/driftlab/agentcore/pkg/models"
)

// SummaryClient generates a prose summary of formatted conversation text. It
// is satisfied by a thin adapter over the driver's ChatCompletion capability
// (internal/agent); compaction does not depend on the agent package to avoid
// an import cycle.
type SummaryClient interface {
	Summarize(ctx context.Context, systemPrompt, conversation string, temperature float64, maxOutputTokens int) (string, error)
}

// Config tunes when and how compaction runs.
type Config struct {
	// Threshold is the ShouldCompress fraction (default 0.80).
	Threshold float64

	// KeepRecent is how many of the most recent non-system messages are
	// left untouched (default 20).
	KeepRecent int

	// SummarizerSystemPrompt is the system prompt used for the dedicated
	// summarization call.
	SummarizerSystemPrompt string

	// Temperature and MaxOutputTokens bound the summarization call
	// (temperature ≈ 0.3, cap ≈ 2000 tokens by default).
	Temperature     float64
	MaxOutputTokens int
}

// DefaultConfig returns the package's recommended defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:  0.80,
		KeepRecent: 20,
		SummarizerSystemPrompt: "You summarize a software engineering conversation concisely. " +
			"Preserve decisions made, tool calls executed and their outcomes, and the current " +
			"state of the task so the conversation can continue seamlessly from your summary.",
		Temperature:     0.3,
		MaxOutputTokens: 2000,
	}
}

// CompressedMetadataKey marks a message produced by compaction.
const CompressedMetadataKey = "compressed"

// Compressor drives the compaction algorithm: detect, summarize, splice.
type Compressor struct {
	accountant *tokens.Accountant
	client     SummaryClient
	cfg        Config
	logger     *slog.Logger
}

// New creates a Compressor. Zero-valued Config fields take DefaultConfig's
// values. A nil logger defaults to slog.Default().
func New(accountant *tokens.Accountant, client SummaryClient, cfg Config, logger *slog.Logger) *Compressor {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = def.KeepRecent
	}
	if cfg.SummarizerSystemPrompt == "" {
		cfg.SummarizerSystemPrompt = def.SummarizerSystemPrompt
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = def.MaxOutputTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{accountant: accountant, client: client, cfg: cfg, logger: logger.With("component", "compaction")}
}

// MaybeCompress returns messages unchanged (same slice, by identity) unless
// compression is due and there is something to compress, in which case it
// returns a strictly shorter (in token count) replacement. Summarization
// failures never propagate to the caller: they are logged and replaced with
// a sentinel stub message.
func (c *Compressor) MaybeCompress(ctx context.Context, messages []*models.Message, model string) []*models.Message {
	if !c.accountant.ShouldCompress(messages, model, c.cfg.Threshold) {
		return messages
	}

	var system, rest []*models.Message
	for _, m := range messages {
		if m.IsSystem() {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}
	if len(rest) <= c.cfg.KeepRecent {
		return messages
	}

	cut := len(rest) - c.cfg.KeepRecent
	old, recent := rest[:cut], rest[cut:]

	summary, err := c.summarize(ctx, old, model)
	if err != nil {
		c.logger.Warn("summarization failed, falling back to sentinel", "error", err, "messages_removed", len(old))
		summary = &models.Message{
			ID:      "compaction-fallback",
			Role:    models.RoleSystem,
			Content: fmt.Sprintf("[%d messages removed due to context limits]", len(old)),
		}
	}

	out := make([]*models.Message, 0, len(system)+1+len(recent))
	out = append(out, system...)
	out = append(out, summary)
	out = append(out, recent...)

	before := c.accountant.Count(messages, model)
	after := c.accountant.Count(out, model)
	if after >= before {
		c.logger.Warn("compaction did not reduce token count, keeping original", "before", before, "after", after)
		return messages
	}
	return out
}

func (c *Compressor) summarize(ctx context.Context, old []*models.Message, model string) (*models.Message, error) {
	if c.client == nil {
		return nil, fmt.Errorf("compaction: no summary client configured")
	}
	conversation := formatForSummary(old)
	summary, err := c.client.Summarize(ctx, c.cfg.SummarizerSystemPrompt, conversation, c.cfg.Temperature, c.cfg.MaxOutputTokens)
	if err != nil {
		return nil, err
	}
	return &models.Message{
		ID:   "compaction-summary",
		Role: models.RoleSystem,
		Content: fmt.Sprintf("[CONVERSATION SUMMARY — %d messages compressed]\n\n%s", len(old), summary),
		Metadata: map[string]any{CompressedMetadataKey: true},
	}, nil
}

// formatForSummary renders messages as "[role]: content" lines.
func formatForSummary(messages []*models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m == nil {
			continue
		}
		fmt.Fprintf(&b, "[%s]: %s\n", m.Role, m.Content)
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&b, "  [called tool %s]\n", tc.Name)
		}
		for _, tr := range m.ToolResults {
			status := "ok"
			if tr.IsError {
				status = "error"
			}
			fmt.Fprintf(&b, "  [tool result (%s)]: %s\n", status, truncate(tr.Content, 200))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
