// Package tokens implements the Token Accountant: an approximate token
// counter keyed by model, and the threshold decision that tells the Context
// Compressor (internal/compaction) when to run.
package tokens

import (
	"unicode/utf8"

	"github.com/driftlab/agentcore/pkg/models"
)

// perMessageOverhead and responsePriming mirror the fixed costs most chat
// wire formats charge per message and per response: a few units for framing
// (role, delimiters) and a small constant reserved for the model's own
// reply.
const (
	perMessageOverhead = 4
	responsePriming    = 2
)

// Limits maps a model name to its context window. Unknown models fall back
// to defaultLimit, which is intentionally conservative.
type Limits struct {
	byModel      map[string]int
	defaultLimit int
}

// defaultLimit is used for any model absent from the table.
const defaultLimit = 4096

// NewLimits builds a Limits table from a model->window map. A nil or empty
// map is valid; every model then uses defaultLimit.
func NewLimits(byModel map[string]int) *Limits {
	return &Limits{byModel: byModel, defaultLimit: defaultLimit}
}

// DefaultLimits returns the table of context windows for commonly deployed
// models, used when the caller has no per-deployment override.
func DefaultLimits() *Limits {
	return NewLimits(map[string]int{
		"claude-opus-4":       200_000,
		"claude-sonnet-4":     200_000,
		"claude-3-5-sonnet":   200_000,
		"claude-3-5-haiku":    200_000,
		"gpt-4o":              128_000,
		"gpt-4o-mini":         128_000,
		"gpt-4-turbo":         128_000,
		"gpt-3.5-turbo":       16_385,
		"deepseek-chat":       131_072,
		"deepseek-reasoner":   65_536,
		"gemini-1.5-pro":      2_000_000,
		"gemini-1.5-flash":    1_000_000,
	})
}

// Limit returns the context window for model, or the conservative default
// if model is not in the table.
func (l *Limits) Limit(model string) int {
	if l == nil {
		return defaultLimit
	}
	if n, ok := l.byModel[model]; ok && n > 0 {
		return n
	}
	return l.defaultLimit
}

// Accountant counts tokens of a message list against a model's limit using
// an Encoder suited to that family of models, and decides when compression
// is due.
type Accountant struct {
	limits  *Limits
	encoder Encoder
}

// Encoder approximates how many tokens a string costs under a given model's
// tokenizer. Implementations need not be exact — only close agreement with
// the real tokenizer, within a few percent, is required.
type Encoder interface {
	Encode(model, text string) int
}

// New creates an Accountant over the given limits table and encoder. A nil
// encoder defaults to CharEncoder, a conservative characters/4 approximation
// used by most providers' own estimators.
func New(limits *Limits, encoder Encoder) *Accountant {
	if limits == nil {
		limits = DefaultLimits()
	}
	if encoder == nil {
		encoder = CharEncoder{}
	}
	return &Accountant{limits: limits, encoder: encoder}
}

// Limit looks up the context window for model.
func (a *Accountant) Limit(model string) int {
	return a.limits.Limit(model)
}

// Count approximates the token cost of messages under model: a fixed
// per-message overhead, the encoded length of role + content + any tool
// calls/results + the opaque reasoning trace, plus a small response-priming
// constant for the whole request.
func (a *Accountant) Count(messages []*models.Message, model string) int {
	total := responsePriming
	for _, m := range messages {
		if m == nil {
			continue
		}
		total += perMessageOverhead
		total += a.encoder.Encode(model, string(m.Role))
		total += a.encoder.Encode(model, m.TextForCounting())
	}
	return total
}

// ShouldCompress reports whether messages' token count has reached
// threshold (default 0.80) of model's limit.
func (a *Accountant) ShouldCompress(messages []*models.Message, model string, threshold float64) bool {
	if threshold <= 0 {
		threshold = 0.80
	}
	limit := a.Limit(model)
	if limit <= 0 {
		return false
	}
	count := a.Count(messages, model)
	return float64(count)/float64(limit) >= threshold
}

// CharEncoder approximates token count as ceil(len(text)/4), the common
// characters-per-token heuristic used when no model-specific tokenizer is
// wired. It is UTF-8 rune aware so multi-byte text isn't over-counted.
type CharEncoder struct{}

// Encode implements Encoder.
func (CharEncoder) Encode(_ string, text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
