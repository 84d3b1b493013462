// Package providers implements the concrete ChatCompletion backends that
// wrap vendor SDKs (Anthropic, OpenAI) behind the agent package's narrow
// capability interface. A backend here makes exactly one attempt per
// Complete call; retries and accounting are the caller's job
// (agent.AccountingClient), not the backend's.
package providers

import (
	"fmt"
	"strings"

	"github.com/driftlab/agentcore/internal/agent"
)

// wrapError classifies a raw SDK/transport error into the marker types
// agent.AccountingClient and agent.Driver inspect: a TokenLimitError routes
// to the emergency-truncation path, a TransportError is eligible for
// retry, anything else is returned as a plain, provider-prefixed error.
func wrapError(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	prefixed := fmt.Errorf("%s: model=%s: %w", provider, model, err)
	switch {
	case classifyTokenLimitError(err):
		return &agent.TokenLimitError{Err: prefixed}
	case classifyTransportError(err):
		return &agent.TransportError{Err: prefixed}
	default:
		return prefixed
	}
}

// classifyTransportError reports whether err looks like a transient,
// retry-worthy failure: rate limiting, a 5xx from the provider, a timeout,
// or a plain network error. The patterns mirror what both vendor SDKs
// surface in their error strings when the structured error type doesn't
// carry a clean status code.
func classifyTransportError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server error"), strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "service unavailable"), strings.Contains(msg, "gateway timeout"),
		strings.Contains(msg, "overloaded"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "eof"):
		return true
	default:
		return false
	}
}

// classifyTokenLimitError reports whether err indicates the request
// overran the model's context window, as opposed to a transport failure.
// Both vendors report this as a 400-class error with a distinctive message
// rather than a dedicated error type.
func classifyTokenLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "context_length_exceeded"),
		strings.Contains(msg, "maximum context length"),
		strings.Contains(msg, "context window"),
		strings.Contains(msg, "prompt is too long"),
		strings.Contains(msg, "too many tokens"),
		strings.Contains(msg, "input length") && strings.Contains(msg, "exceed"):
		return true
	default:
		return false
	}
}
