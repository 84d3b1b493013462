package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/driftlab/agentcore/internal/compaction"
	"github.com/driftlab/agentcore/internal/tokens"
)

// TransportError marks an error as a transport-level failure eligible for
// the retry wrapper's bounded exponential backoff. Provider implementations
// wrap their own network/5xx errors in this type.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func isTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// TokenLimitError marks a provider rejection caused by exceeding the
// model's context window despite compression, the trigger for an emergency
// truncation pass.
type TokenLimitError struct {
	Err error
}

func (e *TokenLimitError) Error() string { return "token limit: " + e.Err.Error() }
func (e *TokenLimitError) Unwrap() error { return e.Err }

func isTokenLimitError(err error) bool {
	var tle *TokenLimitError
	return errors.As(err, &tle)
}

// AccountingClient wraps a raw ChatCompletion backend with accounting: before
// every call it runs the Token Accountant and Context Compressor over the
// outgoing message list, and retries transport-level failures with bounded
// exponential backoff via Retrier. Neither the accountant nor the compressor
// is visible to the Driver directly; it only ever talks to a ChatCompletion.
type AccountingClient struct {
	backend    ChatCompletion
	accountant *tokens.Accountant
	compressor *compaction.Compressor
	retrier    *Retrier
	metrics    *Metrics
	logger     *slog.Logger
}

// NewAccountingClient builds the wrapper. compressor may be nil to skip
// compaction (used by tests that only exercise retry/accounting).
func NewAccountingClient(backend ChatCompletion, accountant *tokens.Accountant, compressor *compaction.Compressor, retrier *Retrier, metrics *Metrics, logger *slog.Logger) *AccountingClient {
	if retrier == nil {
		retrier = NewRetrier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountingClient{
		backend:    backend,
		accountant: accountant,
		compressor: compressor,
		retrier:    retrier,
		metrics:    metrics,
		logger:     logger.With("component", "agent", "provider", backend.Name()),
	}
}

func (c *AccountingClient) Name() string { return c.backend.Name() }

// Complete runs the token accountant and context compressor over
// req.Messages, then calls the backend with retry. The channel it returns is
// the backend's own stream, forwarded unmodified once the call has been
// accepted (retries happen before the first chunk is produced, never
// mid-stream).
func (c *AccountingClient) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if c.compressor != nil {
		before := len(req.Messages)
		req.Messages = c.compressor.MaybeCompress(ctx, req.Messages, req.Model)
		if c.metrics != nil && len(req.Messages) != before {
			c.metrics.CompactionsTotal.Inc()
		}
	}

	var chunks <-chan *CompletionChunk
	err := c.retrier.Do(ctx, isTransportError, func() error {
		var callErr error
		chunks, callErr = c.backend.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		c.logger.Warn("model call failed", "error", err)
		return nil, err
	}
	return chunks, nil
}
