package agent

import (
	"context"
	"time"
)

// Retrier runs an operation with bounded exponential backoff on
// transport-level errors. The delay doubles each attempt and is capped at
// MaxDelay.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRetrier builds a Retrier with sensible defaults: 3 attempts, 1s base
// delay, 30s cap.
func NewRetrier() *Retrier {
	return &Retrier{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Do runs op, retrying while isRetryable(err) is true, up to MaxAttempts
// total tries. The delay before attempt N (N>1) is BaseDelay*2^(N-2),
// capped at MaxDelay. ctx cancellation aborts waiting immediately.
func (r *Retrier) Do(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := r.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return lastErr
}
