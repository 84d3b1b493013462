package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	r := &Retrier{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	attempts := 0
	err := r.Do(context.Background(), isTransient, func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetrier_NonRetryableErrorReturnsImmediately(t *testing.T) {
	r := &Retrier{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	attempts := 0
	err := r.Do(context.Background(), isTransient, func() error {
		attempts++
		return errFatal
	})
	if !errors.Is(err, errFatal) {
		t.Fatalf("err = %v, want errFatal", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on non-retryable error)", attempts)
	}
}

func TestRetrier_ExhaustsMaxAttempts(t *testing.T) {
	r := &Retrier{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	attempts := 0
	err := r.Do(context.Background(), isTransient, func() error {
		attempts++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want errTransient", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetrier_ContextCancellationAbortsWait(t *testing.T) {
	r := &Retrier{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, isTransient, func() error {
		attempts++
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetrier_DelayGrowsExponentiallyAndCaps(t *testing.T) {
	r := &Retrier{MaxAttempts: 4, BaseDelay: 5 * time.Millisecond, MaxDelay: 12 * time.Millisecond}
	var gaps []time.Duration
	last := time.Now()
	err := r.Do(context.Background(), isTransient, func() error {
		now := time.Now()
		gaps = append(gaps, now.Sub(last))
		last = now
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v", err)
	}
	if len(gaps) != 4 {
		t.Fatalf("len(gaps) = %d, want 4", len(gaps))
	}
	// gaps[0] is the first call (no prior wait). gaps[1] should be roughly
	// BaseDelay, gaps[2] roughly 2*BaseDelay, gaps[3] capped at MaxDelay.
	if gaps[1] < 4*time.Millisecond {
		t.Fatalf("gaps[1] = %v, want >= ~5ms", gaps[1])
	}
	if gaps[3] > 20*time.Millisecond {
		t.Fatalf("gaps[3] = %v, want capped near 12ms", gaps[3])
	}
}
