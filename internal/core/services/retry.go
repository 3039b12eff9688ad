package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/logger"
)

// RetryPolicy bounds retries of a single capability call.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; it doubles after
	// every further failure up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter randomises each delay by +/- this fraction.
	Jitter float64

	// CallTimeout bounds each attempt. Zero means no per-call timeout.
	CallTimeout time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// RetryPolicyFromSettings builds a policy from pipeline settings.
func RetryPolicyFromSettings(p domain.PipelineSettings) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: p.MaxAttempts,
		BaseDelay:   p.BaseDelay,
		MaxDelay:    p.MaxDelay,
		Jitter:      p.Jitter,
		CallTimeout: p.CallTimeout,
	}.withDefaults()
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 10 * p.BaseDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p
}

// Delay returns the backoff before attempt n+1, given n failed attempts.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < n && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		factor := 1 + p.Jitter*(2*rand.Float64()-1) //nolint:gosec // jitter, not security
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// RetryError reports a call that failed on every attempt.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// Retry runs fn under the policy. Retryable failures (see
// domain.IsRetryable) are retried with backoff; anything else is returned
// at once. Exhaustion returns a *RetryError wrapping the last failure.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := callOnce(ctx, p.CallTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !domain.IsRetryable(err) || ctx.Err() != nil {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		var rl interface{ RetryAfter() time.Duration }
		if errors.As(err, &rl) && rl.RetryAfter() > delay {
			delay = min(rl.RetryAfter(), p.MaxDelay)
		}
		logger.Debug("%s: attempt %d/%d failed (%v), retrying in %s", op, attempt, p.MaxAttempts, err, delay)
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, &RetryError{Op: op, Attempts: p.MaxAttempts, Err: lastErr}
}

func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
