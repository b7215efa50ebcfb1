package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxDelay caps a single backoff wait when RetryPolicy.MaxDelay is unset.
const DefaultMaxDelay = 10 * time.Second

// RetryPolicy controls how Attempt repeats a failed operation.
type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first. Values
	// below zero are treated as zero.
	MaxRetries int

	// Delay is the wait before the first retry. Each later retry doubles it.
	Delay time.Duration

	// MaxDelay caps a single wait. Default: DefaultMaxDelay.
	MaxDelay time.Duration

	// Jitter adds up to this fraction of the computed delay at random.
	// Zero keeps waits deterministic.
	Jitter float64

	// Retryable decides whether err from an attempt may be retried. The
	// method is already known to be idempotent when this is called.
	// Default: DefaultRetryable.
	Retryable func(method string, err error) bool

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// retryableError is implemented by errors that know whether they are transient.
type retryableError interface {
	IsRetryable() bool
}

// DefaultRetryable retries errors that report themselves as retryable and
// never retries context cancellation or deadline expiry.
func DefaultRetryable(_ string, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re retryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	return false
}

// IsIdempotent reports whether a request with method may be safely repeated.
// Only GET, HEAD and OPTIONS qualify.
func IsIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Backoff returns the wait before retry number n (1-based):
// Delay * 2^(n-1), capped at MaxDelay, plus optional jitter.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 || p.Delay <= 0 {
		return 0
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	backoff := float64(p.Delay) * math.Pow(2.0, float64(n-1))
	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	if p.Jitter > 0 {
		backoff += rand.Float64() * backoff * p.Jitter
	}

	return time.Duration(backoff)
}

// Attempt runs fn until it succeeds, the error is not retryable, the
// method is not idempotent, or MaxRetries extra attempts have been spent.
// attempt passed to fn starts at 1. The last error from fn is returned
// unless ctx ends during a wait, in which case ctx.Err() is returned.
func Attempt[T any](ctx context.Context, p RetryPolicy, method string, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	idempotent := IsIdempotent(method)

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}

		if !idempotent || attempt > p.MaxRetries || !retryable(method, err) {
			return v, err
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			var zero T
			return zero, err
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
