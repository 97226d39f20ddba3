package remote

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetrySource is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetrySource struct {
	inner  StatusSource
	config RetryConfig
}

// WithRetry wraps a StatusSource with retry logic.
func WithRetry(s StatusSource, cfg RetryConfig) StatusSource {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetrySource{inner: s, config: cfg}
}

func (r *RetrySource) Statuses(ctx context.Context) (Statuses, error) {
	var lastErr error

	for attempt := range r.config.MaxAttempts {
		st, err := r.inner.Statuses(ctx)
		if err == nil {
			return st, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return nil, err
		}

		// Last attempt; don't sleep.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		wait := r.backoff(attempt, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// shouldRetry determines if an error is retryable.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rl *ErrRateLimited
	if errors.As(err, &rl) {
		return true
	}

	// Client errors won't fix themselves.
	var st *ErrStatus
	if errors.As(err, &st) {
		return st.Transient()
	}

	// A body we can't parse is usually a login page; retrying won't help.
	var inv *ErrInvalidResponse
	if errors.As(err, &inv) {
		return false
	}

	// Other errors (network, etc.) are treated as transient.
	return true
}

// backoff computes the wait duration for the given attempt.
func (r *RetrySource) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimited
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
