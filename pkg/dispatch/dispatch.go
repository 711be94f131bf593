package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimitError marks a failure caused by an upstream rate limit
// (HTTP 429 style). Rate-limit failures are retryable.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed attempt may be retried. Only
// rate-limit failures and timeouts are retryable; everything else
// propagates immediately.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Dispatcher executes arbitrary units of work subject to bounded
// concurrency, a per-attempt timeout, retry with exponential backoff, and
// a requests-per-minute ceiling. It holds no domain state beyond its
// configuration.
//
// A Dispatcher should be created using NewDispatcher.
type Dispatcher struct {
	slots      *semaphore.Weighted
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
}

// NewDispatcherParams defines the configuration parameters for creating
// a new Dispatcher.
//
// MaxConcurrent bounds the number of units of work in flight at once.
// Timeout aborts a single attempt; a timeout counts as retryable.
// MaxRetries is the number of additional attempts after the first.
// BaseDelay is the backoff delay before the first retry; it doubles on
// each subsequent retry.
// RequestsPerMinute throttles total attempts started per rolling minute;
// zero disables the throttle.
type NewDispatcherParams struct {
	MaxConcurrent     int
	Timeout           time.Duration
	MaxRetries        int
	BaseDelay         time.Duration
	RequestsPerMinute int
}

// NewDispatcher creates and returns a new Dispatcher configured with the
// provided parameters.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	maxConcurrent := params.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	maxRetries := params.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := params.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var limiter *rate.Limiter
	if params.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(params.RequestsPerMinute)/60.0), params.RequestsPerMinute)
	}

	return &Dispatcher{
		slots:      semaphore.NewWeighted(int64(maxConcurrent)),
		limiter:    limiter,
		timeout:    params.Timeout,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Do runs fn through the dispatcher and returns its result once it
// succeeds or retries are exhausted. Attempts reports how many times fn
// ran, including the successful attempt.
//
// The concurrency slot is held for the whole call, backoff waits
// included: a unit of work waiting to retry still counts against
// MaxConcurrent.
func Do[T any](ctx context.Context, d *Dispatcher, fn func(context.Context) (T, error)) (result T, attempts int, err error) {
	var zero T

	if err := d.slots.Acquire(ctx, 1); err != nil {
		return zero, 0, err
	}
	defer d.slots.Release(1)

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			delay := d.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, attempts, ctx.Err()
			}
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return zero, attempts, err
			}
		}

		attempts++
		res, err := runAttempt(ctx, d, fn)
		if err == nil {
			return res, attempts, nil
		}
		if !IsRetryable(err) || errors.Is(err, context.Canceled) {
			return zero, attempts, err
		}
		lastErr = err
	}

	return zero, attempts, lastErr
}

func runAttempt[T any](ctx context.Context, d *Dispatcher, fn func(context.Context) (T, error)) (T, error) {
	if d.timeout <= 0 {
		return fn(ctx)
	}

	aCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := fn(aCtx)
	if err != nil && aCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return res, context.DeadlineExceeded
	}
	return res, err
}
