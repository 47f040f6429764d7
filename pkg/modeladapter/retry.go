package modeladapter

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryOpts configures a Retrier.
type RetryOpts struct {
	MaxRetries int           // Max retries on 429 (0 disables retrying).
	BaseDelay  time.Duration // Initial backoff delay (default 1s).
}

// Retrier re-runs an operation that failed with a RateLimitError, using
// exponential backoff with jitter. Any other error is returned immediately.
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// randFunc returns a random float64 in [0,1); used for jitter. Defaults to rand.Float64.
	randFunc func() float64
}

// NewRetrier creates a Retrier from opts.
func NewRetrier(opts RetryOpts) *Retrier {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return &Retrier{
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		sleepFunc:  contextSleep,
		randFunc:   rand.Float64,
	}
}

// SetSleepFunc overrides the sleep function (for testing).
func (r *Retrier) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the random number generator (for testing).
func (r *Retrier) SetRandFunc(fn func() float64) { r.randFunc = fn }

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter applies ±25% random jitter to a duration.
func (r *Retrier) jitter(d time.Duration) time.Duration {
	// Scale factor in [0.75, 1.25).
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// Do runs fn, retrying on RateLimitError up to MaxRetries times. The last
// error is returned once retries are exhausted.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := range r.maxRetries + 1 {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) || attempt >= r.maxRetries {
			return err
		}

		// Compute backoff: baseDelay * 2^attempt, but use RetryAfter if larger. Apply jitter.
		backoff := r.jitter(max(
			r.baseDelay*time.Duration(math.Pow(2, float64(attempt))), //nolint:mnd // exponential backoff formula
			rle.RetryAfter,
		))

		if sleepErr := r.sleepFunc(ctx, backoff); sleepErr != nil {
			return sleepErr
		}
	}

	return err
}
