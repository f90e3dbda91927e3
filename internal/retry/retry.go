// Package retry holds the single retry policy shared by the token exchange,
// the listing fetcher and the persistence layer.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bundles a retry cap, a backoff shape and a retryable predicate.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the first backoff; each retry roughly doubles it.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff.
	MaxDelay time.Duration
	// JitterPercent randomizes each backoff by +/- that percentage.
	JitterPercent uint64
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
	// OnRetry, if set, is called before sleeping for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns a policy with sensible values for HTTP calls.
func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxRetries:    3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		JitterPercent: 25,
		Retryable:     retryable,
	}
}

// NewBackoff returns a fresh backoff sequence that stops after MaxRetries.
func (p Policy) NewBackoff() goretry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := goretry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.JitterPercent > 0 {
		b = goretry.WithJitterPercent(p.JitterPercent, b)
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return goretry.WithMaxRetries(uint64(retries), b)
}

// IsRetryable applies the policy predicate; a nil predicate retries nothing.
func (p Policy) IsRetryable(err error) bool {
	return err != nil && p.Retryable != nil && p.Retryable(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, the backoff
// is exhausted or ctx is done. The last error from fn is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var (
		attempt int
		last    error
	)
	b := p.NewBackoff()
	if p.OnRetry != nil {
		b = notifyingBackoff(b, func(d time.Duration) {
			p.OnRetry(attempt, d, last)
		})
	}

	err := goretry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		last = err
		if p.IsRetryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
	if err != nil && last != nil && ctx.Err() == nil {
		return last
	}
	return err
}

func notifyingBackoff(next goretry.Backoff, notify func(time.Duration)) goretry.Backoff {
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if !stop {
			notify(d)
		}
		return d, stop
	})
}
