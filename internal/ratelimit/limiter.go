package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is how long Acquire sleeps between checks when the bucket is empty.
const DefaultPollInterval = 50 * time.Millisecond

// Clock abstracts time so the limiter can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Limiter implements a token bucket rate limiter expressed in requests per minute.
// The bucket starts empty and holds at most perMinute tokens.
type Limiter struct {
	perMinute    int
	clock        Clock
	pollInterval time.Duration

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithPollInterval changes how often an empty bucket is re-checked.
func WithPollInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// NewLimiter creates a limiter granting perMinute requests per minute.
// A rate of 0 disables limiting.
func NewLimiter(perMinute int, opts ...Option) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	l := &Limiter{
		perMinute:    perMinute,
		clock:        realClock{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.clock.Now()
	return l
}

// Rate returns the configured requests per minute.
func (l *Limiter) Rate() int {
	return l.perMinute
}

// Allow takes a token if one is available right now.
func (l *Limiter) Allow() bool {
	if l.perMinute == 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Acquire blocks until a token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.perMinute == 0 {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Allow() {
			return nil
		}
		if err := l.clock.Sleep(ctx, l.pollInterval); err != nil {
			return err
		}
	}
}

// TokensAvailable returns the current whole number of tokens in the bucket.
func (l *Limiter) TokensAvailable() int {
	if l.perMinute == 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()
	return int(l.tokens)
}

// refillTokens adds tokens based on elapsed time.
// Must be called with mutex held.
func (l *Limiter) refillTokens() {
	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}

	l.tokens += elapsed.Seconds() * float64(l.perMinute) / 60
	if limit := float64(l.perMinute); l.tokens > limit {
		l.tokens = limit
	}
	l.lastRefill = now
}
