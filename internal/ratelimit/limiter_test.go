package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_FirstAcquireWaits(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(60, WithClock(clock))
	start := clock.Now()

	if limiter.Allow() {
		t.Fatal("bucket should start empty")
	}

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	waited := clock.Now().Sub(start)
	if waited < time.Second {
		t.Errorf("first Acquire waited %v, expected at least 1s at 60/min", waited)
	}
	if waited > time.Second+DefaultPollInterval {
		t.Errorf("first Acquire waited %v, expected about 1s", waited)
	}
}

func TestLimiter_WindowBound(t *testing.T) {
	clock := newFakeClock()
	const rate = 60
	limiter := NewLimiter(rate, WithClock(clock), WithPollInterval(10*time.Millisecond))

	// Let a partial balance build up before the measured window.
	clock.Advance(500 * time.Millisecond)

	windowStart := clock.Now()
	granted := 0
	for clock.Now().Sub(windowStart) < time.Minute {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		if clock.Now().Sub(windowStart) < time.Minute {
			granted++
		}
	}

	if granted > rate+1 {
		t.Errorf("granted %d acquisitions in one minute, expected at most %d", granted, rate+1)
	}
	if granted < rate-1 {
		t.Errorf("granted %d acquisitions in one minute, expected close to %d", granted, rate)
	}
}

func TestLimiter_TokenRefillCapped(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(30, WithClock(clock))

	clock.Advance(10 * time.Second)
	if got := limiter.TokensAvailable(); got != 5 {
		t.Errorf("expected 5 tokens after 10s at 30/min, got %d", got)
	}

	clock.Advance(10 * time.Minute)
	if got := limiter.TokensAvailable(); got != 30 {
		t.Errorf("expected bucket capped at 30, got %d", got)
	}
}

func TestLimiter_SubMillisecondPolling(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(60, WithClock(clock))

	granted := 0
	for elapsed := time.Duration(0); elapsed < 10*time.Second; elapsed += 500 * time.Microsecond {
		clock.Advance(500 * time.Microsecond)
		if limiter.Allow() {
			granted++
		}
	}

	if granted < 9 || granted > 10 {
		t.Errorf("expected ~10 grants in 10s at 60/min, got %d", granted)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0)
	for i := 0; i < 1000; i++ {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Fatalf("disabled limiter should never block: %v", err)
		}
	}
	if !limiter.Allow() {
		t.Error("disabled limiter should always allow")
	}
}

func TestLimiter_AcquireHonoursContext(t *testing.T) {
	limiter := NewLimiter(1, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if err == nil {
		t.Fatal("expected context error while bucket is empty")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Acquire took %v after cancellation", elapsed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiter(120, WithClock(clock))
	clock.Advance(5 * time.Second) // 10 tokens

	const numGoroutines = 10
	const requestsPerGoroutine = 5

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < requestsPerGoroutine; j++ {
				if limiter.Allow() {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("expected exactly 10 grants from a 10 token bucket, got %d", allowed)
	}
}
