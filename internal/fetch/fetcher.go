// Package fetch pages through marketplace search results for one query,
// absorbing throttling and transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guarzo/tcgcomps/internal/ebay"
	"github.com/guarzo/tcgcomps/internal/prices"
	"github.com/guarzo/tcgcomps/internal/ratelimit"
	"github.com/guarzo/tcgcomps/internal/retry"
)

// ErrQueryAbandoned is returned when a page kept failing past the retry cap.
// The caller moves on to its next query.
var ErrQueryAbandoned = errors.New("query abandoned after repeated failures")

// Pacer gates every outgoing request.
type Pacer interface {
	Acquire(ctx context.Context) error
}

// Config controls paging and throttle handling.
type Config struct {
	PageSize      int
	MaxPages      int
	TargetSamples int
	// CooldownThreshold consecutive 429s trigger a long cooldown sleep.
	CooldownThreshold int
	Cooldown          time.Duration
	// ThrottleBackoff is the base of the short randomized wait used below the threshold.
	ThrottleBackoff time.Duration
	Filters         ebay.SearchFilters
}

// DefaultConfig returns the settings used when no flags override them.
func DefaultConfig() Config {
	return Config{
		PageSize:          ebay.MaxPageSize,
		MaxPages:          3,
		TargetSamples:     60,
		CooldownThreshold: 3,
		Cooldown:          60 * time.Second,
		ThrottleBackoff:   2 * time.Second,
	}
}

// Fetcher is shared by all workers; per-query state lives in Session.
type Fetcher struct {
	client ebay.Searcher
	pacer  Pacer
	cfg    Config
	policy retry.Policy
	clock  ratelimit.Clock
	logger logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock replaces the clock used for backoff and cooldown sleeps.
func WithClock(c ratelimit.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithRand seeds the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(f *Fetcher) { f.rng = r }
}

// NewFetcher creates a fetcher. policy bounds retries of network and 5xx
// failures per page; its Retryable predicate is replaced.
func NewFetcher(client ebay.Searcher, pacer Pacer, cfg Config, policy retry.Policy, logger logrus.FieldLogger, opts ...Option) *Fetcher {
	if cfg.PageSize <= 0 || cfg.PageSize > ebay.MaxPageSize {
		cfg.PageSize = ebay.MaxPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.CooldownThreshold <= 0 {
		cfg.CooldownThreshold = 1
	}
	policy.Retryable = ebay.IsTransient

	f := &Fetcher{
		client: client,
		pacer:  pacer,
		cfg:    cfg,
		policy: policy,
		clock:  ratelimit.RealClock(),
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the fetcher's effective settings.
func (f *Fetcher) Config() Config { return f.cfg }

// NewSession starts a session for one item searched in categoryID.
func (f *Fetcher) NewSession(categoryID string) *Session {
	return &Session{f: f, categoryID: categoryID}
}

// jitter returns a duration in [base, 2*base).
func (f *Fetcher) jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return base + time.Duration(f.rng.Int63n(int64(base)))
}

// Session holds the cooldown counter for one item's queries.
// It is used by a single goroutine.
type Session struct {
	f          *Fetcher
	categoryID string
	throttles  int
}

// ConsecutiveThrottles returns the current cooldown counter.
func (s *Session) ConsecutiveThrottles() int { return s.throttles }

// Collect pages through results for query, adding samples to acc until the
// target is reached, the page cap is hit or the results run out. It returns
// the number of pages fetched.
func (s *Session) Collect(ctx context.Context, token, query string, acc *prices.Accumulator) (int, error) {
	cfg := s.f.cfg
	offset := 0
	pages := 0
	for pages < cfg.MaxPages {
		if cfg.TargetSamples > 0 && acc.Len() >= cfg.TargetSamples {
			break
		}
		page, err := s.fetchPage(ctx, token, ebay.SearchRequest{
			Query:      query,
			CategoryID: s.categoryID,
			Limit:      cfg.PageSize,
			Offset:     offset,
			Filters:    cfg.Filters,
		})
		if err != nil {
			return pages, err
		}
		pages++
		added := acc.Add(query, page.Listings)

		s.f.logger.WithFields(logrus.Fields{
			"query":  query,
			"offset": offset,
			"listed": len(page.Listings),
			"kept":   added,
			"total":  page.Total,
		}).Trace("Fetched page")

		if !page.HasMore() {
			break
		}
		offset += cfg.PageSize
	}
	return pages, nil
}

// fetchPage retries one page through throttling and transient failures.
func (s *Session) fetchPage(ctx context.Context, token string, req ebay.SearchRequest) (*ebay.SearchPage, error) {
	cfg := s.f.cfg
	backoff := s.f.policy.NewBackoff()
	failures := 0

	for {
		if err := s.f.pacer.Acquire(ctx); err != nil {
			return nil, err
		}
		page, err := s.f.client.Search(ctx, token, req)
		if err == nil {
			s.throttles = 0
			return page, nil
		}

		var throttle *ebay.ThrottleError
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()

		case errors.As(err, &throttle):
			s.throttles++
			var wait time.Duration
			if s.throttles >= cfg.CooldownThreshold {
				wait = throttle.RetryAfter
				if wait <= 0 {
					wait = cfg.Cooldown
				}
				s.f.logger.WithFields(logrus.Fields{
					"query":     req.Query,
					"throttles": s.throttles,
					"cooldown":  wait,
				}).Warn("Marketplace throttling, cooling down")
				s.throttles = 0
			} else {
				wait = s.f.jitter(cfg.ThrottleBackoff)
			}
			if err := s.f.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}

		case s.f.policy.IsRetryable(err):
			failures++
			delay, stop := backoff.Next()
			if stop {
				return nil, fmt.Errorf("%w: %q offset %d after %d failures: %w", ErrQueryAbandoned, req.Query, req.Offset, failures, err)
			}
			s.f.logger.WithFields(logrus.Fields{
				"query":   req.Query,
				"attempt": failures,
				"delay":   delay,
			}).WithError(err).Debug("Transient search failure, retrying page")
			if err := s.f.clock.Sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return nil, err
		}
	}
}
