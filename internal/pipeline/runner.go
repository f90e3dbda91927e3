// Package pipeline refreshes the prices of stale catalog items, one game at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guarzo/tcgcomps/internal/concurrent"
	"github.com/guarzo/tcgcomps/internal/ebay"
	"github.com/guarzo/tcgcomps/internal/fetch"
	"github.com/guarzo/tcgcomps/internal/model"
	"github.com/guarzo/tcgcomps/internal/prices"
	"github.com/guarzo/tcgcomps/internal/progress"
	"github.com/guarzo/tcgcomps/internal/query"
	"github.com/guarzo/tcgcomps/internal/schema"
	"github.com/guarzo/tcgcomps/internal/store"
)

// Store is the persistence the runner needs.
type Store interface {
	LoadCatalog(ctx context.Context, game model.Game) ([]model.CatalogItem, error)
	ListStale(ctx context.Context, p *schema.Profile, game model.Game, days, limit int) ([]string, error)
	Upsert(ctx context.Context, p *schema.Profile, rec model.PriceRecord) error
	Touch(ctx context.Context, p *schema.Profile, id, query string) error
}

// Tokens hands out the shared marketplace token.
type Tokens interface {
	Current(ctx context.Context) (string, error)
	Refresh(ctx context.Context, stale string) (string, error)
}

// Config controls a run.
type Config struct {
	Workers     int
	ItemTimeout time.Duration
	StaleDays   int
	// Limit caps the items processed per game, 0 for all.
	Limit int
	// FallbackThreshold is the sample count below which fallback queries are tried.
	FallbackThreshold int
	// Touch writes a placeholder row before each item is fetched.
	Touch         bool
	Currency      string
	ProgressEvery time.Duration
}

// Target pairs a game with its resolved price table.
type Target struct {
	Game    model.Game
	Profile *schema.Profile
}

// Runner drives the per-item pipeline.
type Runner struct {
	cfg     Config
	store   Store
	tokens  Tokens
	fetcher *fetch.Fetcher
	planner *query.Planner
	logger  logrus.FieldLogger
}

// NewRunner creates a runner.
func NewRunner(cfg Config, st Store, tokens Tokens, fetcher *fetch.Fetcher, planner *query.Planner, logger logrus.FieldLogger) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   st,
		tokens:  tokens,
		fetcher: fetcher,
		planner: planner,
		logger:  logger,
	}
}

// job is one item moving through the pool.
type job struct {
	item    model.CatalogItem
	samples int
}

// RunAll refreshes each target in turn. A stop request is honoured between
// games; a fatal error in one game ends the run.
func (r *Runner) RunAll(ctx context.Context, targets []Target) error {
	for _, t := range targets {
		if ctx.Err() != nil {
			r.logger.WithField("game", t.Game.Key).Warn("Stop requested, skipping remaining games")
			return nil
		}
		if _, err := r.RunGame(ctx, t.Game, t.Profile); err != nil {
			return fmt.Errorf("%s: %w", t.Game.Key, err)
		}
	}
	return nil
}

// RunGame refreshes the stale items of one game. Per-item failures are
// counted as misses; only persistence failures are returned as errors.
// The end-of-game summary is always logged.
func (r *Runner) RunGame(ctx context.Context, game model.Game, p *schema.Profile) (progress.Snapshot, error) {
	logger := r.logger.WithField("game", game.Key)

	items, err := r.selectItems(ctx, game, p)
	if err != nil {
		return progress.Snapshot{}, err
	}
	logger.WithField("items", len(items)).Info("Refreshing stale prices")

	tracker := progress.NewTracker(logger, game.Key, len(items), r.cfg.ProgressEvery)

	gameCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// onResult runs on a single goroutine, so fatal needs no lock.
	var fatal error

	jobs := make([]*job, len(items))
	for i, item := range items {
		jobs[i] = &job{item: item}
	}

	pool := concurrent.NewPool[*job](concurrent.PoolConfig{Workers: r.cfg.Workers, Timeout: r.cfg.ItemTimeout})
	pool.Run(gameCtx, jobs, func(ctx context.Context, j *job) error {
		return r.processItem(ctx, game, p, j)
	}, func(res concurrent.Result[*job]) {
		itemLog := logger.WithFields(logrus.Fields{"card_id": res.Item.item.ID, "card": res.Item.item.Label()})
		switch {
		case res.Err == nil && res.Item.samples > 0:
			tracker.Record(progress.Updated)
			itemLog.WithField("samples", res.Item.samples).Debug("Price updated")
		case res.Err == nil:
			tracker.Record(progress.Empty)
			itemLog.Debug("No samples found")
		case errors.Is(res.Err, store.ErrPersistence):
			tracker.Record(progress.Missed)
			itemLog.WithError(res.Err).Error("Persistence failed, stopping game")
			if fatal == nil {
				fatal = res.Err
				cancel()
			}
		case errors.Is(res.Err, context.DeadlineExceeded):
			tracker.Record(progress.TimedOut)
			itemLog.WithField("timeout", r.cfg.ItemTimeout).Warn("Item timed out")
		default:
			tracker.Record(progress.Missed)
			itemLog.WithError(res.Err).Warn("Item failed")
		}
	})

	summary := tracker.Finish()
	if fatal != nil {
		return summary, fatal
	}
	if ctx.Err() != nil {
		logger.Warn("Stop requested, remaining items were not dispatched")
	}
	return summary, nil
}

// selectItems intersects the catalog with the stale ids, keeping stale order.
func (r *Runner) selectItems(ctx context.Context, game model.Game, p *schema.Profile) ([]model.CatalogItem, error) {
	catalog, err := r.store.LoadCatalog(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	stale, err := r.store.ListStale(ctx, p, game, r.cfg.StaleDays, 0)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}

	byID := make(map[string]model.CatalogItem, len(catalog))
	for _, item := range catalog {
		byID[item.ID] = item
	}

	items := make([]model.CatalogItem, 0, len(stale))
	for _, id := range stale {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	if r.cfg.Limit > 0 && len(items) > r.cfg.Limit {
		items = items[:r.cfg.Limit]
	}
	return items, nil
}

// processItem runs one item end to end. An authentication failure triggers
// one token refresh and one retry of the whole item.
func (r *Runner) processItem(ctx context.Context, game model.Game, p *schema.Profile, j *job) error {
	item := j.item
	primary := r.planner.Primary(game, item)

	if r.cfg.Touch {
		if err := r.store.Touch(ctx, p, item.ID, primary[0]); err != nil {
			return err
		}
	}

	token, err := r.tokens.Current(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	rec, err := r.collect(ctx, game, item, primary, token)
	if errors.Is(err, ebay.ErrUnauthorized) {
		r.logger.WithFields(logrus.Fields{"game": game.Key, "card_id": item.ID}).Info("Token rejected, refreshing")
		if token, err = r.tokens.Refresh(ctx, token); err != nil {
			return fmt.Errorf("refresh token: %w", err)
		}
		rec, err = r.collect(ctx, game, item, primary, token)
	}
	if err != nil {
		return err
	}

	if err := r.store.Upsert(ctx, p, rec); err != nil {
		return err
	}
	j.samples = rec.Stats.Sample
	return nil
}

// collect runs the primary queries, then fallbacks while samples are thin,
// and summarizes everything gathered.
func (r *Runner) collect(ctx context.Context, game model.Game, item model.CatalogItem, primary []string, token string) (model.PriceRecord, error) {
	var acc prices.Accumulator
	session := r.fetcher.NewSession(game.CategoryID)
	target := r.fetcher.Config().TargetSamples

	try := func(q string) error {
		_, err := session.Collect(ctx, token, q, &acc)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ebay.ErrUnauthorized):
			return err
		default:
			r.logger.WithFields(logrus.Fields{"game": game.Key, "card_id": item.ID, "query": q}).
				WithError(err).Debug("Query failed, moving on")
			return nil
		}
	}

	for _, q := range primary {
		if target > 0 && acc.Len() >= target {
			break
		}
		if err := try(q); err != nil {
			return model.PriceRecord{}, err
		}
	}

	if acc.Len() < r.cfg.FallbackThreshold {
		for _, q := range r.planner.Fallbacks(game, item, primary) {
			if acc.Len() >= r.cfg.FallbackThreshold || (target > 0 && acc.Len() >= target) {
				break
			}
			if err := try(q); err != nil {
				return model.PriceRecord{}, err
			}
		}
	}

	rec := model.PriceRecord{
		CardID:      item.ID,
		Stats:       prices.Summarize(acc.Samples()),
		Currency:    r.cfg.Currency,
		SampleURL:   acc.SampleURL(),
		Query:       acc.Query(),
		RefreshedAt: time.Now(),
	}
	if rec.Query == "" {
		rec.Query = primary[0]
	}
	return rec, nil
}
