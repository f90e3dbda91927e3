// Command tcgcomps refreshes trading-card market prices from active marketplace listings.
//
// Usage:
//
//	tcgcomps --game pokemon --limit 500
//	tcgcomps --game all --schedule "0 */6 * * *"
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/guarzo/tcgcomps/internal/config"
	"github.com/guarzo/tcgcomps/internal/ebay"
	"github.com/guarzo/tcgcomps/internal/fetch"
	"github.com/guarzo/tcgcomps/internal/logging"
	"github.com/guarzo/tcgcomps/internal/pipeline"
	"github.com/guarzo/tcgcomps/internal/query"
	"github.com/guarzo/tcgcomps/internal/ratelimit"
	"github.com/guarzo/tcgcomps/internal/schedule"
	"github.com/guarzo/tcgcomps/internal/schema"
	"github.com/guarzo/tcgcomps/internal/store"
)

var version = "dev"

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "tcgcomps",
		Usage:   "Refresh trading-card prices from active eBay listings",
		Version: version,
		Flags:   config.Flags(),
		Action:  run,
	}
}

func run(c *cli.Context) error {
	cfg := config.FromContext(c)
	logger := logging.New(cfg.Logging())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns()
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		adapter: schema.NewAdapter(db, logger),
		client:  ebay.NewClient(cfg.Client()),
		creds:   ebay.NewCredentials(ebay.NewTokenSource(cfg.OAuth(), nil, cfg.RetryPolicy())),
		limiter: ratelimit.NewLimiter(cfg.RequestsPerMinute),
	}

	if cfg.Schedule == "" {
		return a.refresh(ctx)
	}
	sched, err := schedule.New(cfg.Schedule, logger, schedule.RunImmediately())
	if err != nil {
		return err
	}
	return sched.Run(ctx, a.refresh)
}

// app holds what survives between scheduled runs. The limiter and the
// credentials are shared by every worker of every run.
type app struct {
	cfg     config.Config
	logger  *logrus.Logger
	db      *pgxpool.Pool
	adapter *schema.Adapter
	client  *ebay.Client
	creds   *ebay.Credentials
	limiter *ratelimit.Limiter
}

// refresh performs one run over the selected games.
func (a *app) refresh(ctx context.Context) error {
	log := a.logger.WithField("run_id", uuid.NewString())
	start := time.Now()

	games, err := a.cfg.Games()
	if err != nil {
		return err
	}
	targets := make([]pipeline.Target, 0, len(games))
	for _, game := range games {
		profile, err := a.adapter.Resolve(ctx, game)
		if err != nil {
			return fmt.Errorf("resolve schema for %s: %w", game.Key, err)
		}
		log.WithFields(logrus.Fields{
			"game":       game.Key,
			"table":      profile.Table,
			"key":        profile.KeyColumns,
			"has_unique": profile.HasUnique,
		}).Debug("Resolved price table")
		targets = append(targets, pipeline.Target{Game: game, Profile: profile})
	}

	token, err := a.creds.Current(ctx)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	if a.cfg.ProbeRateLimit {
		a.probe(ctx, log, token)
	}

	policy := a.cfg.RetryPolicy()
	fetcher := fetch.NewFetcher(a.client, a.limiter, a.cfg.Fetch(), policy, log)
	st := store.New(a.db, policy, log)
	runner := pipeline.NewRunner(a.cfg.Pipeline(), st, a.creds, fetcher, query.NewPlanner(a.cfg.Planner()), log)

	log.WithFields(logrus.Fields{
		"games":       len(targets),
		"concurrency": a.cfg.Concurrency,
		"rpm":         a.cfg.RequestsPerMinute,
		"stale_days":  a.cfg.StaleDays,
	}).Info("Starting price refresh")

	if err := runner.RunAll(ctx, targets); err != nil {
		return err
	}
	log.WithField("duration", time.Since(start).Round(time.Second)).Info("Price refresh complete")
	return nil
}

// probe logs the remaining Browse quota. Failures are only logged.
func (a *app) probe(ctx context.Context, log logrus.FieldLogger, token string) {
	limits, err := a.client.RateLimits(ctx, token)
	if err != nil {
		log.WithError(err).Warn("Rate limit probe failed")
		return
	}
	for _, l := range limits {
		log.WithFields(logrus.Fields{
			"resource":  l.Resource,
			"limit":     l.Limit,
			"remaining": l.Remaining,
			"reset":     l.Reset,
		}).Info("Browse quota")
	}
}
