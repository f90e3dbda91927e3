// Package config holds the run settings and maps them to and from CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guarzo/tcgcomps/internal/ebay"
	"github.com/guarzo/tcgcomps/internal/fetch"
	"github.com/guarzo/tcgcomps/internal/logging"
	"github.com/guarzo/tcgcomps/internal/model"
	"github.com/guarzo/tcgcomps/internal/pipeline"
	"github.com/guarzo/tcgcomps/internal/query"
	"github.com/guarzo/tcgcomps/internal/retry"
)

// Config is everything a run needs.
type Config struct {
	Game      string
	Limit     int
	StaleDays int

	Concurrency       int
	ItemTimeout       time.Duration
	MaxPages          int
	PageSize          int
	TargetSamples     int
	RequestsPerMinute int
	CooldownThreshold int
	Cooldown          time.Duration
	MaxRetries        int

	ASCIIFirst        bool
	AliasExpansion    bool
	FallbackThreshold int

	DeliveryCountry string
	Currency        string
	BuyingOptions   []string

	ProbeRateLimit bool
	Touch          bool
	ProgressEvery  time.Duration
	Schedule       string

	Debug    bool
	Trace    bool
	JSONLogs bool

	DatabaseURL string
	// DBMaxConns of 0 sizes the pool to Concurrency + 2.
	DBMaxConns int

	EbayClientID     string
	EbayClientSecret string
	EbayScope        string
	Marketplace      string
	EbayAPIURL       string
	EbayAuthURL      string
}

// Default returns the settings used when nothing is overridden.
func Default() Config {
	return Config{
		Game:              "all",
		StaleDays:         7,
		Concurrency:       4,
		ItemTimeout:       90 * time.Second,
		MaxPages:          3,
		PageSize:          ebay.MaxPageSize,
		TargetSamples:     60,
		RequestsPerMinute: 60,
		CooldownThreshold: 3,
		Cooldown:          60 * time.Second,
		MaxRetries:        3,
		AliasExpansion:    true,
		FallbackThreshold: 10,
		DeliveryCountry:   "US",
		Currency:          "USD",
		BuyingOptions:     []string{"FIXED_PRICE"},
		Touch:             true,
		ProgressEvery:     30 * time.Second,
		Marketplace:       "EBAY_US",
		EbayScope:         ebay.DefaultScope,
		EbayAPIURL:        ebay.DefaultAPIURL,
		EbayAuthURL:       ebay.DefaultAuthURL,
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := model.SelectGames(c.Game); err != nil {
		errs = append(errs, err)
	}
	if c.Limit < 0 {
		errs = append(errs, errors.New("limit must not be negative"))
	}
	if c.StaleDays < 0 {
		errs = append(errs, errors.New("stale-days must not be negative"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be at least 1"))
	}
	if c.ItemTimeout <= 0 {
		errs = append(errs, errors.New("item-timeout must be positive"))
	}
	if c.MaxPages < 1 {
		errs = append(errs, errors.New("max-pages must be at least 1"))
	}
	if c.PageSize < 1 || c.PageSize > ebay.MaxPageSize {
		errs = append(errs, fmt.Errorf("page-size must be between 1 and %d", ebay.MaxPageSize))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("rpm must not be negative"))
	}
	if c.CooldownThreshold < 1 {
		errs = append(errs, errors.New("cooldown-threshold must be at least 1"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max-retries must not be negative"))
	}
	if c.DBMaxConns != 0 && c.DBMaxConns < c.Concurrency {
		errs = append(errs, fmt.Errorf("db-max-conns (%d) must be at least concurrency (%d)", c.DBMaxConns, c.Concurrency))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database-url is required"))
	}
	if c.EbayClientID == "" || c.EbayClientSecret == "" {
		errs = append(errs, errors.New("ebay-client-id and ebay-client-secret are required"))
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Games returns the games selected by c.Game.
func (c Config) Games() ([]model.Game, error) {
	return model.SelectGames(c.Game)
}

// MaxConns is the database pool size for c.
func (c Config) MaxConns() int32 {
	if c.DBMaxConns > 0 {
		return int32(c.DBMaxConns)
	}
	return int32(c.Concurrency + 2)
}

// RetryPolicy is shared by the token exchange, the fetcher and the store.
func (c Config) RetryPolicy() retry.Policy {
	p := retry.Default(nil)
	p.MaxRetries = c.MaxRetries
	return p
}

// Fetch returns the fetcher settings.
func (c Config) Fetch() fetch.Config {
	fc := fetch.DefaultConfig()
	fc.PageSize = c.PageSize
	fc.MaxPages = c.MaxPages
	fc.TargetSamples = c.TargetSamples
	fc.CooldownThreshold = c.CooldownThreshold
	fc.Cooldown = c.Cooldown
	fc.Filters = ebay.SearchFilters{
		DeliveryCountry: c.DeliveryCountry,
		PriceCurrency:   c.Currency,
		BuyingOptions:   c.BuyingOptions,
	}
	return fc
}

// Planner returns the query planner options.
func (c Config) Planner() query.Options {
	return query.Options{ASCIIFirst: c.ASCIIFirst, AliasExpansion: c.AliasExpansion}
}

// Pipeline returns the runner settings.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Workers:           c.Concurrency,
		ItemTimeout:       c.ItemTimeout,
		StaleDays:         c.StaleDays,
		Limit:             c.Limit,
		FallbackThreshold: c.FallbackThreshold,
		Touch:             c.Touch,
		Currency:          c.Currency,
		ProgressEvery:     c.ProgressEvery,
	}
}

// OAuth returns the token exchange settings.
func (c Config) OAuth() ebay.OAuthConfig {
	return ebay.OAuthConfig{
		ClientID:     c.EbayClientID,
		ClientSecret: c.EbayClientSecret,
		Scope:        c.EbayScope,
		TokenURL:     c.EbayAuthURL,
	}
}

// Client returns the Browse client settings.
func (c Config) Client() ebay.ClientConfig {
	return ebay.ClientConfig{
		BaseURL:     c.EbayAPIURL,
		Marketplace: c.Marketplace,
	}
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Options {
	return logging.Options{Debug: c.Debug, Trace: c.Trace, JSON: c.JSONLogs}
}

func env(name string) []string {
	return []string{"TCGCOMPS_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}
