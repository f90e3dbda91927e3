package config

import (
	"strings"

	"github.com/urfave/cli/v2"
)

// Flags returns the CLI flags with defaults taken from Default.
// Every flag can also be set from its environment variable.
func Flags() []cli.Flag {
	d := Default()
	return []cli.Flag{
		&cli.StringFlag{Name: "game", Value: d.Game, Usage: "game to refresh (all|pokemon|mtg|yugioh)", EnvVars: env("game")},
		&cli.IntFlag{Name: "limit", Value: d.Limit, Usage: "max items per game, 0 for all stale items", EnvVars: env("limit")},
		&cli.IntFlag{Name: "stale-days", Value: d.StaleDays, Usage: "refresh prices older than this many days", EnvVars: env("stale-days")},
		&cli.IntFlag{Name: "concurrency", Value: d.Concurrency, Usage: "items processed in parallel", EnvVars: env("concurrency")},
		&cli.DurationFlag{Name: "item-timeout", Value: d.ItemTimeout, Usage: "wall-clock budget per item", EnvVars: env("item-timeout")},
		&cli.IntFlag{Name: "max-pages", Value: d.MaxPages, Usage: "max result pages per query", EnvVars: env("max-pages")},
		&cli.IntFlag{Name: "page-size", Value: d.PageSize, Usage: "results per page (max 200)", EnvVars: env("page-size")},
		&cli.IntFlag{Name: "target-samples", Value: d.TargetSamples, Usage: "stop searching an item once this many samples are found", EnvVars: env("target-samples")},
		&cli.IntFlag{Name: "rpm", Value: d.RequestsPerMinute, Usage: "marketplace requests per minute, 0 disables pacing", EnvVars: env("rpm")},
		&cli.IntFlag{Name: "cooldown-threshold", Value: d.CooldownThreshold, Usage: "consecutive 429s before a long cooldown", EnvVars: env("cooldown-threshold")},
		&cli.DurationFlag{Name: "cooldown", Value: d.Cooldown, Usage: "cooldown when Retry-After is absent", EnvVars: env("cooldown")},
		&cli.IntFlag{Name: "max-retries", Value: d.MaxRetries, Usage: "retries for transient failures", EnvVars: env("max-retries")},
		&cli.BoolFlag{Name: "ascii-first", Value: d.ASCIIFirst, Usage: "try accent-stripped queries first", EnvVars: env("ascii-first")},
		&cli.BoolFlag{Name: "alias-expansion", Value: d.AliasExpansion, Usage: "use every game alias in fallback queries", EnvVars: env("alias-expansion")},
		&cli.IntFlag{Name: "fallback-threshold", Value: d.FallbackThreshold, Usage: "try fallback queries below this many samples", EnvVars: env("fallback-threshold")},
		&cli.StringFlag{Name: "delivery-country", Value: d.DeliveryCountry, Usage: "deliveryCountry search filter", EnvVars: env("delivery-country")},
		&cli.StringFlag{Name: "currency", Value: d.Currency, Usage: "priceCurrency search filter and stored currency", EnvVars: env("currency")},
		&cli.StringFlag{Name: "buying-options", Value: strings.Join(d.BuyingOptions, ","), Usage: "comma separated buyingOptions filter, empty for any", EnvVars: env("buying-options")},
		&cli.BoolFlag{Name: "probe-rate-limit", Usage: "log the remaining Browse quota before the run", EnvVars: env("probe-rate-limit")},
		&cli.BoolFlag{Name: "touch", Value: d.Touch, Usage: "write a placeholder row before each item", EnvVars: env("touch")},
		&cli.DurationFlag{Name: "progress-every", Value: d.ProgressEvery, Usage: "interval between progress logs, 0 logs every item", EnvVars: env("progress-every")},
		&cli.StringFlag{Name: "schedule", Usage: "cron spec; when set the refresh repeats on this schedule", EnvVars: env("schedule")},
		&cli.BoolFlag{Name: "debug", Usage: "debug logging", EnvVars: env("debug")},
		&cli.BoolFlag{Name: "trace", Usage: "trace logging, including every page fetched", EnvVars: env("trace")},
		&cli.BoolFlag{Name: "json-logs", Usage: "log JSON lines", EnvVars: env("json-logs")},
		&cli.StringFlag{Name: "database-url", Usage: "Postgres connection string", EnvVars: []string{"DATABASE_URL"}},
		&cli.IntFlag{Name: "db-max-conns", Usage: "database pool size, 0 for concurrency+2", EnvVars: env("db-max-conns")},
		&cli.StringFlag{Name: "ebay-client-id", Usage: "eBay application client id", EnvVars: []string{"EBAY_CLIENT_ID"}},
		&cli.StringFlag{Name: "ebay-client-secret", Usage: "eBay application client secret", EnvVars: []string{"EBAY_CLIENT_SECRET"}},
		&cli.StringFlag{Name: "ebay-scope", Value: d.EbayScope, Usage: "OAuth scope", EnvVars: []string{"EBAY_SCOPE"}},
		&cli.StringFlag{Name: "marketplace", Value: d.Marketplace, Usage: "X-EBAY-C-MARKETPLACE-ID", EnvVars: []string{"EBAY_MARKETPLACE"}},
		&cli.StringFlag{Name: "ebay-api-url", Value: d.EbayAPIURL, Usage: "Buy API base URL", EnvVars: []string{"EBAY_API_URL"}},
		&cli.StringFlag{Name: "ebay-auth-url", Value: d.EbayAuthURL, Usage: "OAuth token endpoint", EnvVars: []string{"EBAY_AUTH_URL"}},
	}
}

// FromContext reads the flags defined by Flags.
func FromContext(c *cli.Context) Config {
	return Config{
		Game:              c.String("game"),
		Limit:             c.Int("limit"),
		StaleDays:         c.Int("stale-days"),
		Concurrency:       c.Int("concurrency"),
		ItemTimeout:       c.Duration("item-timeout"),
		MaxPages:          c.Int("max-pages"),
		PageSize:          c.Int("page-size"),
		TargetSamples:     c.Int("target-samples"),
		RequestsPerMinute: c.Int("rpm"),
		CooldownThreshold: c.Int("cooldown-threshold"),
		Cooldown:          c.Duration("cooldown"),
		MaxRetries:        c.Int("max-retries"),
		ASCIIFirst:        c.Bool("ascii-first"),
		AliasExpansion:    c.Bool("alias-expansion"),
		FallbackThreshold: c.Int("fallback-threshold"),
		DeliveryCountry:   c.String("delivery-country"),
		Currency:          c.String("currency"),
		BuyingOptions:     splitList(c.String("buying-options")),
		ProbeRateLimit:    c.Bool("probe-rate-limit"),
		Touch:             c.Bool("touch"),
		ProgressEvery:     c.Duration("progress-every"),
		Schedule:          c.String("schedule"),
		Debug:             c.Bool("debug"),
		Trace:             c.Bool("trace"),
		JSONLogs:          c.Bool("json-logs"),
		DatabaseURL:       c.String("database-url"),
		DBMaxConns:        c.Int("db-max-conns"),
		EbayClientID:      c.String("ebay-client-id"),
		EbayClientSecret:  c.String("ebay-client-secret"),
		EbayScope:         c.String("ebay-scope"),
		Marketplace:       c.String("marketplace"),
		EbayAPIURL:        c.String("ebay-api-url"),
		EbayAuthURL:       c.String("ebay-auth-url"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
