package config

import (
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

func validConfig() Config {
	c := Default()
	c.DatabaseURL = "postgres://localhost/cards"
	c.EbayClientID = "id"
	c.EbayClientSecret = "secret"
	return c
}

func TestDefault_Validates(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown game", func(c *Config) { c.Game = "digimon" }, "unknown game"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"page size too large", func(c *Config) { c.PageSize = 500 }, "page-size"},
		{"pool smaller than workers", func(c *Config) { c.Concurrency = 8; c.DBMaxConns = 4 }, "db-max-conns"},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "database-url"},
		{"missing credentials", func(c *Config) { c.EbayClientSecret = "" }, "ebay-client-secret"},
		{"bad schedule", func(c *Config) { c.Schedule = "every day" }, "schedule"},
		{"no timeout", func(c *Config) { c.ItemTimeout = 0 }, "item-timeout"},
		{"negative rpm", func(c *Config) { c.RequestsPerMinute = -1 }, "rpm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ZeroRPMDisablesPacing(t *testing.T) {
	c := validConfig()
	c.RequestsPerMinute = 0
	if err := c.Validate(); err != nil {
		t.Errorf("rpm 0 should be accepted, got %v", err)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := Default()
	err := c.Validate()
	if err == nil {
		t.Fatal("expected an error without database and credentials")
	}
	if !strings.Contains(err.Error(), "database-url") || !strings.Contains(err.Error(), "ebay-client-id") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestMaxConns(t *testing.T) {
	c := Default()
	c.Concurrency = 6
	if got := c.MaxConns(); got != 8 {
		t.Errorf("MaxConns() = %d, want 8", got)
	}
	c.DBMaxConns = 20
	if got := c.MaxConns(); got != 20 {
		t.Errorf("MaxConns() = %d, want 20", got)
	}
}

func TestDerivedSettings(t *testing.T) {
	c := validConfig()
	c.Currency = "GBP"
	c.BuyingOptions = []string{"FIXED_PRICE", "AUCTION"}

	f := c.Fetch()
	if f.Filters.PriceCurrency != "GBP" || len(f.Filters.BuyingOptions) != 2 || f.MaxPages != c.MaxPages {
		t.Errorf("unexpected fetch config %+v", f)
	}
	p := c.Pipeline()
	if p.Workers != c.Concurrency || p.Currency != "GBP" || !p.Touch {
		t.Errorf("unexpected pipeline config %+v", p)
	}
	if r := c.RetryPolicy(); r.MaxRetries != c.MaxRetries {
		t.Errorf("unexpected retry policy %+v", r)
	}
}

func parse(t *testing.T, args ...string) Config {
	t.Helper()
	var got Config
	app := &cli.App{
		Name:  "test",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			got = FromContext(c)
			return nil
		},
	}
	if err := app.Run(append([]string{"test"}, args...)); err != nil {
		t.Fatalf("run: %v", err)
	}
	return got
}

func TestFlags_Defaults(t *testing.T) {
	got := parse(t)
	d := Default()
	if got.Game != d.Game || got.Concurrency != d.Concurrency || got.ItemTimeout != d.ItemTimeout || got.Touch != d.Touch {
		t.Errorf("flag defaults drifted from Default(): %+v", got)
	}
	if len(got.BuyingOptions) != 1 || got.BuyingOptions[0] != "FIXED_PRICE" {
		t.Errorf("unexpected buying options %v", got.BuyingOptions)
	}
}

func TestFlags_ArgsAndEnv(t *testing.T) {
	t.Setenv("TCGCOMPS_STALE_DAYS", "14")
	t.Setenv("EBAY_CLIENT_ID", "from-env")

	got := parse(t, "--game", "mtg", "--item-timeout", "2m", "--touch=false", "--buying-options", "")
	if got.Game != "mtg" || got.ItemTimeout != 2*time.Minute || got.Touch {
		t.Errorf("flags not applied: %+v", got)
	}
	if got.StaleDays != 14 || got.EbayClientID != "from-env" {
		t.Errorf("env vars not applied: %+v", got)
	}
	if got.BuyingOptions != nil {
		t.Errorf("empty buying options should mean no filter, got %v", got.BuyingOptions)
	}
}
