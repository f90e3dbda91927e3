package model

import "time"

// CatalogItem is the minimal card representation we need for pricing.
// The catalog itself is owned by the ingestion jobs; this engine only reads it.
type CatalogItem struct {
	ID      string
	Name    string
	SetCode string
	SetName string
	Number  string
	Game    string
}

// Label returns a short human readable identifier for logs.
func (c CatalogItem) Label() string {
	if c.Number == "" {
		return c.Name
	}
	return c.Name + " #" + c.Number
}

// Statistics methods recorded with each price row.
const (
	MethodPercentile = "percentile"
	MethodMinMax     = "minmax"
	MethodNone       = "none"
)

// Stats is the summary of the price samples gathered for one item.
// Low, Median and High are nil when Sample is 0.
type Stats struct {
	Low    *float64
	Median *float64
	High   *float64
	Sample int
	Method string
}

// Empty reports whether no samples backed these stats.
func (s Stats) Empty() bool {
	return s.Sample == 0
}

// PriceRecord is one row of a game's price table.
type PriceRecord struct {
	CardID      string
	Stats       Stats
	Currency    string
	SampleURL   string
	Query       string
	RefreshedAt time.Time
}
