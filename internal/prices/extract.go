// Package prices turns marketplace listings into price samples and
// summarizes them.
package prices

import (
	"math"

	"github.com/guarzo/tcgcomps/internal/ebay"
)

// Total returns the landed price of a listing: item price plus its cheapest
// shipping option. ok is false when the total is not a usable sample.
func Total(l ebay.Listing) (total float64, ok bool) {
	shipping, found := 0.0, false
	for _, c := range l.ShippingCosts {
		if math.IsNaN(c) {
			continue
		}
		if !found || c < shipping {
			shipping, found = c, true
		}
	}
	total = l.Price + shipping
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return 0, false
	}
	return total, true
}

// Extract returns the usable totals of listings in order.
func Extract(listings []ebay.Listing) []float64 {
	out := make([]float64, 0, len(listings))
	for _, l := range listings {
		if total, ok := Total(l); ok {
			out = append(out, total)
		}
	}
	return out
}

// Accumulator collects samples for one item across all of its queries.
// It is not safe for concurrent use; each item owns its own.
type Accumulator struct {
	samples   []float64
	sampleURL string
	query     string
}

// Add extracts samples from listings found by query and returns how many were kept.
// The first listing that yields a sample supplies the sample URL for the item.
func (a *Accumulator) Add(query string, listings []ebay.Listing) int {
	added := 0
	for _, l := range listings {
		total, ok := Total(l)
		if !ok {
			continue
		}
		if a.sampleURL == "" && l.URL != "" {
			a.sampleURL = l.URL
		}
		if a.query == "" {
			a.query = query
		}
		a.samples = append(a.samples, total)
		added++
	}
	return added
}

// Len returns the number of samples collected so far.
func (a *Accumulator) Len() int { return len(a.samples) }

// Samples returns the collected samples.
func (a *Accumulator) Samples() []float64 { return a.samples }

// SampleURL returns the URL of the first listing that produced a sample.
func (a *Accumulator) SampleURL() string { return a.sampleURL }

// Query returns the first query that contributed a sample, or "".
func (a *Accumulator) Query() string { return a.query }
