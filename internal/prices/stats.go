package prices

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/guarzo/tcgcomps/internal/model"
)

const (
	MethodPercentile = model.MethodPercentile
	MethodMinMax     = model.MethodMinMax
	MethodNone       = model.MethodNone
)

// percentileThreshold is the sample count from which p10/p90 replace min/max.
const percentileThreshold = 10

// Summarize computes low/median/high for samples. With ten or more samples
// low and high are the 10th and 90th percentiles; with fewer they are the
// minimum and maximum. The median is always the interpolated 50th percentile.
func Summarize(samples []float64) model.Stats {
	n := len(samples)
	if n == 0 {
		return model.Stats{Method: MethodNone}
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	stats := model.Stats{
		Sample: n,
		Median: cents(Percentile(sorted, 0.5)),
	}
	if n >= percentileThreshold {
		stats.Low = cents(Percentile(sorted, 0.1))
		stats.High = cents(Percentile(sorted, 0.9))
		stats.Method = MethodPercentile
	} else {
		stats.Low = cents(sorted[0])
		stats.High = cents(sorted[n-1])
		stats.Method = MethodMinMax
	}
	return stats
}

// Percentile returns the linearly interpolated p-quantile (0..1) of sorted,
// using rank p*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

func cents(v float64) *float64 {
	r := decimal.NewFromFloat(v).Round(2).InexactFloat64()
	return &r
}
