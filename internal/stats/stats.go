// Package stats computes outlier-robust descriptive statistics over
// comparable offer prices. It is pure and fully deterministic: the same
// ComparableSet always yields the same PriceStatistics.
package stats

import (
	"math"
	"sort"

	"github.com/sells-group/pricing-cli/internal/model"
)

// minPointsForIQR is the smallest sample where IQR fences are stable enough
// to trim on. Smaller buckets report raw statistics.
const minPointsForIQR = 4

// Compute partitions the comparable set by condition and returns per-bucket
// statistics plus an overall bucket spanning every offer. Empty buckets yield
// a zero-valued BucketStats with Count 0; Compute never fails.
func Compute(set model.ComparableSet) model.PriceStatistics {
	var newPrices, usedPrices []float64
	all := make([]float64, 0, len(set.Offers))

	for _, o := range set.Offers {
		all = append(all, o.Price)
		switch o.NormalizedCondition() {
		case model.ConditionNew:
			newPrices = append(newPrices, o.Price)
		case model.ConditionUsed:
			usedPrices = append(usedPrices, o.Price)
		}
	}

	return model.PriceStatistics{
		Overall: bucket(all),
		New:     bucket(newPrices),
		Used:    bucket(usedPrices),
	}
}

// bucket computes statistics for one price group, trimming IQR outliers
// first when the sample is large enough.
func bucket(prices []float64) model.BucketStats {
	if len(prices) == 0 {
		return model.BucketStats{}
	}

	kept := prices
	removed := 0
	if len(prices) >= minPointsForIQR {
		kept, removed = trimOutliers(prices)
	}

	s := describe(kept)
	s.Count = len(prices)
	s.OutliersRemoved = removed
	return s
}

// trimOutliers applies the 1.5×IQR fence and returns the surviving prices
// plus the number removed.
func trimOutliers(prices []float64) ([]float64, int) {
	q1 := Percentile(prices, 0.25)
	q3 := Percentile(prices, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	kept := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p >= lower && p <= upper {
			kept = append(kept, p)
		}
	}
	return kept, len(prices) - len(kept)
}

// describe computes raw descriptive statistics over a non-empty sample.
func describe(xs []float64) model.BucketStats {
	if len(xs) == 0 {
		return model.BucketStats{}
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	var sum float64
	for _, x := range sorted {
		sum += x
	}
	mean := sum / float64(len(sorted))

	var variance float64
	for _, x := range sorted {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(sorted))

	return model.BucketStats{
		Mean:   mean,
		Median: Percentile(sorted, 0.5),
		StdDev: math.Sqrt(variance),
		P25:    Percentile(sorted, 0.25),
		P75:    Percentile(sorted, 0.75),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

// Percentile returns the p-th percentile (p in [0,1]) of values using linear
// interpolation between closest ranks. The input need not be sorted.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	xs := make([]float64, len(values))
	copy(xs, values)
	sort.Float64s(xs)

	if len(xs) == 1 {
		return xs[0]
	}

	k := float64(len(xs)-1) * p
	f := int(k)
	c := f + 1
	if c > len(xs)-1 {
		c = len(xs) - 1
	}
	if f == c {
		return xs[f]
	}
	return xs[f] + (k-float64(f))*(xs[c]-xs[f])
}
