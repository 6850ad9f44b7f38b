package model

// BucketStats holds outlier-robust descriptive statistics for one condition
// bucket. A bucket with Count 0 is a valid, well-defined empty result.
type BucketStats struct {
	Count           int     `json:"count"`
	OutliersRemoved int     `json:"outliers_removed"`
	Mean            float64 `json:"mean"`
	Median          float64 `json:"median"`
	StdDev          float64 `json:"std_dev"`
	P25             float64 `json:"p25"`
	P75             float64 `json:"p75"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
}

// PriceStatistics is the per-bucket statistical view of a ComparableSet.
// Derived once, read-only downstream.
type PriceStatistics struct {
	Overall BucketStats `json:"overall"`
	New     BucketStats `json:"new"`
	Used    BucketStats `json:"used"`
}
