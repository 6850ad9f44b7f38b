package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-cli/internal/model"
)

func offersAt(condition string, prices ...float64) []model.Offer {
	out := make([]model.Offer, len(prices))
	for i, p := range prices {
		out[i] = model.Offer{ItemID: condition + string(rune('a'+i)), Price: p, Condition: condition}
	}
	return out
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{42}, 0.25, 42},
		{"median of pair", []float64{10, 20}, 0.5, 15},
		{"q1 interpolated", []float64{1, 2, 3, 4}, 0.25, 1.75},
		{"q3 interpolated", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"unsorted input", []float64{4, 1, 3, 2}, 0.75, 3.25},
		{"min", []float64{5, 1, 9}, 0, 1},
		{"max", []float64{5, 1, 9}, 1, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestComputeEmptySet(t *testing.T) {
	t.Parallel()

	got := Compute(model.ComparableSet{})

	assert.Zero(t, got.Overall.Count)
	assert.Zero(t, got.Overall.Mean)
	assert.Zero(t, got.New.Count)
	assert.Zero(t, got.Used.Count)
}

func TestComputeSmallBucketSkipsOutlierRemoval(t *testing.T) {
	t.Parallel()

	set := model.ComparableSet{Offers: offersAt(model.ConditionNew, 100, 200, 10000)}
	got := Compute(set)

	// Three points: no trimming even though 10000 is extreme.
	assert.Equal(t, 3, got.New.Count)
	assert.Equal(t, 0, got.New.OutliersRemoved)
	assert.InDelta(t, 10000, got.New.Max, 1e-9)
}

func TestComputeRemovesIQROutliers(t *testing.T) {
	t.Parallel()

	// Tight cluster around 1000 plus one far outlier.
	prices := []float64{980, 990, 1000, 1010, 1020, 5000}
	set := model.ComparableSet{Offers: offersAt(model.ConditionNew, prices...)}

	got := Compute(set)

	assert.Equal(t, 6, got.New.Count)
	assert.Equal(t, 1, got.New.OutliersRemoved)
	assert.InDelta(t, 1000, got.New.Median, 1)
	assert.LessOrEqual(t, got.New.Max, 1020.0)

	// Outlier count + kept count = input count.
	kept := got.New.Count - got.New.OutliersRemoved
	assert.Equal(t, 5, kept)
}

func TestComputeMedianWithinNonOutlierRange(t *testing.T) {
	t.Parallel()

	prices := []float64{700, 850, 900, 950, 1000, 1100, 1250, 1300, 9999}
	set := model.ComparableSet{Offers: offersAt(model.ConditionUsed, prices...)}

	got := Compute(set)

	require.Positive(t, got.Used.Count)
	assert.GreaterOrEqual(t, got.Used.Median, got.Used.Min)
	assert.LessOrEqual(t, got.Used.Median, got.Used.Max)
}

func TestComputePartitionsByCondition(t *testing.T) {
	t.Parallel()

	offers := append(offersAt(model.ConditionNew, 1000, 1100, 1200, 1300),
		offersAt(model.ConditionUsed, 700, 750)...)
	offers = append(offers, model.Offer{ItemID: "x1", Price: 900, Condition: "refurbished"})

	got := Compute(model.ComparableSet{Offers: offers})

	assert.Equal(t, 7, got.Overall.Count)
	assert.Equal(t, 4, got.New.Count)
	assert.Equal(t, 2, got.Used.Count)

	// Unknown conditions count toward overall only.
	assert.InDelta(t, 700, got.Overall.Min, 1e-9)
	assert.InDelta(t, 1300, got.Overall.Max, 1e-9)
}

func TestComputeDeterministic(t *testing.T) {
	t.Parallel()

	set := model.ComparableSet{Offers: offersAt(model.ConditionNew, 500, 510, 490, 505, 2000, 495)}

	first := Compute(set)
	second := Compute(set)

	assert.Equal(t, first, second)
}
