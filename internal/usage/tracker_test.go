package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		"haiku":  {Input: 0.80, Output: 4.00},
		"sonnet": {Input: 3.00, Output: 15.00},
	}
}

func TestRatesCost(t *testing.T) {
	t.Parallel()
	rates := testRates()

	tests := []struct {
		name    string
		modelID string
		in, out int
		want    float64
	}{
		{"haiku one mtok", "haiku", 1_000_000, 100_000, 0.80 + 0.40},
		{"sonnet", "sonnet", 500_000, 50_000, 1.50 + 0.75},
		{"unknown model", "gpt", 1_000_000, 1_000_000, 0},
		{"zero tokens", "haiku", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, rates.Cost(tt.modelID, tt.in, tt.out), 1e-9)
		})
	}
}

func TestTrackerAccumulatesByAgent(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	tr.Record("classifier", "haiku", 1000, 100)
	tr.Record("classifier", "haiku", 2000, 200)
	tr.Record("recommender", "sonnet", 500, 300)

	s := tr.Summary()

	assert.Equal(t, 3, s.TotalCalls)
	assert.Equal(t, 3500, s.TotalInputTokens)
	assert.Equal(t, 600, s.TotalOutputTokens)
	assert.Equal(t, 4100, s.TotalTokens())

	assert.Equal(t, 2, s.ByAgent["classifier"].Calls)
	assert.Equal(t, 3000, s.ByAgent["classifier"].InputTokens)
	assert.Equal(t, 1, s.ByAgent["recommender"].Calls)
	assert.Positive(t, s.ByAgent["recommender"].CostUSD)
}

func TestTrackerConcurrentRecord(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("classifier", "haiku", 10, 1)
		}()
	}
	wg.Wait()

	s := tr.Summary()
	assert.Equal(t, 50, s.TotalCalls)
	assert.Equal(t, 500, s.TotalInputTokens)
	assert.Equal(t, 50, s.TotalOutputTokens)
}

func TestSummaryIsSnapshot(t *testing.T) {
	t.Parallel()
	tr := NewTracker(testRates())

	tr.Record("enricher", "haiku", 100, 10)
	first := tr.Summary()
	tr.Record("enricher", "haiku", 100, 10)

	// The earlier snapshot must not observe later records.
	assert.Equal(t, 1, first.TotalCalls)
	assert.Equal(t, 1, first.ByAgent["enricher"].Calls)
	assert.Equal(t, 2, tr.Summary().TotalCalls)
}
