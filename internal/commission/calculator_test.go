package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		CommissionRate: 0.15,
		TaxRate:        0.16,
		TaxBasis:       TaxBasisCost,
		ShippingTiers: []WeightTier{
			{MaxKg: 0.5, Cost: 35},
			{MaxKg: 1, Cost: 45},
			{MaxKg: 5, Cost: 90},
		},
		Currency: "MXN",
	}
}

func TestProfitWorkedExample(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testConfig())

	got, err := calc.Profit(1000, 400, 1)
	require.NoError(t, err)

	// commission 150, shipping 45, tax 400*0.16=64
	// net = 1000 - 150 - 45 - 64 - 400 = 341
	assert.InDelta(t, 150, got.CommissionAmount, 1e-9)
	assert.InDelta(t, 45, got.ShippingCost, 1e-9)
	assert.InDelta(t, 64, got.TaxAmount, 1e-9)
	assert.InDelta(t, 341, got.NetProfit, 1e-9)
	assert.InDelta(t, 34.1, got.NetMarginPercent, 1e-9)
	assert.InDelta(t, 85.25, got.ROIPercent, 1e-9)
	assert.Equal(t, "MXN", got.Currency)
}

func TestProfitRejectsNonPositiveCost(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testConfig())

	tests := []struct {
		name string
		cost float64
	}{
		{"zero cost", 0},
		{"negative cost", -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := calc.Profit(1000, tt.cost, 1)
			assert.ErrorIs(t, err, ErrNonPositiveCost)
		})
	}
}

func TestProfitTaxBasisPrice(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.TaxBasis = TaxBasisPrice
	calc := NewCalculator(cfg)

	got, err := calc.Profit(1000, 400, 1)
	require.NoError(t, err)

	assert.InDelta(t, 160, got.TaxAmount, 1e-9) // 1000 * 0.16
	assert.InDelta(t, 245, got.NetProfit, 1e-9)
}

func TestShippingCost(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testConfig())

	tests := []struct {
		name   string
		weight float64
		want   float64
	}{
		{"light package", 0.3, 35},
		{"tier boundary", 0.5, 35},
		{"one kg", 1, 45},
		{"mid tier", 3, 90},
		{"beyond last tier pays last tier", 40, 90},
		{"unknown weight defaults to 1kg", 0, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.ShippingCost(tt.weight), 1e-9)
		})
	}
}

func TestProfitNegativeMargin(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testConfig())

	// Selling at cost: every fee pushes profit negative.
	got, err := calc.Profit(400, 400, 1)
	require.NoError(t, err)

	assert.Negative(t, got.NetProfit)
	assert.Negative(t, got.NetMarginPercent)
	assert.Negative(t, got.ROIPercent)
}
