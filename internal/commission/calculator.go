// Package commission computes marketplace fee, shipping, and tax deductions
// to derive real net profit from a selling price. All arithmetic is decimal
// to keep money amounts exact.
package commission

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/pricing-cli/internal/model"
)

// ErrNonPositiveCost is returned when cost of goods is zero or negative.
// Profitability cannot be computed without a real cost; reporting $0/0% as if
// it were computed is exactly the defect this calculator guards against.
var ErrNonPositiveCost = eris.New("commission: cost of goods must be positive")

// Tax basis values.
const (
	TaxBasisCost  = "cost"
	TaxBasisPrice = "price"
)

// WeightTier maps a package weight ceiling (kg) to a flat shipping cost.
type WeightTier struct {
	MaxKg float64 `yaml:"max_kg" mapstructure:"max_kg"`
	Cost  float64 `yaml:"cost" mapstructure:"cost"`
}

// Config holds the fee schedule for one marketplace.
type Config struct {
	CommissionRate float64      `yaml:"commission_rate" mapstructure:"commission_rate"`
	TaxRate        float64      `yaml:"tax_rate" mapstructure:"tax_rate"`
	TaxBasis       string       `yaml:"tax_basis" mapstructure:"tax_basis"`
	ShippingTiers  []WeightTier `yaml:"shipping_tiers" mapstructure:"shipping_tiers"`
	Currency       string       `yaml:"currency" mapstructure:"currency"`
}

// DefaultConfig returns the MercadoLibre Mexico fee schedule: 15% category
// commission, ISR 2.5% + IVA 8% on cost, weight-tiered shipping in MXN.
func DefaultConfig() Config {
	return Config{
		CommissionRate: 0.15,
		TaxRate:        0.105,
		TaxBasis:       TaxBasisCost,
		ShippingTiers: []WeightTier{
			{MaxKg: 0.5, Cost: 45},
			{MaxKg: 1, Cost: 55},
			{MaxKg: 3, Cost: 75},
			{MaxKg: 5, Cost: 105},
			{MaxKg: 10, Cost: 140},
			{MaxKg: 25, Cost: 205},
		},
		Currency: "MXN",
	}
}

// Calculator computes profitability breakdowns. Pure and deterministic.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator with the given fee schedule.
func NewCalculator(cfg Config) *Calculator {
	if cfg.TaxBasis == "" {
		cfg.TaxBasis = TaxBasisCost
	}
	return &Calculator{cfg: cfg}
}

// ShippingCost looks up the flat shipping cost for a package weight. Weights
// above the last tier pay the last tier's cost. An unknown weight (<=0)
// defaults to 1 kg.
func (c *Calculator) ShippingCost(weightKg float64) float64 {
	if weightKg <= 0 {
		weightKg = 1
	}
	if len(c.cfg.ShippingTiers) == 0 {
		return 0
	}
	for _, tier := range c.cfg.ShippingTiers {
		if weightKg <= tier.MaxKg {
			return tier.Cost
		}
	}
	return c.cfg.ShippingTiers[len(c.cfg.ShippingTiers)-1].Cost
}

// Profit computes the full profitability breakdown for selling at the given
// price. Every subtracted component is reported individually.
func (c *Calculator) Profit(sellingPrice, costOfGoods, weightKg float64) (model.ProfitabilityBreakdown, error) {
	if costOfGoods <= 0 {
		return model.ProfitabilityBreakdown{}, ErrNonPositiveCost
	}

	price := decimal.NewFromFloat(sellingPrice)
	cost := decimal.NewFromFloat(costOfGoods)

	commissionAmt := price.Mul(decimal.NewFromFloat(c.cfg.CommissionRate)).Round(2)
	shipping := decimal.NewFromFloat(c.ShippingCost(weightKg))

	taxBase := cost
	if c.cfg.TaxBasis == TaxBasisPrice {
		taxBase = price
	}
	taxAmt := taxBase.Mul(decimal.NewFromFloat(c.cfg.TaxRate)).Round(2)

	netProfit := price.Sub(commissionAmt).Sub(shipping).Sub(taxAmt).Sub(cost)

	var marginPct, roiPct decimal.Decimal
	if !price.IsZero() {
		marginPct = netProfit.Div(price).Mul(decimal.NewFromInt(100)).Round(2)
	}
	roiPct = netProfit.Div(cost).Mul(decimal.NewFromInt(100)).Round(2)

	return model.ProfitabilityBreakdown{
		SellingPrice:     sellingPrice,
		CostOfGoods:      costOfGoods,
		CommissionAmount: commissionAmt.InexactFloat64(),
		ShippingCost:     shipping.InexactFloat64(),
		TaxAmount:        taxAmt.InexactFloat64(),
		NetProfit:        netProfit.InexactFloat64(),
		NetMarginPercent: marginPct.InexactFloat64(),
		ROIPercent:       roiPct.InexactFloat64(),
		Currency:         c.cfg.Currency,
	}, nil
}
