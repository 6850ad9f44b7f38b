package model

// Pricing strategy labels produced by the recommender.
const (
	StrategyCompetitive      = "competitive"
	StrategyValue            = "value"
	StrategyMarginProtection = "margin_protection"
	StrategyFallback         = "fallback"
)

// PricingRecommendation is the recommended resale price with its profitability
// fields. ProfitComputed distinguishes a real computation from an absent one:
// a recommendation reporting $0 profit without the flag set is invalid output,
// not a valid zero.
type PricingRecommendation struct {
	RecommendedPrice float64 `json:"recommended_price"`
	MarginPercent    float64 `json:"margin_percent"`
	PriceRangeMin    float64 `json:"price_range_min"`
	PriceRangeMax    float64 `json:"price_range_max"`
	Strategy         string  `json:"strategy"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning,omitempty"`

	ProfitPerUnit  float64 `json:"profit_per_unit"`
	ROIPercent     float64 `json:"roi_percent"`
	ProfitComputed bool    `json:"profit_computed"`

	LowConfidence   bool `json:"low_confidence,omitempty"`
	FallbackDerived bool `json:"fallback_derived,omitempty"`
}

// ProfitabilityBreakdown itemizes every component subtracted from the selling
// price. Each component is reported individually; omitting any of them from
// the final result is the defect this system exists to fix.
type ProfitabilityBreakdown struct {
	SellingPrice     float64 `json:"selling_price"`
	CostOfGoods      float64 `json:"cost_of_goods"`
	CommissionAmount float64 `json:"commission_amount"`
	ShippingCost     float64 `json:"shipping_cost"`
	TaxAmount        float64 `json:"tax_amount"`
	NetProfit        float64 `json:"net_profit"`
	NetMarginPercent float64 `json:"net_margin_percent"`
	ROIPercent       float64 `json:"roi_percent"`
	Currency         string  `json:"currency"`
}
