package pipeline

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/model"
)

// FallbackRecommendation derives a price purely from cost and target margin.
// Used when the recommendation capability fails or returns invalid output.
func FallbackRecommendation(req model.AnalysisRequest) model.PricingRecommendation {
	price := req.CostPrice * (1 + req.TargetMarginPercent/100)
	return model.PricingRecommendation{
		RecommendedPrice: price,
		MarginPercent:    grossMargin(price, req.CostPrice),
		PriceRangeMin:    price,
		PriceRangeMax:    price,
		Strategy:         model.StrategyFallback,
		Confidence:       0.2,
		Reasoning:        "derived from cost and target margin",
		FallbackDerived:  true,
	}
}

// ValidateRecommendation enforces the output contract on a model-produced
// recommendation. A price at or below cost, outside the price band, or not a
// finite number is replaced by the deterministic cost-based fallback and
// flagged. The margin percent is always recomputed from the final price;
// fewer comparables than minComparables flags the result low-confidence.
func ValidateRecommendation(rec model.PricingRecommendation, band PriceBand, req model.AnalysisRequest, comparables, minComparables int) model.PricingRecommendation {
	price := rec.RecommendedPrice

	invalid := price <= req.CostPrice ||
		math.IsNaN(price) || math.IsInf(price, 0) ||
		!band.Contains(price)

	if invalid {
		zap.L().Warn("recommend: invalid recommended price, clamping",
			zap.Float64("recommended", price),
			zap.Float64("cost", req.CostPrice),
			zap.Float64("band_min", band.Min),
			zap.Float64("band_max", band.Max),
		)
		fallback := FallbackRecommendation(req)
		fallback.Reasoning = "recommended price failed validation; " + fallback.Reasoning
		rec = fallback
	}

	rec.MarginPercent = grossMargin(rec.RecommendedPrice, req.CostPrice)

	if rec.PriceRangeMin <= 0 || rec.PriceRangeMax < rec.PriceRangeMin {
		rec.PriceRangeMin = band.Min
		rec.PriceRangeMax = band.Max
	}

	if comparables < minComparables {
		rec.LowConfidence = true
	}

	return rec
}

// grossMargin is the margin percent of the selling price before deductions.
func grossMargin(price, cost float64) float64 {
	if price <= 0 {
		return 0
	}
	return (price - cost) / price * 100
}
