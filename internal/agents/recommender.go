package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/pkg/anthropic"
)

const recommendSystemPrompt = `You are a pricing analyst for a Mexican resale business. Given market statistics over comparable listings and the seller's cost, recommend a resale price. Choose a strategy: "competitive" (price near or below median to move quickly), "value" (price between median and P75 on quality signals), or "margin_protection" (price to protect the target margin when the market runs below it). The recommended price must fall inside the observed market range unless margin protection forces it higher. Respond with a valid JSON object:
{"recommended_price": <number>, "price_range_min": <number>, "price_range_max": <number>, "strategy": "<competitive|value|margin_protection>", "confidence": <0.0-1.0>, "reasoning": "<two sentences max>"}`

const recommendUserPrompt = `Product: %s
Condition: %s
Seller cost: %.2f
Target margin: %.1f%%

Market statistics (comparable listings, outliers removed):
Overall: count=%d median=%.2f mean=%.2f p25=%.2f p75=%.2f min=%.2f max=%.2f
New:     count=%d median=%.2f p25=%.2f p75=%.2f
Used:    count=%d median=%.2f p25=%.2f p75=%.2f`

// Recommender produces the pricing recommendation from market statistics.
type Recommender struct {
	ai    anthropic.Client
	model string
	usage UsageRecorder
}

// NewRecommender creates a recommender calling the given model.
func NewRecommender(ai anthropic.Client, model string, usage UsageRecorder) *Recommender {
	return &Recommender{ai: ai, model: model, usage: usage}
}

// Recommend asks the model for a price given the statistics. The caller
// validates and clamps the result; this method only parses it.
func (r *Recommender) Recommend(ctx context.Context, pivot model.PivotProduct, req model.AnalysisRequest, stats model.PriceStatistics) (model.PricingRecommendation, error) {
	prompt := fmt.Sprintf(recommendUserPrompt,
		pivot.Title, pivot.Condition, req.CostPrice, req.TargetMarginPercent,
		stats.Overall.Count, stats.Overall.Median, stats.Overall.Mean,
		stats.Overall.P25, stats.Overall.P75, stats.Overall.Min, stats.Overall.Max,
		stats.New.Count, stats.New.Median, stats.New.P25, stats.New.P75,
		stats.Used.Count, stats.Used.Median, stats.Used.P25, stats.Used.P75)

	resp, err := r.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: 512,
		System:    []anthropic.SystemBlock{{Text: recommendSystemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return model.PricingRecommendation{}, eris.Wrap(err, "recommender: create message")
	}
	recordUsage(r.usage, AgentRecommender, r.model, resp)

	var parsed struct {
		RecommendedPrice float64 `json:"recommended_price"`
		PriceRangeMin    float64 `json:"price_range_min"`
		PriceRangeMax    float64 `json:"price_range_max"`
		Strategy         string  `json:"strategy"`
		Confidence       float64 `json:"confidence"`
		Reasoning        string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(extractText(resp))), &parsed); err != nil {
		zap.L().Warn("recommender: unparsable response",
			zap.String("product_id", pivot.ProductID),
			zap.Error(err),
		)
		return model.PricingRecommendation{}, eris.Wrap(ErrUnparsable, "recommender")
	}

	return model.PricingRecommendation{
		RecommendedPrice: parsed.RecommendedPrice,
		PriceRangeMin:    parsed.PriceRangeMin,
		PriceRangeMax:    parsed.PriceRangeMax,
		Strategy:         parsed.Strategy,
		Confidence:       parsed.Confidence,
		Reasoning:        parsed.Reasoning,
	}, nil
}
