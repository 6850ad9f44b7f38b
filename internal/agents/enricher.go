package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/pkg/anthropic"
)

const enrichSystemPrompt = `You are a product catalog analyst for a Mexican resale marketplace. Given a product listing, extract its specification profile. Respond with a valid JSON object:
{"category": "<product category>", "subcategory": "<narrower category>", "key_specs": {"<spec name>": "<value>"}, "functional_descriptors": ["<what the product does>"], "market_segment": "<budget|mid|premium>", "search_patterns": ["<short search phrases buyers would use, in Spanish>"]}
Only include specs actually present in the listing. Do not invent values.`

const enrichUserPrompt = `Title: %s
Brand: %s
Condition: %s
Category: %s
Listed price: %.2f %s
Attributes:
%s`

// Enricher derives a specification profile for the pivot product.
type Enricher struct {
	ai    anthropic.Client
	model string
	usage UsageRecorder
}

// NewEnricher creates an enricher calling the given model.
func NewEnricher(ai anthropic.Client, model string, usage UsageRecorder) *Enricher {
	return &Enricher{ai: ai, model: model, usage: usage}
}

// Enrich returns the spec profile for the pivot. A zero EnrichedSpec with an
// error means the pipeline should continue with raw listing data.
func (e *Enricher) Enrich(ctx context.Context, pivot model.PivotProduct) (model.EnrichedSpec, error) {
	var attrs strings.Builder
	for k, v := range pivot.Attributes {
		fmt.Fprintf(&attrs, "- %s: %s\n", k, v)
	}
	if attrs.Len() == 0 {
		attrs.WriteString("(none)\n")
	}

	prompt := fmt.Sprintf(enrichUserPrompt,
		pivot.Title, pivot.Brand, pivot.Condition, pivot.Category,
		pivot.Price, pivot.Currency, attrs.String())

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 1024,
		System:    []anthropic.SystemBlock{{Text: enrichSystemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return model.EnrichedSpec{}, eris.Wrap(err, "enricher: create message")
	}
	recordUsage(e.usage, AgentEnricher, e.model, resp)

	var spec model.EnrichedSpec
	if err := json.Unmarshal([]byte(cleanJSON(extractText(resp))), &spec); err != nil {
		zap.L().Warn("enricher: unparsable response",
			zap.String("product_id", pivot.ProductID),
			zap.Error(err),
		)
		return model.EnrichedSpec{}, eris.Wrap(ErrUnparsable, "enricher")
	}

	return spec, nil
}
