package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/pkg/anthropic"
)

const classifySystemPrompt = `You decide whether a marketplace listing is directly comparable to a reference product for pricing purposes. Comparable means: same product type, same or equivalent key specifications, not an accessory, part, or multi-unit bundle. When unsure, lean toward excluded. Respond with a valid JSON object:
{"label": "comparable" or "excluded", "confidence": <0.0-1.0>, "reasoning": "<one sentence>", "category_tag": "<short product type tag>", "spec_variance": <0.0-1.0, how far the specs diverge>}

Reference product:
%s`

const classifyUserPrompt = `Listing:
Title: %s
Price: %.2f
Condition: %s
Seller: %s`

// Classifier labels offers comparable or excluded against the pivot.
type Classifier struct {
	ai    anthropic.Client
	model string
	usage UsageRecorder
}

// NewClassifier creates a classifier calling the given model.
func NewClassifier(ai anthropic.Client, model string, usage UsageRecorder) *Classifier {
	return &Classifier{ai: ai, model: model, usage: usage}
}

// pivotContext renders the reference product block shared by every
// classification call in a run. It is the cache-controlled prefix.
func pivotContext(pivot model.PivotProduct, spec model.EnrichedSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", pivot.Title)
	if pivot.Brand != "" {
		fmt.Fprintf(&sb, "Brand: %s\n", pivot.Brand)
	}
	if spec.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", spec.Category)
	} else if pivot.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", pivot.Category)
	}
	for k, v := range spec.KeySpecs {
		fmt.Fprintf(&sb, "Spec %s: %s\n", k, v)
	}
	for _, d := range spec.FunctionalDescriptors {
		fmt.Fprintf(&sb, "Function: %s\n", d)
	}
	return sb.String()
}

// Classify labels one offer against the pivot. An ErrUnparsable return means
// the call succeeded but the response was not valid JSON; the offer goes to
// the audit list.
func (c *Classifier) Classify(ctx context.Context, pivot model.PivotProduct, spec model.EnrichedSpec, offer model.Offer) (model.Classification, error) {
	system := anthropic.BuildCachedSystemBlocks(fmt.Sprintf(classifySystemPrompt, pivotContext(pivot, spec)))

	prompt := fmt.Sprintf(classifyUserPrompt, offer.Title, offer.Price, offer.Condition, offer.SellerName)

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 256,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return model.Classification{}, eris.Wrap(err, "classifier: create message")
	}
	recordUsage(c.usage, AgentClassifier, c.model, resp)

	var parsed struct {
		Label        string  `json:"label"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
		CategoryTag  string  `json:"category_tag"`
		SpecVariance float64 `json:"spec_variance"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(extractText(resp))), &parsed); err != nil {
		zap.L().Warn("classifier: unparsable response",
			zap.String("item_id", offer.ItemID),
			zap.Error(err),
		)
		return model.Classification{}, eris.Wrap(ErrUnparsable, "classifier")
	}

	label := model.ClassLabel(strings.ToLower(parsed.Label))
	if label != model.LabelComparable && label != model.LabelExcluded {
		return model.Classification{}, eris.Wrap(ErrUnparsable, "classifier: unknown label")
	}

	return model.Classification{
		ItemID:       offer.ItemID,
		Label:        label,
		Confidence:   parsed.Confidence,
		Reasoning:    parsed.Reasoning,
		CategoryTag:  parsed.CategoryTag,
		SpecVariance: parsed.SpecVariance,
	}, nil
}

// bundleKeywords mark multi-unit or kit listings that are never comparable
// one-to-one with a single unit.
var bundleKeywords = []string{
	"kit ", " kit", "lote", "bundle", "paquete", "combo",
	"juego de", "set de", "pack ", " pack", "piezas", "pzas",
	"x2", "x3", "x4", "2 pzs", "3 pzs",
}

// specPattern matches quantified spec tokens whose values must agree between
// pivot and offer. Units chosen to avoid false hits on plain words.
var specPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(gb|tb|mb|mah|ghz|hz|mp|ml|kg|cm|mm|pulgadas|")`)

// PreFilter applies deterministic exclusion checks before any model call.
// Returns the exclusion reason and true when the offer cannot be comparable.
func PreFilter(pivot model.PivotProduct, spec model.EnrichedSpec, offer model.Offer) (string, bool) {
	title := strings.ToLower(offer.Title)

	for _, kw := range bundleKeywords {
		if strings.Contains(title, kw) {
			return "bundle or multi-unit listing", true
		}
	}

	pivotText := strings.ToLower(pivot.Title)
	for _, v := range spec.KeySpecs {
		pivotText += " " + strings.ToLower(v)
	}

	pivotSpecs := extractSpecs(pivotText)
	offerSpecs := extractSpecs(title)
	for unit, offerVals := range offerSpecs {
		pivotVals, ok := pivotSpecs[unit]
		if !ok {
			continue
		}
		if !intersects(pivotVals, offerVals) {
			return fmt.Sprintf("spec conflict on %s", unit), true
		}
	}

	return "", false
}

func extractSpecs(text string) map[string][]string {
	out := make(map[string][]string)
	for _, m := range specPattern.FindAllStringSubmatch(text, -1) {
		value := strings.ReplaceAll(m[1], ",", ".")
		unit := strings.ToLower(m[2])
		out[unit] = append(out[unit], value)
	}
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
