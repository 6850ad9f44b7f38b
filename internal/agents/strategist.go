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

const strategySystemPrompt = `You plan marketplace search queries to find listings comparable to a reference product on MercadoLibre Mexico. Produce one primary query and up to %d alternatives, ordered most to least specific. Queries must be short Spanish search phrases a buyer would type, not sentences. Respond with a valid JSON object:
{"primary_query": "<query>", "alternative_queries": ["<query>"], "exclude_terms": ["<terms indicating non-comparable listings: accessories, parts, bundles>"], "reasoning": "<one sentence>"}`

const strategyUserPrompt = `Reference product:
Title: %s
Brand: %s
Category: %s
Key specs:
%s
Search patterns suggested by catalog analysis:
%s`

// Strategist plans the search queries used to collect comparable offers.
type Strategist struct {
	ai      anthropic.Client
	model   string
	usage   UsageRecorder
	maxAlts int
}

// NewStrategist creates a query planner calling the given model.
func NewStrategist(ai anthropic.Client, model string, maxAlternatives int, usage UsageRecorder) *Strategist {
	if maxAlternatives <= 0 {
		maxAlternatives = 5
	}
	return &Strategist{ai: ai, model: model, usage: usage, maxAlts: maxAlternatives}
}

// Plan generates a search strategy from the pivot and its enrichment. On any
// failure the caller falls back to FallbackStrategy.
func (s *Strategist) Plan(ctx context.Context, pivot model.PivotProduct, spec model.EnrichedSpec) (model.SearchStrategy, error) {
	var specs strings.Builder
	for k, v := range spec.KeySpecs {
		fmt.Fprintf(&specs, "- %s: %s\n", k, v)
	}
	if specs.Len() == 0 {
		specs.WriteString("(none)\n")
	}
	patterns := "(none)"
	if len(spec.SearchPatterns) > 0 {
		patterns = "- " + strings.Join(spec.SearchPatterns, "\n- ")
	}

	prompt := fmt.Sprintf(strategyUserPrompt,
		pivot.Title, pivot.Brand, pivot.Category, specs.String(), patterns)

	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: 1024,
		System:    []anthropic.SystemBlock{{Text: fmt.Sprintf(strategySystemPrompt, s.maxAlts)}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return model.SearchStrategy{}, eris.Wrap(err, "strategist: create message")
	}
	recordUsage(s.usage, AgentStrategist, s.model, resp)

	var strategy model.SearchStrategy
	if err := json.Unmarshal([]byte(cleanJSON(extractText(resp))), &strategy); err != nil {
		zap.L().Warn("strategist: unparsable response",
			zap.String("product_id", pivot.ProductID),
			zap.Error(err),
		)
		return model.SearchStrategy{}, eris.Wrap(ErrUnparsable, "strategist")
	}
	if strategy.PrimaryQuery == "" {
		return model.SearchStrategy{}, eris.Wrap(ErrUnparsable, "strategist: empty primary query")
	}

	if len(strategy.AlternativeQueries) > s.maxAlts {
		strategy.AlternativeQueries = strategy.AlternativeQueries[:s.maxAlts]
	}

	return strategy, nil
}

// FallbackStrategy derives a search query from the raw listing title when
// query planning fails: strip the brand token, keep words longer than three
// characters, take the first five.
func FallbackStrategy(pivot model.PivotProduct) model.SearchStrategy {
	brand := strings.ToLower(pivot.Brand)

	var words []string
	for _, w := range strings.Fields(pivot.Title) {
		if len([]rune(w)) <= 3 {
			continue
		}
		if brand != "" && strings.ToLower(w) == brand {
			continue
		}
		words = append(words, w)
		if len(words) == 5 {
			break
		}
	}

	query := strings.Join(words, " ")
	if query == "" {
		query = pivot.Title
	}

	return model.SearchStrategy{
		PrimaryQuery: query,
		Reasoning:    "derived from listing title",
		Fallback:     true,
	}
}
