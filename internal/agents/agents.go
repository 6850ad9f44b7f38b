// Package agents holds the LLM-backed reasoning steps of the pricing
// pipeline: spec enrichment, query planning, offer classification, and price
// recommendation. Each agent is a thin prompt-and-parse layer over the
// Anthropic client; everything deterministic lives outside this package.
package agents

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/pkg/anthropic"
)

// Agent names used for token usage attribution.
const (
	AgentEnricher    = "enricher"
	AgentStrategist  = "strategist"
	AgentClassifier  = "classifier"
	AgentRecommender = "recommender"
)

// ErrUnparsable marks a model response that could not be parsed into the
// expected JSON shape. Callers decide the fallback; the raw call still counts
// against the run's token budget.
var ErrUnparsable = eris.New("agents: unparsable model response")

// UsageRecorder receives token counts for every model call an agent makes.
type UsageRecorder interface {
	Record(agent, modelID string, inputTokens, outputTokens int)
}

func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func recordUsage(rec UsageRecorder, agent, model string, resp *anthropic.MessageResponse) {
	if rec == nil || resp == nil {
		return
	}
	rec.Record(agent, model,
		int(resp.Usage.InputTokens+resp.Usage.CacheCreationInputTokens+resp.Usage.CacheReadInputTokens),
		int(resp.Usage.OutputTokens))
}
