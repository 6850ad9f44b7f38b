// Package usage accumulates token counts and API cost per pipeline run.
// One Tracker is created per run and never shared across runs, so concurrent
// bulk analyses cannot interleave their accounting.
package usage

import (
	"sync"

	"github.com/sells-group/pricing-cli/internal/model"
)

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps model IDs to their pricing.
type Rates map[string]ModelRate

// DefaultRates returns pricing for the models the pipeline calls.
func DefaultRates() Rates {
	return Rates{
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	}
}

// Cost computes the USD cost of a call. Unknown models cost 0.
func (r Rates) Cost(modelID string, inputTokens, outputTokens int) float64 {
	rate, ok := r[modelID]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
}

// Tracker accumulates usage for a single run. Safe for concurrent use by
// classification workers.
type Tracker struct {
	mu      sync.Mutex
	rates   Rates
	calls   int
	inTok   int
	outTok  int
	cost    float64
	byAgent map[string]model.AgentUsage
}

// NewTracker creates an empty per-run tracker.
func NewTracker(rates Rates) *Tracker {
	return &Tracker{
		rates:   rates,
		byAgent: make(map[string]model.AgentUsage),
	}
}

// Record adds one external call's token usage under the given agent name.
func (t *Tracker) Record(agent, modelID string, inputTokens, outputTokens int) {
	callCost := t.rates.Cost(modelID, inputTokens, outputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls++
	t.inTok += inputTokens
	t.outTok += outputTokens
	t.cost += callCost

	au := t.byAgent[agent]
	au.InputTokens += inputTokens
	au.OutputTokens += outputTokens
	au.Calls++
	au.CostUSD += callCost
	t.byAgent[agent] = au
}

// Summary snapshots the accumulated usage for the run.
func (t *Tracker) Summary() model.TokenUsageSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	byAgent := make(map[string]model.AgentUsage, len(t.byAgent))
	for k, v := range t.byAgent {
		byAgent[k] = v
	}

	return model.TokenUsageSummary{
		TotalInputTokens:  t.inTok,
		TotalOutputTokens: t.outTok,
		TotalCostUSD:      t.cost,
		TotalCalls:        t.calls,
		ByAgent:           byAgent,
	}
}
