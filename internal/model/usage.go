package model

// AgentUsage is the token/cost breakdown for one agent within a run.
type AgentUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Calls        int     `json:"calls"`
	CostUSD      float64 `json:"cost_usd"`
}

// TokenUsageSummary aggregates external-call cost metrics for a single
// pipeline run. Each run owns exactly one summary; concurrent runs never
// share one.
type TokenUsageSummary struct {
	TotalInputTokens  int                   `json:"total_input_tokens"`
	TotalOutputTokens int                   `json:"total_output_tokens"`
	TotalCostUSD      float64               `json:"total_cost_usd"`
	TotalCalls        int                   `json:"total_calls"`
	ByAgent           map[string]AgentUsage `json:"by_agent,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (s TokenUsageSummary) TotalTokens() int {
	return s.TotalInputTokens + s.TotalOutputTokens
}
