package model

import "time"

// RunStatus tracks the pipeline state machine. States advance linearly;
// every state past "extracted" has a defined fallback, so "aborted" is only
// reachable when extraction itself fails. A caller abort ends the run as
// "cancelled": not an analysis outcome, and never summarized.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusExtracted      RunStatus = "extracted"
	RunStatusEnriched       RunStatus = "enriched"
	RunStatusStrategized    RunStatus = "strategized"
	RunStatusSearched       RunStatus = "searched"
	RunStatusRangeFiltered  RunStatus = "range_filtered"
	RunStatusClassified     RunStatus = "classified"
	RunStatusStatisticized  RunStatus = "statisticized"
	RunStatusRecommended    RunStatus = "recommended"
	RunStatusProfitComputed RunStatus = "profit_computed"
	RunStatusSummarized     RunStatus = "summarized"
	RunStatusAborted        RunStatus = "aborted"
	RunStatusCancelled      RunStatus = "cancelled"
)

// StageStatus is the outcome of one pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult records one stage's outcome for audit and debugging.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Diagnostic records a recoverable degradation that occurred during a run.
// The run still succeeds; the caller sees exactly what was degraded and why.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalysisRequest carries the caller-supplied parameters for one analysis.
type AnalysisRequest struct {
	ProductRef          string  `json:"product_ref"`
	CostPrice           float64 `json:"cost_price"`
	TargetMarginPercent float64 `json:"target_margin_percent"`
	PriceTolerance      float64 `json:"price_tolerance"`
	MaxOffers           int     `json:"max_offers"`
	WeightKg            float64 `json:"weight_kg,omitempty"`
}

// AnalysisResult is the full artifact set of one pipeline run.
type AnalysisResult struct {
	RunID          string                  `json:"run_id"`
	Request        AnalysisRequest         `json:"request"`
	Pivot          PivotProduct            `json:"pivot"`
	Enrichment     EnrichedSpec            `json:"enrichment"`
	Strategy       SearchStrategy          `json:"strategy"`
	RawOfferCount  int                     `json:"raw_offer_count"`
	FilteredOffers []Offer                 `json:"filtered_offers,omitempty"`
	Comparables    ComparableSet           `json:"comparables"`
	Excluded       []ExcludedOffer         `json:"excluded,omitempty"`
	Statistics     PriceStatistics         `json:"statistics"`
	Recommendation *PricingRecommendation  `json:"recommendation,omitempty"`
	Profitability  *ProfitabilityBreakdown `json:"profitability,omitempty"`
	Usage          TokenUsageSummary       `json:"usage"`
	Stages         []StageResult           `json:"stages"`
	Diagnostics    []Diagnostic            `json:"diagnostics,omitempty"`
	Duration       float64                 `json:"duration_seconds"`
}

// Run is the persisted record of an analysis run.
type Run struct {
	ID        string          `json:"id"`
	Request   AnalysisRequest `json:"request"`
	Status    RunStatus       `json:"status"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
