// Package pipeline orchestrates the pricing analysis: extract pivot, enrich,
// plan queries, collect offers, filter, classify, compute statistics,
// recommend, and attach profitability. Every stage past extraction has a
// fallback; a run only aborts when the pivot itself cannot be resolved.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pricing-cli/internal/agents"
	"github.com/sells-group/pricing-cli/internal/commission"
	"github.com/sells-group/pricing-cli/internal/config"
	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/resilience"
	"github.com/sells-group/pricing-cli/internal/stats"
	"github.com/sells-group/pricing-cli/internal/store"
	"github.com/sells-group/pricing-cli/internal/usage"
	"github.com/sells-group/pricing-cli/pkg/anthropic"
)

// SpecEnricher derives the pivot's specification profile.
type SpecEnricher interface {
	Enrich(ctx context.Context, pivot model.PivotProduct) (model.EnrichedSpec, error)
}

// QueryPlanner generates the search strategy.
type QueryPlanner interface {
	Plan(ctx context.Context, pivot model.PivotProduct, spec model.EnrichedSpec) (model.SearchStrategy, error)
}

// PriceRecommender produces the pricing recommendation from statistics.
type PriceRecommender interface {
	Recommend(ctx context.Context, pivot model.PivotProduct, req model.AnalysisRequest, stats model.PriceStatistics) (model.PricingRecommendation, error)
}

// AgentSet bundles the reasoning capabilities of one run.
type AgentSet struct {
	Enricher    SpecEnricher
	Planner     QueryPlanner
	Classifier  OfferClassifier
	Recommender PriceRecommender
}

// AgentFactory builds an AgentSet bound to a run's usage recorder. Each run
// gets its own tracker, so agents are constructed per run.
type AgentFactory func(rec agents.UsageRecorder) AgentSet

// NewAgentFactory wires the production agents over one Anthropic client.
func NewAgentFactory(ai anthropic.Client, cfg config.AnthropicConfig, maxAlternatives int) AgentFactory {
	return func(rec agents.UsageRecorder) AgentSet {
		return AgentSet{
			Enricher:    agents.NewEnricher(ai, cfg.HaikuModel, rec),
			Planner:     agents.NewStrategist(ai, cfg.SonnetModel, maxAlternatives, rec),
			Classifier:  agents.NewClassifier(ai, cfg.HaikuModel, rec),
			Recommender: agents.NewRecommender(ai, cfg.SonnetModel, rec),
		}
	}
}

// Pipeline runs pricing analyses.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	extractor Extractor
	searcher  Searcher
	agentsFor AgentFactory
	calc      *commission.Calculator
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, extractor Extractor, searcher Searcher, factory AgentFactory) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		extractor: extractor,
		searcher:  searcher,
		agentsFor: factory,
		calc:      commission.NewCalculator(cfg.Commission),
	}
}

// applyDefaults fills unset request fields from configuration.
func applyDefaults(req *model.AnalysisRequest, cfg config.PipelineConfig) {
	if req.PriceTolerance <= 0 {
		req.PriceTolerance = cfg.PriceTolerance
	}
	if req.MaxOffers <= 0 {
		req.MaxOffers = cfg.MaxOffers
	}
	if req.TargetMarginPercent <= 0 {
		req.TargetMarginPercent = cfg.TargetMarginPercent
	}
}

// Run executes the full analysis for one product. Cancelling ctx ends the
// run at the next stage boundary: the run is marked cancelled, no summary is
// published, and the cancellation error is returned.
func (p *Pipeline) Run(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error) {
	applyDefaults(&req, p.cfg.Pipeline)

	log := zap.L().With(zap.String("product_ref", req.ProductRef))
	log.Info("pipeline: starting analysis")
	start := time.Now()

	tracker := usage.NewTracker(p.cfg.Rates)
	ag := p.agentsFor(tracker)

	result := &model.AnalysisResult{Request: req}

	run, err := p.store.CreateRun(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result.RunID = run.ID
	log = log.With(zap.String("run_id", run.ID))

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	addDiag := func(stage, code, message string) {
		result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
			Stage: stage, Code: code, Message: message,
		})
	}

	stageTimeout := time.Duration(p.cfg.Pipeline.StageTimeoutSecs) * time.Second
	if stageTimeout <= 0 {
		stageTimeout = time.Minute
	}

	trackStage := func(name string, fn func(ctx context.Context) (*model.StageResult, error)) *model.StageResult {
		stageID, stageErr := p.store.CreateStage(ctx, run.ID, name)
		if stageErr != nil {
			log.Warn("pipeline: failed to create stage", zap.String("stage", name), zap.Error(stageErr))
		}

		stageCtx, cancel := context.WithTimeout(ctx, stageTimeout)
		stageStart := time.Now()
		sr, fnErr := fn(stageCtx)
		cancel()
		duration := time.Since(stageStart).Milliseconds()

		if sr == nil {
			sr = &model.StageResult{}
		}
		sr.Name = name
		sr.Duration = duration

		switch {
		case fnErr != nil:
			sr.Status = model.StageStatusFailed
			sr.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		case sr.Status == "":
			sr.Status = model.StageStatusComplete
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		default:
			log.Info("pipeline: stage finished",
				zap.String("stage", name),
				zap.String("status", string(sr.Status)),
				zap.Int64("duration_ms", duration),
			)
		}

		if stageID != "" {
			_ = p.store.CompleteStage(ctx, stageID, sr)
		}
		result.Stages = append(result.Stages, *sr)
		return sr
	}

	finish := func(status model.RunStatus) {
		result.Usage = tracker.Summary()
		result.Duration = time.Since(start).Seconds()
		if saveErr := p.store.SaveRunResult(ctx, run.ID, status, result); saveErr != nil {
			log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
		}
	}

	// A caller abort is not an analysis outcome. Fallbacks cover stage
	// failures, not cancellation: once ctx is done the run stops at the next
	// stage boundary and no summary is ever saved for it.
	cancelled := func() error {
		ctxErr := ctx.Err()
		if ctxErr == nil {
			return nil
		}
		// The status write must outlive the cancelled run context.
		if statusErr := p.store.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, model.RunStatusCancelled); statusErr != nil {
			log.Warn("pipeline: failed to mark run cancelled", zap.Error(statusErr))
		}
		log.Warn("pipeline: run cancelled", zap.Error(ctxErr))
		return eris.Wrap(ctxErr, "pipeline: run cancelled")
	}

	// ===== Extract: the only stage whose failure aborts the run =====
	var pivot model.PivotProduct
	extractStage := trackStage("extract", func(ctx context.Context) (*model.StageResult, error) {
		pv, exErr := resilience.Retry(ctx, resilience.Policy{Attempts: p.cfg.Pipeline.SearchRetries + 1}, "extract",
			func(ctx context.Context) (model.PivotProduct, error) {
				return p.extractor.Extract(ctx, req.ProductRef)
			})
		if exErr != nil {
			return nil, exErr
		}
		pivot = pv
		return &model.StageResult{
			Metadata: map[string]any{"product_id": pv.ProductID, "price": pv.Price},
		}, nil
	})
	if extractStage.Status == model.StageStatusFailed {
		finish(model.RunStatusAborted)
		return result, eris.Errorf("pipeline: extraction failed: %s", extractStage.Error)
	}
	result.Pivot = pivot
	setStatus(model.RunStatusExtracted)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	// ===== Enrich: degrades to the raw listing data =====
	var spec model.EnrichedSpec
	trackStage("enrich", func(ctx context.Context) (*model.StageResult, error) {
		sp, enErr := ag.Enricher.Enrich(ctx, pivot)
		if enErr != nil {
			addDiag("enrich", "enrichment_unavailable", enErr.Error())
			return &model.StageResult{Status: model.StageStatusDegraded, Error: enErr.Error()}, nil
		}
		spec = sp
		return nil, nil
	})
	result.Enrichment = spec
	setStatus(model.RunStatusEnriched)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	// ===== Strategize: degrades to the title-derived fallback query =====
	band := BandAround(pivot.Price, req.PriceTolerance)

	var strategy model.SearchStrategy
	trackStage("strategize", func(ctx context.Context) (*model.StageResult, error) {
		st, planErr := ag.Planner.Plan(ctx, pivot, spec)
		if planErr != nil {
			addDiag("strategize", "planner_fallback", planErr.Error())
			st = agents.FallbackStrategy(pivot)
		}
		strategy = normalizeStrategy(st, band)
		return &model.StageResult{
			Metadata: map[string]any{
				"queries":  len(strategy.Queries()),
				"fallback": strategy.Fallback,
			},
		}, nil
	})
	result.Strategy = strategy
	setStatus(model.RunStatusStrategized)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	// ===== Search =====
	var agg AggregateResult
	trackStage("search", func(ctx context.Context) (*model.StageResult, error) {
		agg = CollectOffers(ctx, p.searcher, strategy, pivot.ProductID, req.MaxOffers, p.cfg.Pipeline.SearchFanout,
			resilience.Policy{Attempts: p.cfg.Pipeline.SearchRetries + 1})

		sr := &model.StageResult{
			Metadata: map[string]any{
				"offers":         len(agg.Offers),
				"queries_run":    agg.QueriesRun,
				"queries_failed": len(agg.FailedQueries),
			},
		}
		if len(agg.Offers) == 0 {
			addDiag("search", "no_offers", "no offers found for any query")
			sr.Status = model.StageStatusDegraded
		}
		return sr, nil
	})
	result.RawOfferCount = len(agg.Offers)
	setStatus(model.RunStatusSearched)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	// ===== Range filter =====
	var filtered []model.Offer
	trackStage("range_filter", func(ctx context.Context) (*model.StageResult, error) {
		kept, outOfBand := FilterByRange(agg.Offers, band)
		filtered = kept
		result.Excluded = append(result.Excluded, outOfBand...)
		return &model.StageResult{
			Metadata: map[string]any{"kept": len(kept), "out_of_band": len(outOfBand)},
		}, nil
	})
	result.FilteredOffers = filtered
	setStatus(model.RunStatusRangeFiltered)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	// ===== Classify =====
	var outcome ClassifyOutcome
	trackStage("classify", func(ctx context.Context) (*model.StageResult, error) {
		outcome = ClassifyOffers(ctx, ag.Classifier, pivot, spec, filtered, ClassifyOptions{
			Concurrency:         p.cfg.Pipeline.ClassifyConcurrency,
			RatePerSec:          p.cfg.Pipeline.ClassifyRatePerSec,
			ConfidenceThreshold: p.cfg.Pipeline.ConfidenceThreshold,
			Retry:               resilience.Policy{Attempts: p.cfg.Pipeline.ClassifyRetries + 1},
		})

		sr := &model.StageResult{
			Metadata: map[string]any{
				"pass1":        outcome.Set.Pass1Count,
				"pass2":        outcome.Set.Pass2Count,
				"unclassified": outcome.Set.Unclassified,
			},
		}
		if outcome.Set.Unclassified > 0 {
			addDiag("classify", "unclassified_offers", "some offers could not be classified and were excluded")
			sr.Status = model.StageStatusDegraded
		}
		return sr, nil
	})
	result.Comparables = outcome.Set
	result.Excluded = append(result.Excluded, outcome.Excluded...)
	setStatus(model.RunStatusClassified)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	// ===== Statistics: pure, defined over any set size =====
	trackStage("statistics", func(ctx context.Context) (*model.StageResult, error) {
		result.Statistics = stats.Compute(outcome.Set)
		return &model.StageResult{
			Metadata: map[string]any{
				"count":            result.Statistics.Overall.Count,
				"outliers_removed": result.Statistics.Overall.OutliersRemoved,
			},
		}, nil
	})
	setStatus(model.RunStatusStatisticized)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	if len(outcome.Set.Offers) < p.cfg.Pipeline.MinComparables {
		addDiag("statistics", "insufficient_comparables", "fewer comparables than required for a confident recommendation")
	}

	// ===== Recommend: degrades to the cost-based fallback =====
	var rec model.PricingRecommendation
	trackStage("recommend", func(ctx context.Context) (*model.StageResult, error) {
		r, recErr := ag.Recommender.Recommend(ctx, pivot, req, result.Statistics)
		if recErr != nil {
			addDiag("recommend", "recommender_fallback", recErr.Error())
			r = FallbackRecommendation(req)
		}
		rec = ValidateRecommendation(r, band, req, len(outcome.Set.Offers), p.cfg.Pipeline.MinComparables)

		sr := &model.StageResult{
			Metadata: map[string]any{
				"price":    rec.RecommendedPrice,
				"strategy": rec.Strategy,
			},
		}
		if rec.FallbackDerived {
			sr.Status = model.StageStatusDegraded
		}
		return sr, nil
	})
	setStatus(model.RunStatusRecommended)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	// ===== Profitability: fatal for this stage only =====
	trackStage("profitability", func(ctx context.Context) (*model.StageResult, error) {
		breakdown, profErr := p.calc.Profit(rec.RecommendedPrice, req.CostPrice, req.WeightKg)
		if profErr != nil {
			addDiag("profitability", "profit_unavailable", profErr.Error())
			return &model.StageResult{Status: model.StageStatusFailed, Error: profErr.Error()}, nil
		}
		result.Profitability = &breakdown
		rec.ProfitPerUnit = breakdown.NetProfit
		rec.ROIPercent = breakdown.ROIPercent
		rec.ProfitComputed = true
		return &model.StageResult{
			Metadata: map[string]any{"net_profit": breakdown.NetProfit, "roi_pct": breakdown.ROIPercent},
		}, nil
	})
	result.Recommendation = &rec
	setStatus(model.RunStatusProfitComputed)
	if cErr := cancelled(); cErr != nil {
		return result, cErr
	}

	finish(model.RunStatusSummarized)

	log.Info("pipeline: analysis complete",
		zap.Float64("recommended_price", rec.RecommendedPrice),
		zap.Int("comparables", len(outcome.Set.Offers)),
		zap.Int("total_tokens", result.Usage.TotalTokens()),
		zap.Float64("cost_usd", result.Usage.TotalCostUSD),
		zap.Float64("duration_s", result.Duration),
	)

	return result, nil
}

// normalizeStrategy dedupes alternative queries against the primary and each
// other case-insensitively, and stamps the price band onto the strategy so
// searches can push the bounds down to the marketplace.
func normalizeStrategy(s model.SearchStrategy, band PriceBand) model.SearchStrategy {
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(s.PrimaryQuery)): true}

	var alts []string
	for _, q := range s.AlternativeQueries {
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		alts = append(alts, q)
	}
	s.AlternativeQueries = alts
	s.PriceMin = band.Min
	s.PriceMax = band.Max
	return s
}

// BulkItem is one product's outcome within a bulk analysis.
type BulkItem struct {
	Request model.AnalysisRequest
	Result  *model.AnalysisResult
	Err     error
}

// RunBulk analyzes every request with bounded concurrency. One product's
// failure never drops it from the output or stops the others: the returned
// slice always has one item per request, in request order.
func (p *Pipeline) RunBulk(ctx context.Context, reqs []model.AnalysisRequest, maxConcurrent int) []BulkItem {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	items := make([]BulkItem, len(reqs))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrent)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := p.Run(ctx, req)
			items[i] = BulkItem{Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return items
}
