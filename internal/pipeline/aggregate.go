package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/resilience"
)

// AggregateResult is the merged outcome of the search fan-out.
type AggregateResult struct {
	Offers        []model.Offer
	QueriesRun    int
	FailedQueries []string
}

// CollectOffers runs the strategy's queries against the searcher and merges
// the results. The primary query runs first; alternatives run only while the
// offer quota is unfilled, concurrently up to fanout. Merge order follows
// query order with first-seen-wins dedup by item ID, so the output is
// deterministic for a given set of per-query results. The pivot's own listing
// is always dropped, as is any offer whose title matches one of the
// strategy's exclude terms.
func CollectOffers(ctx context.Context, searcher Searcher, strategy model.SearchStrategy, pivotID string, maxOffers, fanout int, retry resilience.Policy) AggregateResult {
	if fanout <= 0 {
		fanout = 3
	}
	if maxOffers <= 0 {
		maxOffers = 50
	}

	queries := strategy.Queries()
	var result AggregateResult

	excludeTerms := make([]string, 0, len(strategy.ExcludeTerms))
	for _, term := range strategy.ExcludeTerms {
		if t := strings.ToLower(strings.TrimSpace(term)); t != "" {
			excludeTerms = append(excludeTerms, t)
		}
	}
	excludedTitle := func(title string) bool {
		title = strings.ToLower(title)
		for _, t := range excludeTerms {
			if strings.Contains(title, t) {
				return true
			}
		}
		return false
	}

	seen := make(map[string]bool)
	merge := func(offers []model.Offer) {
		for _, o := range offers {
			if len(result.Offers) >= maxOffers {
				return
			}
			if o.ItemID == "" || seen[o.ItemID] || o.ItemID == pivotID || excludedTitle(o.Title) {
				continue
			}
			seen[o.ItemID] = true
			result.Offers = append(result.Offers, o)
		}
	}

	runQuery := func(ctx context.Context, query string) ([]model.Offer, error) {
		return resilience.Retry(ctx, retry, "search", func(ctx context.Context) ([]model.Offer, error) {
			return searcher.Search(ctx, query, strategy.PriceMin, strategy.PriceMax, maxOffers)
		})
	}

	// The primary query runs alone so alternatives are skipped entirely when
	// it fills the quota; alternatives then run in fanout-sized batches.
	var batches [][]string
	if len(queries) > 0 {
		batches = append(batches, queries[:1])
	}
	for i := 1; i < len(queries); i += fanout {
		end := min(i+fanout, len(queries))
		batches = append(batches, queries[i:end])
	}

	for _, batch := range batches {
		if len(result.Offers) >= maxOffers {
			break
		}

		batchOffers := make([][]model.Offer, len(batch))
		batchErrs := make([]error, len(batch))

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(fanout)
		for i, q := range batch {
			g.Go(func() error {
				offers, err := runQuery(gCtx, q)
				batchOffers[i] = offers
				batchErrs[i] = err
				return nil
			})
		}
		_ = g.Wait()

		for i, q := range batch {
			result.QueriesRun++
			if batchErrs[i] != nil {
				result.FailedQueries = append(result.FailedQueries, q)
				zap.L().Warn("aggregate: query failed",
					zap.String("query", q),
					zap.Error(batchErrs[i]),
				)
				continue
			}
			merge(batchOffers[i])
		}
	}

	zap.L().Info("aggregate: collected offers",
		zap.Int("offers", len(result.Offers)),
		zap.Int("queries_run", result.QueriesRun),
		zap.Int("queries_failed", len(result.FailedQueries)),
	)

	return result
}
