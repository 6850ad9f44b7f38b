package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/pricing-cli/internal/agents"
	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/resilience"
)

// OfferClassifier labels a single offer against the pivot product.
// agents.Classifier is the production implementation.
type OfferClassifier interface {
	Classify(ctx context.Context, pivot model.PivotProduct, spec model.EnrichedSpec, offer model.Offer) (model.Classification, error)
}

// ClassifyOptions bound the classification worker pool.
type ClassifyOptions struct {
	Concurrency         int
	RatePerSec          float64
	ConfidenceThreshold float64
	Retry               resilience.Policy
}

func (o ClassifyOptions) normalize() ClassifyOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.ConfidenceThreshold <= 0 {
		o.ConfidenceThreshold = 0.7
	}
	return o
}

// ClassifyOutcome is the full result of classifying one offer set.
type ClassifyOutcome struct {
	Set             model.ComparableSet
	Excluded        []model.ExcludedOffer
	Classifications []model.Classification
}

// ClassifyOffers labels every offer and merges the results with the two-pass
// acceptance rule. Deterministic pre-filters run first and skip the model
// call entirely. Classification calls run in a bounded worker pool; a call
// that fails or returns an unparsable response marks its offer excluded with
// confidence 0 and keeps it in the audit list, never dropping it silently.
func ClassifyOffers(ctx context.Context, classifier OfferClassifier, pivot model.PivotProduct, spec model.EnrichedSpec, offers []model.Offer, opts ClassifyOptions) ClassifyOutcome {
	opts = opts.normalize()

	var outcome ClassifyOutcome
	var toClassify []model.Offer

	for _, o := range offers {
		if reason, drop := agents.PreFilter(pivot, spec, o); drop {
			outcome.Excluded = append(outcome.Excluded, model.ExcludedOffer{Offer: o, Reason: reason})
			continue
		}
		toClassify = append(toClassify, o)
	}

	classifications := make([]model.Classification, len(toClassify))
	unclassified := make([]bool, len(toClassify))

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, offer := range toClassify {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gCtx); err != nil {
					classifications[i] = failedClassification(offer)
					unclassified[i] = true
					return nil
				}
			}

			c, err := resilience.Retry(gCtx, opts.Retry, "classify", func(ctx context.Context) (model.Classification, error) {
				return classifier.Classify(ctx, pivot, spec, offer)
			})
			if err != nil {
				if !errors.Is(err, agents.ErrUnparsable) {
					zap.L().Warn("classify: call failed",
						zap.String("item_id", offer.ItemID),
						zap.Error(err),
					)
				}
				classifications[i] = failedClassification(offer)
				unclassified[i] = true
				return nil
			}
			classifications[i] = c
			return nil
		})
	}
	_ = g.Wait()

	outcome.Classifications = classifications

	// Offers whose classification never arrived are excluded with confidence
	// 0 and kept for audit. They must not reach the two-pass merge: the
	// pass-2 predicate would otherwise admit them as uncertain rejections.
	var mergeOffers []model.Offer
	var mergeClass []model.Classification
	for i, o := range toClassify {
		if unclassified[i] {
			outcome.Set.Unclassified++
			outcome.Excluded = append(outcome.Excluded, model.ExcludedOffer{
				Offer:  o,
				Reason: classifications[i].Reasoning,
			})
			continue
		}
		mergeOffers = append(mergeOffers, o)
		mergeClass = append(mergeClass, classifications[i])
	}

	merged, rejected := MergeTwoPass(mergeOffers, mergeClass, opts.ConfidenceThreshold)
	merged.Unclassified = outcome.Set.Unclassified
	outcome.Set = merged
	outcome.Excluded = append(outcome.Excluded, rejected...)

	zap.L().Info("classify: merged comparable set",
		zap.Int("offers_in", len(offers)),
		zap.Int("prefiltered", len(offers)-len(toClassify)),
		zap.Int("pass1", outcome.Set.Pass1Count),
		zap.Int("pass2", outcome.Set.Pass2Count),
		zap.Int("unclassified", outcome.Set.Unclassified),
	)

	return outcome
}

func failedClassification(offer model.Offer) model.Classification {
	return model.Classification{
		ItemID:     offer.ItemID,
		Label:      model.LabelExcluded,
		Confidence: 0,
		Reasoning:  "classification unavailable",
	}
}

// MergeTwoPass applies the two-pass acceptance rule over per-offer
// classifications:
//
//	pass 1 accepts label == comparable with confidence at or above threshold;
//	pass 2 provisionally retains label == excluded with confidence below
//	threshold, where the classifier rejected without certainty.
//
// The final set is the deduplicated union keyed by item ID, so it is always a
// superset of pass-1-only acceptance. Everything else lands in the rejected
// list with its reason.
func MergeTwoPass(offers []model.Offer, classifications []model.Classification, threshold float64) (model.ComparableSet, []model.ExcludedOffer) {
	var set model.ComparableSet
	var rejected []model.ExcludedOffer

	seen := make(map[string]bool)
	for i, o := range offers {
		if i >= len(classifications) {
			break
		}
		c := classifications[i]

		pass1 := c.Label == model.LabelComparable && c.Confidence >= threshold
		pass2 := c.Label == model.LabelExcluded && c.Confidence < threshold

		if !pass1 && !pass2 {
			reason := c.Reasoning
			if reason == "" {
				reason = fmt.Sprintf("%s at confidence %.2f", c.Label, c.Confidence)
			}
			rejected = append(rejected, model.ExcludedOffer{Offer: o, Reason: reason})
			continue
		}
		if seen[o.ItemID] {
			continue
		}
		seen[o.ItemID] = true

		set.Offers = append(set.Offers, o)
		if pass1 {
			set.Pass1Count++
		} else {
			set.Pass2Count++
		}
	}

	return set, rejected
}
