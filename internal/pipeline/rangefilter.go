package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/pricing-cli/internal/model"
)

// PriceBand is the acceptable price window around the pivot price.
type PriceBand struct {
	Min float64
	Max float64
}

// BandAround computes the filter window: pivot price scaled down and up by
// the tolerance fraction. A tolerance of 0.30 around 1000 yields [700, 1300].
func BandAround(pivotPrice, tolerance float64) PriceBand {
	return PriceBand{
		Min: pivotPrice * (1 - tolerance),
		Max: pivotPrice * (1 + tolerance),
	}
}

// Contains reports whether the price falls inside the band, bounds included.
func (b PriceBand) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// FilterByRange splits offers into those inside the band and those outside,
// preserving input order. Offers with a non-positive price are treated as
// unpriced listings and excluded.
func FilterByRange(offers []model.Offer, band PriceBand) ([]model.Offer, []model.ExcludedOffer) {
	var kept []model.Offer
	var excluded []model.ExcludedOffer

	for _, o := range offers {
		switch {
		case o.Price <= 0:
			excluded = append(excluded, model.ExcludedOffer{
				Offer:  o,
				Reason: "no price",
			})
		case !band.Contains(o.Price):
			excluded = append(excluded, model.ExcludedOffer{
				Offer:  o,
				Reason: fmt.Sprintf("price %.2f outside band [%.2f, %.2f]", o.Price, band.Min, band.Max),
			})
		default:
			kept = append(kept, o)
		}
	}

	zap.L().Debug("rangefilter: applied price band",
		zap.Float64("band_min", band.Min),
		zap.Float64("band_max", band.Max),
		zap.Int("kept", len(kept)),
		zap.Int("excluded", len(excluded)),
	)

	return kept, excluded
}
