package pipeline

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/resilience"
	"github.com/sells-group/pricing-cli/pkg/meli"
)

// Extractor resolves a product reference into the pivot product.
type Extractor interface {
	Extract(ctx context.Context, productRef string) (model.PivotProduct, error)
}

// Searcher runs one marketplace query and returns raw offers.
type Searcher interface {
	Search(ctx context.Context, query string, priceMin, priceMax float64, limit int) ([]model.Offer, error)
}

// MeliExtractor implements Extractor over the MercadoLibre items API. A
// breaker sheds item lookups after repeated transient failures so bulk runs
// fail fast instead of timing out product by product.
type MeliExtractor struct {
	client  meli.Client
	breaker *resilience.CircuitBreaker
}

// NewMeliExtractor wraps a meli client as an Extractor.
func NewMeliExtractor(client meli.Client) *MeliExtractor {
	return &MeliExtractor{
		client:  client,
		breaker: resilience.NewCircuitBreaker("meli_items", resilience.CircuitBreakerConfig{}),
	}
}

// Extract fetches the listing behind productRef. The ref may be a bare item
// ID or a listing URL containing one.
func (e *MeliExtractor) Extract(ctx context.Context, productRef string) (model.PivotProduct, error) {
	itemID := parseItemID(productRef)
	if itemID == "" {
		return model.PivotProduct{}, eris.Errorf("extract: no item id in %q", productRef)
	}

	item, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*meli.Item, error) {
		it, getErr := e.client.GetItem(ctx, itemID)
		if getErr != nil {
			return nil, markTransient(eris.Wrap(getErr, "extract: get item"))
		}
		return it, nil
	})
	if err != nil {
		return model.PivotProduct{}, err
	}

	attrs := make(map[string]string, len(item.Attributes))
	for _, a := range item.Attributes {
		if a.ValueName != "" {
			attrs[a.ID] = a.ValueName
		}
	}

	return model.PivotProduct{
		ProductID:  item.ID,
		Title:      item.Title,
		Brand:      item.AttributeValue("BRAND"),
		Price:      item.Price,
		Currency:   item.CurrencyID,
		Condition:  item.Condition,
		Category:   item.CategoryID,
		Attributes: attrs,
		ImageURL:   item.Thumbnail,
		URL:        item.Permalink,
	}, nil
}

// itemIDPattern matches MercadoLibre item IDs: bare (MLM123456789) or as
// embedded in permalinks (MLM-123456789).
var itemIDPattern = regexp.MustCompile(`(?i)\b(ML[A-Z])-?(\d{6,})\b`)

// parseItemID extracts a MercadoLibre item ID from a bare ID or listing URL.
func parseItemID(ref string) string {
	m := itemIDPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1]) + m[2]
}

// MeliSearcher implements Searcher over the MercadoLibre search API. The
// fan-out shares one breaker, so an outage stops the whole batch after a few
// queries rather than retrying every query independently.
type MeliSearcher struct {
	client  meli.Client
	breaker *resilience.CircuitBreaker
}

// NewMeliSearcher wraps a meli client as a Searcher.
func NewMeliSearcher(client meli.Client) *MeliSearcher {
	return &MeliSearcher{
		client:  client,
		breaker: resilience.NewCircuitBreaker("meli_search", resilience.CircuitBreakerConfig{}),
	}
}

func (s *MeliSearcher) Search(ctx context.Context, query string, priceMin, priceMax float64, limit int) ([]model.Offer, error) {
	resp, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*meli.SearchResponse, error) {
		r, searchErr := s.client.Search(ctx, query,
			meli.WithPriceRange(priceMin, priceMax),
			meli.WithLimit(limit))
		if searchErr != nil {
			return nil, markTransient(eris.Wrap(searchErr, "search"))
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	offers := make([]model.Offer, 0, len(resp.Results))
	for _, r := range resp.Results {
		offers = append(offers, model.Offer{
			ItemID:     r.ID,
			Title:      r.Title,
			Price:      r.Price,
			SellerName: r.Seller.Nickname,
			Condition:  r.Condition,
			ImageURL:   r.Thumbnail,
			URL:        r.Permalink,
		})
	}
	return offers, nil
}

// markTransient promotes retryable API status codes to transient errors so
// the retry policy picks them up.
func markTransient(err error) error {
	var se *meli.StatusError
	if errors.As(err, &se) && resilience.RetryableStatus(se.StatusCode) {
		return resilience.MarkTransient(err, se.StatusCode)
	}
	return err
}
