package model

// PivotProduct is the product being priced: the reference point every market
// offer is compared against. Built once by the extractor and immutable afterward.
type PivotProduct struct {
	ProductID  string            `json:"product_id"`
	Title      string            `json:"title"`
	Brand      string            `json:"brand,omitempty"`
	Price      float64           `json:"price"`
	Currency   string            `json:"currency,omitempty"`
	Condition  string            `json:"condition,omitempty"`
	Category   string            `json:"category,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ImageURL   string            `json:"image_url,omitempty"`
	URL        string            `json:"url,omitempty"`
}

// EnrichedSpec holds the LLM-derived specification profile of the pivot
// product. The pipeline must work with a zero value: enrichment is optional.
type EnrichedSpec struct {
	Category              string            `json:"category,omitempty"`
	Subcategory           string            `json:"subcategory,omitempty"`
	KeySpecs              map[string]string `json:"key_specs,omitempty"`
	FunctionalDescriptors []string          `json:"functional_descriptors,omitempty"`
	MarketSegment         string            `json:"market_segment,omitempty"`
	SearchPatterns        []string          `json:"search_patterns,omitempty"`
}

// IsZero reports whether no enrichment data is present.
func (e EnrichedSpec) IsZero() bool {
	return e.Category == "" && len(e.KeySpecs) == 0 &&
		len(e.FunctionalDescriptors) == 0 && len(e.SearchPatterns) == 0
}

// SearchStrategy is the computed query plan for finding comparable offers.
// Immutable once planned.
type SearchStrategy struct {
	PrimaryQuery       string   `json:"primary_query"`
	AlternativeQueries []string `json:"alternative_queries,omitempty"`
	ExcludeTerms       []string `json:"exclude_terms,omitempty"`
	PriceMin           float64  `json:"price_min"`
	PriceMax           float64  `json:"price_max"`
	Reasoning          string   `json:"reasoning,omitempty"`
	Fallback           bool     `json:"fallback,omitempty"` // true when derived from the raw title
}

// Queries returns the primary query followed by the alternatives.
func (s SearchStrategy) Queries() []string {
	out := make([]string, 0, 1+len(s.AlternativeQueries))
	if s.PrimaryQuery != "" {
		out = append(out, s.PrimaryQuery)
	}
	return append(out, s.AlternativeQueries...)
}
