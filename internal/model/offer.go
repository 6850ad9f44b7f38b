package model

// Offer condition values. Anything else is normalized to ConditionUnknown.
const (
	ConditionNew     = "new"
	ConditionUsed    = "used"
	ConditionUnknown = "unknown"
)

// Offer is a single market listing returned by the search capability.
// Offers are never mutated after creation, only filtered and classified.
type Offer struct {
	ItemID      string  `json:"item_id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	SellerName  string  `json:"seller_name,omitempty"`
	Condition   string  `json:"condition"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	URL         string  `json:"url,omitempty"`
}

// NormalizedCondition maps arbitrary condition strings onto the three buckets
// statistics are computed over.
func (o Offer) NormalizedCondition() string {
	switch o.Condition {
	case ConditionNew, ConditionUsed:
		return o.Condition
	default:
		return ConditionUnknown
	}
}

// ExcludedOffer is an offer rejected during classification, retained with its
// exclusion reason for audit.
type ExcludedOffer struct {
	Offer  Offer  `json:"offer"`
	Reason string `json:"reason"`
}
