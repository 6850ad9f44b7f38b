package model

// ClassLabel is the outcome of comparing one offer against the pivot product.
type ClassLabel string

const (
	LabelComparable ClassLabel = "comparable"
	LabelExcluded   ClassLabel = "excluded"
)

// Classification is the per-offer result of one classification pass.
// Ephemeral: it is not persisted beyond the run.
type Classification struct {
	ItemID       string     `json:"item_id"`
	Label        ClassLabel `json:"label"`
	Confidence   float64    `json:"confidence"`
	Reasoning    string     `json:"reasoning,omitempty"`
	CategoryTag  string     `json:"category_tag,omitempty"`
	SpecVariance float64    `json:"spec_variance,omitempty"`
}

// Comparable reports whether the classifier accepted the offer outright.
func (c Classification) Comparable() bool {
	return c.Label == LabelComparable
}

// ComparableSet is the deduplicated union of offers accepted across both
// classification passes. Statistics operate on this set only.
type ComparableSet struct {
	Offers       []Offer `json:"offers"`
	Pass1Count   int     `json:"pass1_count"`
	Pass2Count   int     `json:"pass2_count"`
	Unclassified int     `json:"unclassified"`
}

// Prices returns the offer prices in set order.
func (s ComparableSet) Prices() []float64 {
	out := make([]float64, len(s.Offers))
	for i, o := range s.Offers {
		out[i] = o.Price
	}
	return out
}
