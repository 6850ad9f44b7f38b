package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricing-cli/internal/resilience"
	"github.com/sells-group/pricing-cli/pkg/meli"
)

func TestParseItemID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"bare id", "MLM123456789", "MLM123456789"},
		{"lowercase", "mlm123456789", "MLM123456789"},
		{"padded", "  MLM123456789 ", "MLM123456789"},
		{"permalink", "https://articulo.mercadolibre.com.mx/MLM-123456789-taladro-inalambrico-_JM", "MLM123456789"},
		{"argentina permalink", "https://articulo.mercadolibre.com.ar/MLA-987654321-producto", "MLA987654321"},
		{"no id", "https://www.mercadolibre.com.mx/", ""},
		{"empty", "", ""},
		{"too few digits", "MLM123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseItemID(tt.ref))
		})
	}
}

// fakeMeli implements meli.Client for adapter tests.
type fakeMeli struct {
	item      *meli.Item
	itemErr   error
	search    *meli.SearchResponse
	searchErr error
}

func (f *fakeMeli) GetItem(context.Context, string) (*meli.Item, error) {
	return f.item, f.itemErr
}

func (f *fakeMeli) Search(context.Context, string, ...meli.SearchOption) (*meli.SearchResponse, error) {
	return f.search, f.searchErr
}

func TestMeliExtractorMapsItem(t *testing.T) {
	t.Parallel()

	client := &fakeMeli{item: &meli.Item{
		ID:         "MLM123456789",
		Title:      "Taladro DeWalt",
		Price:      1499.5,
		CurrencyID: "MXN",
		Condition:  "new",
		CategoryID: "MLM1575",
		Permalink:  "https://articulo.mercadolibre.com.mx/MLM-123456789",
		Attributes: []meli.Attribute{
			{ID: "BRAND", ValueName: "DeWalt"},
			{ID: "VOLTAGE", ValueName: "20V"},
			{ID: "EMPTY", ValueName: ""},
		},
	}}

	pivot, err := NewMeliExtractor(client).Extract(context.Background(), "MLM123456789")

	require.NoError(t, err)
	assert.Equal(t, "MLM123456789", pivot.ProductID)
	assert.Equal(t, "DeWalt", pivot.Brand)
	assert.Equal(t, "20V", pivot.Attributes["VOLTAGE"])
	assert.NotContains(t, pivot.Attributes, "EMPTY")
}

func TestMeliExtractorRejectsBadRef(t *testing.T) {
	t.Parallel()

	_, err := NewMeliExtractor(&fakeMeli{}).Extract(context.Background(), "not-a-ref")
	assert.Error(t, err)
}

func TestMeliSearcherMapsOffers(t *testing.T) {
	t.Parallel()

	client := &fakeMeli{search: &meli.SearchResponse{
		Results: []meli.SearchResult{
			{ID: "MLM1", Title: "Taladro A", Price: 1200, Condition: "new", Seller: meli.Seller{Nickname: "TOOLS_MX"}},
		},
	}}

	offers, err := NewMeliSearcher(client).Search(context.Background(), "taladro", 700, 1300, 50)

	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "MLM1", offers[0].ItemID)
	assert.Equal(t, "TOOLS_MX", offers[0].SellerName)
}

func TestMeliSearcherShedsAfterRepeatedTransientFailures(t *testing.T) {
	t.Parallel()

	client := &fakeMeli{searchErr: &meli.StatusError{StatusCode: 503, Body: "down"}}
	searcher := NewMeliSearcher(client)

	for i := 0; i < 5; i++ {
		_, err := searcher.Search(context.Background(), "x", 0, 0, 10)
		require.Error(t, err)
	}

	// Breaker is open: the failing service is no longer called at all.
	client.searchErr = nil
	client.search = &meli.SearchResponse{}
	_, err := searcher.Search(context.Background(), "x", 0, 0, 10)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestMarkTransientPromotesRetryableStatus(t *testing.T) {
	t.Parallel()

	client := &fakeMeli{searchErr: &meli.StatusError{StatusCode: 429, Body: "slow down"}}

	_, err := NewMeliSearcher(client).Search(context.Background(), "x", 0, 0, 10)

	require.Error(t, err)
	assert.True(t, resilience.Retryable(err))

	client.searchErr = &meli.StatusError{StatusCode: 400, Body: "bad query"}
	_, err = NewMeliSearcher(client).Search(context.Background(), "x", 0, 0, 10)

	require.Error(t, err)
	assert.False(t, resilience.Retryable(err))
}
