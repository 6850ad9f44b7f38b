// Package meli provides a client for the MercadoLibre items and search API.
package meli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// StatusError reports a non-2xx API response with its status code, so
// callers can decide whether the failure is worth retrying.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("meli: status %d: %s", e.StatusCode, e.Body)
}

// Client defines the MercadoLibre operations used by the pipeline.
type Client interface {
	// GetItem fetches a single listing by item ID (e.g. "MLM123456789").
	GetItem(ctx context.Context, itemID string) (*Item, error)
	// Search queries the site listing index and returns result pages.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// Item is a single listing from the items endpoint.
type Item struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Price      float64     `json:"price"`
	CurrencyID string      `json:"currency_id"`
	Condition  string      `json:"condition"`
	CategoryID string      `json:"category_id"`
	Permalink  string      `json:"permalink"`
	Thumbnail  string      `json:"thumbnail"`
	Attributes []Attribute `json:"attributes"`
}

// Attribute is a structured item attribute such as brand or model.
type Attribute struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ValueName string `json:"value_name"`
}

// AttributeValue returns the value of the attribute with the given ID, or "".
func (it *Item) AttributeValue(id string) string {
	for _, a := range it.Attributes {
		if a.ID == id {
			return a.ValueName
		}
	}
	return ""
}

// SearchResponse is the parsed search API response.
type SearchResponse struct {
	Query   string         `json:"query"`
	Paging  Paging         `json:"paging"`
	Results []SearchResult `json:"results"`
}

// Paging describes the result window.
type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SearchResult is a single listing in a search page.
type SearchResult struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	CurrencyID string  `json:"currency_id"`
	Condition  string  `json:"condition"`
	Permalink  string  `json:"permalink"`
	Thumbnail  string  `json:"thumbnail"`
	Seller     Seller  `json:"seller"`
}

// Seller identifies the listing's seller.
type Seller struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	priceMin float64
	priceMax float64
	limit    int
}

// WithPriceRange restricts results to the given price band. Zero bounds are
// left open.
func WithPriceRange(min, max float64) SearchOption {
	return func(o *searchOpts) {
		o.priceMin = min
		o.priceMax = max
	}
}

// WithLimit caps the number of results per page.
func WithLimit(n int) SearchOption {
	return func(o *searchOpts) {
		o.limit = n
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithAccessToken attaches an OAuth token to every request. Search without a
// token is rate limited far more aggressively.
func WithAccessToken(token string) Option {
	return func(c *httpClient) {
		c.accessToken = token
	}
}

// WithTimeout overrides the default 20s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL     string
	siteID      string
	accessToken string
	http        *http.Client
}

// NewClient creates a MercadoLibre client for the given site (e.g. "MLM").
func NewClient(siteID string, opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.mercadolibre.com",
		siteID:  siteID,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "meli: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "meli: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "meli: read response body")
	}
	return body, resp.StatusCode, nil
}

func (c *httpClient) GetItem(ctx context.Context, itemID string) (*Item, error) {
	itemID = strings.ToUpper(strings.TrimSpace(itemID))
	reqURL := fmt.Sprintf("%s/items/%s?include_attributes=all", c.baseURL, url.PathEscape(itemID))

	body, statusCode, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusNotFound {
		return nil, eris.Errorf("meli: item %s not found", itemID)
	}
	if statusCode != http.StatusOK {
		return nil, eris.Wrapf(&StatusError{StatusCode: statusCode, Body: string(body)}, "meli: get item %s", itemID)
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, eris.Wrap(err, "meli: unmarshal item")
	}
	return &item, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{limit: 50}
	for _, opt := range opts {
		opt(so)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", so.limit))
	if so.priceMin > 0 || so.priceMax > 0 {
		min, max := "*", "*"
		if so.priceMin > 0 {
			min = fmt.Sprintf("%.2f", so.priceMin)
		}
		if so.priceMax > 0 {
			max = fmt.Sprintf("%.2f", so.priceMax)
		}
		params.Set("price", min+"-"+max)
	}

	reqURL := fmt.Sprintf("%s/sites/%s/search?%s", c.baseURL, url.PathEscape(c.siteID), params.Encode())

	body, statusCode, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, eris.Wrap(&StatusError{StatusCode: statusCode, Body: string(body)}, "meli: search")
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "meli: unmarshal search response")
	}
	return &result, nil
}
