package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultAPIURL is the production Buy API host.
	DefaultAPIURL = "https://api.ebay.com"
	// MaxPageSize is the largest page the Browse search accepts.
	MaxPageSize = 200
	// MaxQueryLength is the longest q parameter we send (the API allows 100).
	MaxQueryLength = 98
)

// ErrUnauthorized is returned when the marketplace rejects the bearer token.
var ErrUnauthorized = errors.New("marketplace rejected access token")

// ThrottleError is returned on HTTP 429.
type ThrottleError struct {
	// RetryAfter is the server supplied wait, zero when absent.
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("throttled by marketplace (retry after %s)", e.RetryAfter)
	}
	return "throttled by marketplace"
}

// TransientError wraps network failures and 5xx responses.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient marketplace error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient marketplace error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Listing is one active listing reduced to what pricing needs.
type Listing struct {
	ItemID        string
	Title         string
	URL           string
	Price         float64 // NaN when the API value could not be parsed
	Currency      string
	ShippingCosts []float64
}

// SearchFilters are the composite filter values sent with each search.
type SearchFilters struct {
	DeliveryCountry string
	PriceCurrency   string
	BuyingOptions   []string
}

// SearchRequest describes one page of a search.
type SearchRequest struct {
	Query      string
	CategoryID string
	Limit      int
	Offset     int
	Filters    SearchFilters
}

// SearchPage is one page of results.
type SearchPage struct {
	Listings []Listing
	Total    int
	Limit    int
	Offset   int
	Next     string
}

// HasMore reports whether the API advertised another page.
func (p *SearchPage) HasMore() bool {
	return p.Next != "" && len(p.Listings) > 0
}

// ClientConfig configures the Browse client.
type ClientConfig struct {
	BaseURL     string
	Marketplace string // e.g. EBAY_US
	Language    string // Accept-Language, e.g. en-US
	Timeout     time.Duration
}

// Client talks to the Browse item_summary search endpoint.
type Client struct {
	baseURL     string
	marketplace string
	language    string
	httpClient  *http.Client
}

// NewClient creates a Browse API client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultAPIURL
	}
	if config.Marketplace == "" {
		config.Marketplace = "EBAY_US"
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		marketplace: config.Marketplace,
		language:    config.Language,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

// browse API response structures
type searchResponse struct {
	Total         int    `json:"total"`
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
	Next          string `json:"next"`
	ItemSummaries []struct {
		ItemID      string `json:"itemId"`
		Title       string `json:"title"`
		ItemWebURL  string `json:"itemWebUrl"`
		Price       amount `json:"price"`
		ShippingOps []struct {
			ShippingCost amount `json:"shippingCost"`
		} `json:"shippingOptions"`
	} `json:"itemSummaries"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Search fetches one page of active listings.
func (c *Client) Search(ctx context.Context, token string, req SearchRequest) (*SearchPage, error) {
	params := url.Values{}
	params.Set("q", TruncateQuery(req.Query, MaxQueryLength))
	if req.CategoryID != "" {
		params.Set("category_ids", req.CategoryID)
	}
	limit := req.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(req.Offset))
	params.Set("sort", "price")
	if f := req.Filters.encode(); f != "" {
		params.Set("filter", f)
	}

	endpoint := c.baseURL + "/buy/browse/v1/item_summary/search?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)
	httpReq.Header.Set("Accept-Language", c.language)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ThrottleError{RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	case resp.StatusCode >= 500:
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: errors.New(summarizeBody(resp.Header, body))}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("browse search returned status %d: %s", resp.StatusCode, summarizeBody(resp.Header, body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parse browse response: %w", err)
	}

	page := &SearchPage{
		Listings: make([]Listing, 0, len(sr.ItemSummaries)),
		Total:    sr.Total,
		Limit:    sr.Limit,
		Offset:   sr.Offset,
		Next:     sr.Next,
	}
	for _, item := range sr.ItemSummaries {
		listing := Listing{
			ItemID:   item.ItemID,
			Title:    item.Title,
			URL:      item.ItemWebURL,
			Price:    parseAmount(item.Price.Value),
			Currency: item.Price.Currency,
		}
		for _, opt := range item.ShippingOps {
			if opt.ShippingCost.Value == "" {
				continue
			}
			listing.ShippingCosts = append(listing.ShippingCosts, parseAmount(opt.ShippingCost.Value))
		}
		page.Listings = append(page.Listings, listing)
	}
	return page, nil
}

func (f SearchFilters) encode() string {
	var parts []string
	if f.DeliveryCountry != "" {
		parts = append(parts, "deliveryCountry:"+f.DeliveryCountry)
	}
	if f.PriceCurrency != "" {
		parts = append(parts, "priceCurrency:"+f.PriceCurrency)
	}
	if len(f.BuyingOptions) > 0 {
		parts = append(parts, "buyingOptions:{"+strings.Join(f.BuyingOptions, "|")+"}")
	}
	return strings.Join(parts, ",")
}

// parseAmount parses a decimal amount string; unparseable values become NaN.
func parseAmount(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return math.NaN()
	}
	return d.InexactFloat64()
}

// ParseRetryAfter understands both delta-seconds and HTTP-date forms.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// TruncateQuery collapses whitespace and cuts q to at most limit bytes,
// preferring a word boundary and never splitting a UTF-8 sequence.
func TruncateQuery(q string, limit int) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) <= limit {
		return q
	}
	cut := limit
	for cut > 0 && !isRuneStart(q[cut]) {
		cut--
	}
	if q[cut] != ' ' {
		if i := strings.LastIndexByte(q[:cut], ' '); i > 0 {
			cut = i
		}
	}
	return strings.TrimSpace(q[:cut])
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
