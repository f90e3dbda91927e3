package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RateLimit is one quota window reported by the Developer Analytics API.
type RateLimit struct {
	Resource   string
	Limit      int
	Remaining  int
	Reset      time.Time
	TimeWindow time.Duration
}

type rateLimitResponse struct {
	RateLimits []struct {
		APIContext string `json:"apiContext"`
		APIName    string `json:"apiName"`
		Resources  []struct {
			Name  string `json:"name"`
			Rates []struct {
				Count      int    `json:"count"`
				Limit      int    `json:"limit"`
				Remaining  int    `json:"remaining"`
				Reset      string `json:"reset"`
				TimeWindow int    `json:"timeWindow"`
			} `json:"rates"`
		} `json:"resources"`
	} `json:"rateLimits"`
}

// RateLimits asks the marketplace how much Browse quota the application has left.
// It is used as an optional preflight probe before a run.
func (c *Client) RateLimits(ctx context.Context, token string) ([]RateLimit, error) {
	params := url.Values{}
	params.Set("api_name", "browse")
	params.Set("api_context", "buy")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/developer/analytics/v1_beta/rate_limit/?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("rate limit probe returned status %d: %s", resp.StatusCode, summarizeBody(resp.Header, body))
	}

	var rr rateLimitResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("parse rate limit response: %w", err)
	}

	var out []RateLimit
	for _, api := range rr.RateLimits {
		for _, res := range api.Resources {
			for _, rate := range res.Rates {
				rl := RateLimit{
					Resource:   res.Name,
					Limit:      rate.Limit,
					Remaining:  rate.Remaining,
					TimeWindow: time.Duration(rate.TimeWindow) * time.Second,
				}
				if t, err := time.Parse(time.RFC3339, rate.Reset); err == nil {
					rl.Reset = t
				}
				out = append(out, rl)
			}
		}
	}
	return out, nil
}
