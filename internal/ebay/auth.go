package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/guarzo/tcgcomps/internal/retry"
)

const (
	// DefaultAuthURL is the production client-credentials token endpoint.
	DefaultAuthURL = "https://api.ebay.com/identity/v1/oauth2/token"
	// DefaultScope grants read access to the public Buy APIs.
	DefaultScope = "https://api.ebay.com/oauth/api_scope"
)

// OAuthConfig holds eBay application credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	TokenURL     string
}

// AuthError is returned when the token exchange is rejected.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// TokenSource performs client-credentials exchanges. It keeps no state about
// expiry: callers that see a 401 ask for a new token.
type TokenSource struct {
	config     OAuthConfig
	httpClient *http.Client
	policy     retry.Policy
}

// NewTokenSource creates a token source. Transient failures of the exchange
// are retried with policy; its Retryable predicate is replaced.
func NewTokenSource(config OAuthConfig, httpClient *http.Client, policy retry.Policy) *TokenSource {
	if config.TokenURL == "" {
		config.TokenURL = DefaultAuthURL
	}
	if config.Scope == "" {
		config.Scope = DefaultScope
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	policy.Retryable = IsTransient
	return &TokenSource{
		config:     config,
		httpClient: httpClient,
		policy:     policy,
	}
}

// Token exchanges the client credentials for a fresh application token.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	var token string
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		t, err := s.exchange(ctx)
		if err != nil {
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *TokenSource) exchange(ctx context.Context) (string, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("scope", s.config.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(s.config.ClientID + ":" + s.config.ClientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransientError{Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return "", &TransientError{StatusCode: resp.StatusCode, Err: errors.New(summarizeBody(resp.Header, body))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: summarizeBody(resp.Header, body)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: "response carried no access_token"}
	}
	return token.AccessToken, nil
}

// Credentials shares one application token between all workers.
type Credentials struct {
	source TokenFetcher

	mu      sync.RWMutex
	current string
	group   singleflight.Group
}

// NewCredentials wraps a token source.
func NewCredentials(source TokenFetcher) *Credentials {
	return &Credentials{source: source}
}

// Current returns the cached token, fetching one if none is held yet.
func (c *Credentials) Current(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.current
	c.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	return c.Refresh(ctx, "")
}

// Refresh replaces stale with a new token. Concurrent callers holding the
// same stale token share a single exchange, and a caller whose stale token
// was already replaced gets the replacement without another exchange.
func (c *Credentials) Refresh(ctx context.Context, stale string) (string, error) {
	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()
	if current != "" && current != stale {
		return current, nil
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		c.mu.RLock()
		current := c.current
		c.mu.RUnlock()
		if current != "" && current != stale {
			return current, nil
		}
		token, err := c.source.Token(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.current = token
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
