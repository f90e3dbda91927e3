package ebay

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guarzo/tcgcomps/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestTokenSource_ClientCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:secret"))
		if got := r.Header.Get("Authorization"); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant_type %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("scope") != DefaultScope {
			t.Errorf("unexpected scope %q", r.PostForm.Get("scope"))
		}
		_, _ = w.Write([]byte(`{"access_token":"v^1.1#abc","expires_in":7200,"token_type":"Application Access Token"}`))
	}))
	defer server.Close()

	src := NewTokenSource(OAuthConfig{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL}, nil, fastPolicy())
	token, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "v^1.1#abc" {
		t.Errorf("unexpected token %q", token)
	}
}

func TestTokenSource_AuthError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	src := NewTokenSource(OAuthConfig{ClientID: "id", ClientSecret: "bad", TokenURL: server.URL}, nil, fastPolicy())
	_, err := src.Token(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", authErr.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("auth errors must not be retried, got %d calls", calls)
	}
}

func TestTokenSource_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"ok"}`))
	}))
	defer server.Close()

	src := NewTokenSource(OAuthConfig{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL}, nil, fastPolicy())
	token, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if token != "ok" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected token after 3 calls, got %q after %d", token, calls)
	}
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
}

func (s *countingSource) Token(ctx context.Context) (string, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "token-" + string(rune('0'+s.calls)), nil
}

func TestCredentials_RefreshCollapses(t *testing.T) {
	src := &countingSource{delay: 20 * time.Millisecond}
	creds := NewCredentials(src)

	first, err := creds.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if first != "token-1" {
		t.Fatalf("unexpected first token %q", first)
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := creds.Refresh(context.Background(), first)
			if err != nil {
				t.Errorf("Refresh failed: %v", err)
			}
			results[i] = tok
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if r != "token-2" {
			t.Errorf("expected every worker to see token-2, got %q", r)
		}
	}
	if src.calls != 2 {
		t.Errorf("expected 2 exchanges in total, got %d", src.calls)
	}

	// A caller still holding the first token gets the replacement for free.
	tok, _ := creds.Refresh(context.Background(), first)
	if tok != "token-2" || src.calls != 2 {
		t.Errorf("stale refresh should reuse current token, got %q after %d calls", tok, src.calls)
	}
}
