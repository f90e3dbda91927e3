package ebay

import "context"

// Searcher runs one page of a listing search.
type Searcher interface {
	Search(ctx context.Context, token string, req SearchRequest) (*SearchPage, error)
}

// TokenFetcher obtains a fresh application token.
type TokenFetcher interface {
	Token(ctx context.Context) (string, error)
}

// Ensure implementations satisfy the interfaces
var (
	_ Searcher     = (*Client)(nil)
	_ TokenFetcher = (*TokenSource)(nil)
)
