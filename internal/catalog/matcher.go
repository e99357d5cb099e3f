package catalog

import (
	"context"

	"subtitlehub/internal/domain"
)

// Matcher picks catalog entries for a query. The configured fuzzy threshold
// (0-100) is passed through to every implementation so a scoring matcher can
// be plugged in without touching the service; the substring matcher does not
// use it.
type Matcher interface {
	Match(ctx context.Context, query string, threshold, limit int) ([]domain.SubtitleRecord, error)
}

// SubstringMatcher delegates to the store's case-insensitive substring
// search, which already sorts newest year first and applies the limit.
type SubstringMatcher struct {
	Store Store
}

func (m SubstringMatcher) Match(ctx context.Context, query string, threshold, limit int) ([]domain.SubtitleRecord, error) {
	return m.Store.Search(ctx, query, limit)
}
