package search

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the search provider was unreachable or returned a
// response that could not be parsed. Callers treat it as a per-note failure,
// never as a batch-level one.
var ErrUnavailable = errors.New("image search unavailable")

// Candidate is one image URL returned by a search, in provider rank order.
type Candidate struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// ImageSearcher defines the interface for external image search providers.
// An empty result slice with a nil error is a valid "no image found" outcome.
type ImageSearcher interface {
	// Search returns candidate image URLs for the query, best match first.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - query: non-empty search text.
	// Returns:
	//   - []Candidate: ranked candidates, possibly empty.
	//   - error: wraps ErrUnavailable when the provider cannot be used.
	Search(ctx context.Context, query string) ([]Candidate, error)
}
