package enrich

import (
	"context"
	"fmt"
	"html"
	"strings"

	"golang.org/x/time/rate"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
	"github.com/amarmeena/anki-auto-image-finder/internal/fetch"
	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
	"github.com/amarmeena/anki-auto-image-finder/internal/search"
)

// answerBullet separates list items inside answer fields; answer-derived
// queries use only the first item.
const answerBullet = "▪"

// ImageFetcher is the fetching capability the enricher depends on.
type ImageFetcher interface {
	Fetch(ctx context.Context, url, filename string) (*domain.StoredImage, error)
}

// Enricher decides, for one note, whether and how to attach an image.
type Enricher struct {
	searcher search.ImageSearcher
	fetcher  ImageFetcher
	limiter  *rate.Limiter
	deck     config.DeckConfig
}

// NewEnricher creates a note enricher. The limiter enforces the minimum
// delay between searches; notes skipped before searching never wait on it.
func NewEnricher(searcher search.ImageSearcher, fetcher ImageFetcher, limiter *rate.Limiter, deck config.DeckConfig) *Enricher {
	return &Enricher{
		searcher: searcher,
		fetcher:  fetcher,
		limiter:  limiter,
		deck:     deck,
	}
}

// Enrich processes a single note. The note is mutated only when the returned
// outcome is OutcomeEnriched; every other outcome leaves it unchanged. The
// returned error carries the cause for failure outcomes and is informational
// only; it never aborts a batch.
func (e *Enricher) Enrich(ctx context.Context, note *domain.Note, index int) (domain.Outcome, error) {
	if strings.TrimSpace(note.Get(e.deck.ImageField)) != "" {
		return domain.OutcomeSkippedExisting, nil
	}

	query := e.deriveQuery(note)
	if query == "" {
		return domain.OutcomeSkippedEmptyQuery, nil
	}
	ctx = logger.WithField(ctx, logger.FieldQuery, query)

	if err := e.limiter.Wait(ctx); err != nil {
		return domain.OutcomeUnexpected, fmt.Errorf("rate limiter wait: %w", err)
	}

	candidates, err := e.searcher.Search(ctx, query)
	if err != nil {
		return domain.OutcomeNoImageFound, fmt.Errorf("search failed: %w", err)
	}
	if len(candidates) == 0 {
		return domain.OutcomeNoImageFound, nil
	}

	// First successful candidate in provider rank order wins; no relevance
	// re-ranking of any kind.
	filename := fetch.Filename(query, index)
	var lastErr error
	for _, candidate := range candidates {
		stored, err := e.fetcher.Fetch(ctx, candidate.URL, filename)
		if err != nil {
			lastErr = err
			logger.FromContext(ctx).
				WithField(logger.FieldImageURL, candidate.URL).
				WithError(err).
				Debug("Candidate failed, trying next")
			continue
		}
		note.Set(e.deck.ImageField, stored.Filename)
		return domain.OutcomeEnriched, nil
	}

	return domain.OutcomeAllDownloadsFailed, fmt.Errorf("all %d candidates failed, last: %w", len(candidates), lastErr)
}

// deriveQuery extracts and cleans the search text from the configured field.
func (e *Enricher) deriveQuery(note *domain.Note) string {
	var text string
	if e.deck.SearchField == config.SearchFieldQuestion {
		text = note.Get(e.deck.QuestionField)
	} else {
		text = note.Get(e.deck.AnswerField)
	}

	text = CleanQuery(text)
	if text == "" {
		return ""
	}

	// Answers are often bullet lists; the first item makes the best query.
	if e.deck.SearchField == config.SearchFieldAnswer {
		for _, part := range strings.Split(text, answerBullet) {
			if part = strings.TrimSpace(part); part != "" {
				return part
			}
		}
		return ""
	}
	return text
}

// CleanQuery strips deck markup that would pollute a search query: HTML
// entities, Anki sound tags, and non-breaking spaces.
func CleanQuery(text string) string {
	text = html.UnescapeString(text)
	if idx := strings.Index(text, "[sound:"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(text)
}
