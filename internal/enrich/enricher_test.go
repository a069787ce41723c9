package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
	"github.com/amarmeena/anki-auto-image-finder/internal/search"
)

// fakeSearcher returns canned candidates and records every query.
type fakeSearcher struct {
	candidates []search.Candidate
	err        error
	queries    []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]search.Candidate, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

// fakeFetcher succeeds only for URLs in the ok set and records every attempt.
type fakeFetcher struct {
	ok       map[string]bool
	attempts []string
	panicOn  string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, filename string) (*domain.StoredImage, error) {
	if url == f.panicOn {
		panic("fetcher exploded")
	}
	f.attempts = append(f.attempts, url)
	if !f.ok[url] {
		return nil, fmt.Errorf("download failed for %s", url)
	}
	return &domain.StoredImage{Filename: filename, SourceURL: url}, nil
}

func testDeckConfig() config.DeckConfig {
	return config.DeckConfig{
		QuestionField: "Question",
		AnswerField:   "Answer",
		ImageField:    "Image",
		SearchField:   config.SearchFieldAnswer,
	}
}

func testNote(question, answer, image string) domain.Note {
	note := domain.NewNote("Question", "Answer", "Image")
	note.Set("Question", question)
	note.Set("Answer", answer)
	note.Set("Image", image)
	return note
}

func newTestEnricher(searcher search.ImageSearcher, fetcher ImageFetcher) *Enricher {
	return NewEnricher(searcher, fetcher, rate.NewLimiter(rate.Inf, 1), testDeckConfig())
}

func TestEnrichSkipsNoteWithExistingImage(t *testing.T) {
	searcher := &fakeSearcher{}
	fetcher := &fakeFetcher{}
	enricher := newTestEnricher(searcher, fetcher)

	note := testNote("capital of France?", "Paris", "paris.jpg")
	before := note.Clone()

	outcome, err := enricher.Enrich(context.Background(), &note, 0)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkippedExisting, outcome)
	assert.Equal(t, before.Fields, note.Fields)
	assert.Empty(t, searcher.queries, "no search for an already-enriched note")
	assert.Empty(t, fetcher.attempts, "no download for an already-enriched note")
}

func TestEnrichSkipsEmptyQuery(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"empty", ""},
		{"whitespace", "   \t "},
		{"nbsp_entity", "&nbsp;&nbsp;"},
		{"sound_tag_only", "[sound:cat.mp3]"},
		{"empty_bullets", " ▪ ▪ "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			enricher := newTestEnricher(searcher, &fakeFetcher{})

			note := testNote("q", tt.answer, "")
			outcome, err := enricher.Enrich(context.Background(), &note, 0)

			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeSkippedEmptyQuery, outcome)
			assert.Empty(t, note.Get("Image"))
			assert.Empty(t, searcher.queries)
		})
	}
}

func TestEnrichFirstSuccessfulCandidateWins(t *testing.T) {
	searcher := &fakeSearcher{candidates: []search.Candidate{
		{URL: "http://img/u1"},
		{URL: "http://img/u2"},
		{URL: "http://img/u3"},
	}}
	fetcher := &fakeFetcher{ok: map[string]bool{"http://img/u2": true}}
	enricher := newTestEnricher(searcher, fetcher)

	note := testNote("q", "Tiger", "")
	outcome, err := enricher.Enrich(context.Background(), &note, 7)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEnriched, outcome)
	assert.Equal(t, "tiger-7.jpg", note.Get("Image"))
	// u1 tried and failed, u2 succeeded, u3 never attempted
	assert.Equal(t, []string{"http://img/u1", "http://img/u2"}, fetcher.attempts)
}

func TestEnrichAllCandidatesFail(t *testing.T) {
	searcher := &fakeSearcher{candidates: []search.Candidate{
		{URL: "http://img/u1"},
		{URL: "http://img/u2"},
	}}
	fetcher := &fakeFetcher{ok: map[string]bool{}}
	enricher := newTestEnricher(searcher, fetcher)

	note := testNote("q", "Tiger", "")
	outcome, err := enricher.Enrich(context.Background(), &note, 0)

	assert.Equal(t, domain.OutcomeAllDownloadsFailed, outcome)
	require.Error(t, err)
	assert.Empty(t, note.Get("Image"), "note must stay unchanged when every download fails")
}

func TestEnrichSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("%w: status 503", search.ErrUnavailable)}
	enricher := newTestEnricher(searcher, &fakeFetcher{})

	note := testNote("q", "Tiger", "")
	outcome, err := enricher.Enrich(context.Background(), &note, 0)

	assert.Equal(t, domain.OutcomeNoImageFound, outcome)
	require.Error(t, err)
	assert.True(t, errors.Is(err, search.ErrUnavailable))
	assert.Empty(t, note.Get("Image"))
}

func TestEnrichNoCandidates(t *testing.T) {
	searcher := &fakeSearcher{candidates: nil}
	fetcher := &fakeFetcher{}
	enricher := newTestEnricher(searcher, fetcher)

	note := testNote("q", "Tiger", "")
	outcome, err := enricher.Enrich(context.Background(), &note, 0)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoImageFound, outcome)
	assert.Empty(t, fetcher.attempts)
}

func TestEnrichQueryFromQuestionField(t *testing.T) {
	deck := testDeckConfig()
	deck.SearchField = config.SearchFieldQuestion
	searcher := &fakeSearcher{candidates: []search.Candidate{{URL: "http://img/u1"}}}
	fetcher := &fakeFetcher{ok: map[string]bool{"http://img/u1": true}}
	enricher := NewEnricher(searcher, fetcher, rate.NewLimiter(rate.Inf, 1), deck)

	note := testNote("Eiffel Tower", "a landmark ▪ in Paris", "")
	outcome, err := enricher.Enrich(context.Background(), &note, 0)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEnriched, outcome)
	require.Len(t, searcher.queries, 1)
	// Question-sourced queries are not bullet-split.
	assert.Equal(t, "Eiffel Tower", searcher.queries[0])
}

func TestEnrichAnswerBulletSplit(t *testing.T) {
	searcher := &fakeSearcher{candidates: []search.Candidate{{URL: "http://img/u1"}}}
	fetcher := &fakeFetcher{ok: map[string]bool{"http://img/u1": true}}
	enricher := newTestEnricher(searcher, fetcher)

	note := testNote("q", " ▪ Bengal tiger ▪ Siberian tiger", "")
	_, err := enricher.Enrich(context.Background(), &note, 0)

	require.NoError(t, err)
	require.Len(t, searcher.queries, 1)
	assert.Equal(t, "Bengal tiger", searcher.queries[0])
}

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "tiger", "tiger"},
		{"html_entity", "fish &amp; chips", "fish & chips"},
		{"sound_tag", "tiger [sound:roar.mp3]", "tiger"},
		{"nbsp", "big\u00a0cat", "big cat"},
		{"nbsp_entity", "big&nbsp;cat", "big cat"},
		{"surrounding_space", "  tiger  ", "tiger"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanQuery(tt.in))
		})
	}
}
