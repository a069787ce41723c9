package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
)

// Batch iterates notes strictly in input order, isolating per-note failures
// and aggregating outcomes. A single note's failure never aborts the run.
type Batch struct {
	enricher *Enricher
}

// NewBatch creates a batch processor over the given enricher.
func NewBatch(enricher *Enricher) *Batch {
	return &Batch{enricher: enricher}
}

// Run enriches every note and returns the updated notes with the run's
// aggregate result. The returned error is non-nil only for run-level
// conditions (context cancellation); individual note failures are tallied
// and logged, never propagated.
func (b *Batch) Run(ctx context.Context, notes []domain.Note) ([]domain.Note, domain.BatchResult, error) {
	result := domain.BatchResult{StartTime: time.Now()}

	ctx = logger.SetComponent(ctx, "enrich")
	ctx = logger.SetRunID(ctx, uuid.New().String())
	logger.FromContext(ctx).WithField("total", len(notes)).Info("Starting enrichment run")

	updated := make([]domain.Note, len(notes))
	for i := range notes {
		updated[i] = notes[i].Clone()
	}

	for i := range updated {
		if ctx.Err() != nil {
			result.EndTime = time.Now()
			return updated, result, fmt.Errorf("run canceled at note %d: %w", i, ctx.Err())
		}

		noteCtx := logger.SetNoteIndex(ctx, i)
		outcome, err := b.enrichOne(noteCtx, &updated[i], i)
		result.Record(outcome)

		log := logger.FromContext(noteCtx).WithField(logger.FieldOutcome, string(outcome))
		if err != nil {
			log = log.WithError(err)
		}
		switch outcome {
		case domain.OutcomeEnriched:
			log.WithField(logger.FieldFilename, updated[i].Get(b.enricher.deck.ImageField)).
				Info("Note enriched")
		case domain.OutcomeSkippedExisting, domain.OutcomeSkippedEmptyQuery:
			log.Info("Note skipped")
		default:
			log.Warn("Note not enriched")
		}
	}

	result.EndTime = time.Now()

	logger.FromContext(ctx).
		WithFields(logger.Fields(result.Summary())).
		WithField(logger.FieldDurationMs, result.Duration().Milliseconds()).
		Info("Enrichment run completed")

	return updated, result, nil
}

// enrichOne invokes the enricher with panic isolation: anything a note's
// processing throws is classified as an unexpected outcome for that note.
func (b *Batch) enrichOne(ctx context.Context, note *domain.Note, index int) (outcome domain.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = domain.OutcomeUnexpected
			err = fmt.Errorf("panic while enriching note %d: %v", index, r)
		}
	}()
	return b.enricher.Enrich(ctx, note, index)
}
