package domain

import "time"

// BatchResult holds per-run aggregate counts, one bucket per outcome category.
// It is mutated only by the batch processor, never from within the enricher.
type BatchResult struct {
	Processed         int
	Enriched          int
	SkippedExisting   int
	SkippedEmptyQuery int
	SearchFailed      int
	DownloadFailed    int
	Unexpected        int
	StartTime         time.Time
	EndTime           time.Time
}

// Record tallies one note's outcome into the result.
func (r *BatchResult) Record(outcome Outcome) {
	r.Processed++
	switch outcome {
	case OutcomeEnriched:
		r.Enriched++
	case OutcomeSkippedExisting:
		r.SkippedExisting++
	case OutcomeSkippedEmptyQuery:
		r.SkippedEmptyQuery++
	case OutcomeNoImageFound:
		r.SearchFailed++
	case OutcomeAllDownloadsFailed:
		r.DownloadFailed++
	default:
		r.Unexpected++
	}
}

// Duration returns the wall-clock duration of the run.
func (r *BatchResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Summary returns the counts as a flat map for structured logging.
func (r *BatchResult) Summary() map[string]interface{} {
	return map[string]interface{}{
		"processed":           r.Processed,
		"enriched":            r.Enriched,
		"skipped_existing":    r.SkippedExisting,
		"skipped_empty_query": r.SkippedEmptyQuery,
		"search_failed":       r.SearchFailed,
		"download_failed":     r.DownloadFailed,
		"unexpected":          r.Unexpected,
	}
}
