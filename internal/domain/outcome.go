package domain

// Outcome represents the terminal state of enriching a single note.
// Every note processed in a batch ends in exactly one of these states.
type Outcome string

const (
	// OutcomeEnriched means an image was downloaded, stored, and bound to
	// the note's image field. This is the only outcome that mutates a note.
	OutcomeEnriched Outcome = "enriched"

	// OutcomeSkippedExisting means the image field was already populated.
	OutcomeSkippedExisting Outcome = "skipped_existing"

	// OutcomeSkippedEmptyQuery means the configured search field was empty
	// or whitespace-only after cleaning, so no search was issued.
	OutcomeSkippedEmptyQuery Outcome = "skipped_empty_query"

	// OutcomeNoImageFound means the search failed or returned no candidates.
	OutcomeNoImageFound Outcome = "no_image_found"

	// OutcomeAllDownloadsFailed means candidates were returned but none
	// downloaded and decoded successfully.
	OutcomeAllDownloadsFailed Outcome = "all_downloads_failed"

	// OutcomeUnexpected means the note failed in a way outside the normal
	// taxonomy. The batch continues regardless.
	OutcomeUnexpected Outcome = "unexpected"
)

// Mutating reports whether this outcome is allowed to have modified the note.
func (o Outcome) Mutating() bool {
	return o == OutcomeEnriched
}
