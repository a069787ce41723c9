package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRunID identifies one batch run (UUID).
	FieldRunID = "run_id"

	// FieldComponent is the component/module name.
	FieldComponent = "component"

	// FieldNoteIndex is the zero-based position of a note within the batch.
	FieldNoteIndex = "note_index"
)

// Standard metric fields, attached at individual log sites.
const (
	// FieldOutcome is the terminal enrichment state of a note.
	FieldOutcome = "outcome"

	// FieldQuery is the derived image search query.
	FieldQuery = "query"

	// FieldImageURL is the candidate image URL being fetched.
	FieldImageURL = "image_url"

	// FieldFilename is the stored image filename.
	FieldFilename = "filename"

	// FieldDurationMs is the execution duration in milliseconds.
	FieldDurationMs = "duration_ms"
)
