// Package deck reads note collections from CSV files or Anki .apkg archives
// and packages enriched collections back into an importable .apkg.
package deck

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
)

// Source supplies the ordered note collection of a deck.
type Source interface {
	// Read returns all notes in deck order.
	Read(ctx context.Context) ([]domain.Note, error)
}

// NewSource picks a reader for the input file by extension. Unsupported
// formats are a run-level fatal condition.
func NewSource(path string, deck config.DeckConfig) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVSource(path, deck), nil
	case ".apkg":
		return NewAPKGSource(path, deck), nil
	default:
		return nil, fmt.Errorf("input file must be .csv or .apkg, got %q", filepath.Ext(path))
	}
}
