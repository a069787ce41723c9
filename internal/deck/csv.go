package deck

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
)

// CSVSource reads notes from a header-driven CSV file.
type CSVSource struct {
	path string
	deck config.DeckConfig
}

// NewCSVSource creates a CSV note source.
func NewCSVSource(path string, deck config.DeckConfig) *CSVSource {
	return &CSVSource{path: path, deck: deck}
}

// Read implements Source. The question and answer columns must exist; a
// missing image column is treated as every note having an empty image field.
func (s *CSVSource) Read(ctx context.Context) ([]domain.Note, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file %s is empty", s.path)
	}

	header := records[0]
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range []string{s.deck.QuestionField, s.deck.AnswerField} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing required field %q in CSV header", required)
		}
	}

	notes := make([]domain.Note, 0, len(records)-1)
	for _, record := range records[1:] {
		note := domain.NewNote(header...)
		for name, col := range columns {
			if col < len(record) {
				note.Set(name, record[col])
			}
		}
		notes = append(notes, note)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"path":  s.path,
		"notes": len(notes),
	}).Info("Read CSV deck")

	return notes, nil
}

// WriteCSV writes the enriched notes back out as CSV, preserving the column
// order of the first note and appending the image column if the input deck
// did not have one.
func WriteCSV(ctx context.Context, path string, notes []domain.Note, imageField string) error {
	if len(notes) == 0 {
		return fmt.Errorf("no notes to write")
	}

	header := notes[0].FieldOrder
	hasImage := false
	for _, name := range header {
		if name == imageField {
			hasImage = true
			break
		}
	}
	if !hasImage {
		header = append(append([]string{}, header...), imageField)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	row := make([]string, len(header))
	for i := range notes {
		for j, name := range header {
			row[j] = notes[i].Get(name)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"path":  path,
		"notes": len(notes),
	}).Info("Wrote CSV deck")

	return nil
}
