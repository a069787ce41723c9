package deck

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
)

const collectionFilename = "collection.anki2"

// maxNotesPerDeck caps how many notes are read from one collection.
const maxNotesPerDeck = 1000

// APKGSource reads notes from an Anki .apkg archive (a zip containing a
// SQLite collection database plus media).
type APKGSource struct {
	path string
	deck config.DeckConfig
}

// NewAPKGSource creates an .apkg note source.
func NewAPKGSource(path string, deck config.DeckConfig) *APKGSource {
	return &APKGSource{path: path, deck: deck}
}

// Read implements Source. Note fields are mapped positionally onto the
// configured question, answer, and image fields, the way common two and
// three field Anki models lay them out.
func (s *APKGSource) Read(ctx context.Context) ([]domain.Note, error) {
	colPath, cleanup, err := extractCollection(s.path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := openCollection(colPath)
	if err != nil {
		return nil, err
	}
	defer closeCollection(db)

	var rows []ankiNote
	if err := db.WithContext(ctx).
		Order("id").
		Limit(maxNotesPerDeck).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read notes table: %w", err)
	}

	notes := make([]domain.Note, 0, len(rows))
	for _, row := range rows {
		fields := strings.Split(row.Flds, fieldSeparator)

		note := domain.NewNote(s.deck.QuestionField, s.deck.AnswerField, s.deck.ImageField)
		note.Tags = row.Tags
		switch {
		case len(fields) >= 2:
			note.Set(s.deck.QuestionField, fields[0])
			note.Set(s.deck.AnswerField, fields[1])
			if len(fields) > 2 {
				note.Set(s.deck.ImageField, fields[2])
			}
			if len(fields) > 3 {
				logger.CtxWarn(ctx, "Note %s has %d fields, extra fields dropped", row.GUID, len(fields))
			}
		case len(fields) == 1:
			// Single-field models: search and display the same text.
			note.Set(s.deck.QuestionField, fields[0])
			note.Set(s.deck.AnswerField, fields[0])
		}
		notes = append(notes, note)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"path":  s.path,
		"notes": len(notes),
	}).Info("Read APKG deck")

	return notes, nil
}

// extractCollection unpacks the collection database out of the archive into
// a temp file. The caller must invoke cleanup.
func extractCollection(apkgPath string) (string, func(), error) {
	archive, err := zip.OpenReader(apkgPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open APKG archive: %w", err)
	}
	defer archive.Close()

	var collection *zip.File
	for _, file := range archive.File {
		if file.Name == collectionFilename {
			collection = file
			break
		}
	}
	if collection == nil {
		return "", nil, fmt.Errorf("%s not found in APKG file", collectionFilename)
	}

	tmpDir, err := os.MkdirTemp("", "apkg-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	src, err := collection.Open()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to open %s in archive: %w", collectionFilename, err)
	}
	defer src.Close()

	colPath := filepath.Join(tmpDir, collectionFilename)
	dst, err := os.Create(colPath)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to create temp collection file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to extract collection database: %w", err)
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp collection file: %w", err)
	}

	return colPath, cleanup, nil
}

// openCollection opens a collection database with a quiet gorm session.
func openCollection(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}
	return db, nil
}

func closeCollection(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
