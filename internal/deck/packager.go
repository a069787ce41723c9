package deck

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
	"github.com/amarmeena/anki-auto-image-finder/internal/storage"
)

// Packager writes enriched notes and their media into an importable .apkg
// archive.
type Packager struct {
	deck      config.DeckConfig
	outputDir string
}

// NewPackager creates an .apkg packager writing into outputDir.
func NewPackager(deck config.DeckConfig, outputDir string) *Packager {
	return &Packager{deck: deck, outputDir: outputDir}
}

// Package builds <deckName>.apkg in the output directory: a fresh collection
// database holding one note and one card per input note, plus every media
// object from the store under Anki's numeric naming with the manifest that
// maps numbers back to filenames. Returns the path of the written archive.
func (p *Packager) Package(ctx context.Context, notes []domain.Note, deckName string, media storage.MediaStore) (string, error) {
	tmpDir, err := os.MkdirTemp("", "apkg-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	colPath := filepath.Join(tmpDir, collectionFilename)
	if err := p.buildCollection(ctx, colPath, notes, deckName); err != nil {
		return "", err
	}

	outPath := filepath.Join(p.outputDir, deckName+".apkg")
	if err := p.writeArchive(ctx, outPath, colPath, media); err != nil {
		return "", err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"path":  outPath,
		"notes": len(notes),
	}).Info("Wrote APKG deck")

	return outPath, nil
}

// buildCollection creates the collection database with the full Anki 2
// schema and one basic card per note.
func (p *Packager) buildCollection(ctx context.Context, colPath string, notes []domain.Note, deckName string) error {
	db, err := openCollection(colPath)
	if err != nil {
		return err
	}
	defer closeCollection(db)

	db = db.WithContext(ctx)
	if err := createCollectionSchema(db); err != nil {
		return err
	}

	now := time.Now().Unix()

	models, err := modelsJSON(p.deck.QuestionField, p.deck.AnswerField, p.deck.ImageField, now)
	if err != nil {
		return err
	}
	decks, err := decksJSON(deckName, now)
	if err != nil {
		return err
	}

	if err := db.Exec(
		`INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		 VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')`,
		now, now*1000, now*1000, confJSON(), models, decks, dconfJSON(),
	).Error; err != nil {
		return fmt.Errorf("failed to write col row: %w", err)
	}

	base := time.Now().UnixMilli()
	for i := range notes {
		note := &notes[i]
		flds := strings.Join([]string{
			note.Get(p.deck.QuestionField),
			note.Get(p.deck.AnswerField),
			note.Get(p.deck.ImageField),
		}, fieldSeparator)
		sortField := note.Get(p.deck.QuestionField)

		row := ankiNote{
			ID:   base + int64(i),
			GUID: noteGUID(flds),
			MID:  imageModelID,
			Mod:  now,
			USN:  -1,
			Tags: note.Tags,
			Flds: flds,
			Sfld: sortField,
			Csum: noteChecksum(sortField),
		}
		if err := db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to write note %d: %w", i, err)
		}

		card := ankiCard{
			ID:     base + int64(len(notes)+i),
			NID:    row.ID,
			DID:    outputDeckID,
			Ord:    0,
			Mod:    now,
			USN:    -1,
			Due:    int64(i + 1),
			Factor: 2500,
		}
		if err := db.Create(&card).Error; err != nil {
			return fmt.Errorf("failed to write card %d: %w", i, err)
		}
	}

	return nil
}

// writeArchive zips the collection database and media into the .apkg. Media
// entries carry numeric names; the manifest maps them to real filenames.
func (p *Packager) writeArchive(ctx context.Context, outPath, colPath string, media storage.MediaStore) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output package: %w", err)
	}
	defer out.Close()

	archive := zip.NewWriter(out)

	if err := addZipFile(archive, collectionFilename, colPath); err != nil {
		return err
	}

	manifest := map[string]string{}
	if media != nil {
		names, err := media.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list media: %w", err)
		}
		for i, name := range names {
			entry := strconv.Itoa(i)
			manifest[entry] = name

			reader, err := media.Open(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to open media %s: %w", name, err)
			}
			w, err := archive.Create(entry)
			if err != nil {
				reader.Close()
				return fmt.Errorf("failed to add media entry %s: %w", entry, err)
			}
			if _, err := io.Copy(w, reader); err != nil {
				reader.Close()
				return fmt.Errorf("failed to write media entry %s: %w", entry, err)
			}
			reader.Close()
		}
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal media manifest: %w", err)
	}
	w, err := archive.Create("media")
	if err != nil {
		return fmt.Errorf("failed to add media manifest: %w", err)
	}
	if _, err := w.Write(manifestJSON); err != nil {
		return fmt.Errorf("failed to write media manifest: %w", err)
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("failed to finalize package: %w", err)
	}
	return nil
}

func addZipFile(archive *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	w, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to package: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write %s to package: %w", name, err)
	}
	return nil
}
