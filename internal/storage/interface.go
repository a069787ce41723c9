package storage

import (
	"context"
	"fmt"
	"io"
)

// MediaStore defines the interface for storing and retrieving media files.
// The enrichment pipeline writes through a local store; the optional backup
// step mirrors it to an S3-compatible one.
type MediaStore interface {
	// Save stores data under name, replacing any existing object.
	Save(ctx context.Context, name string, data []byte, contentType string) error

	// Open returns a reader for the named object.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists checks if the named object exists.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns the names of all stored objects, sorted.
	List(ctx context.Context) ([]string, error)

	// URL returns the location of the named object (a filesystem path for
	// local stores, a public URL for remote ones).
	URL(name string) string
}

// Mirror copies every object from src into dst. Used by the post-run backup;
// a failed object aborts the mirror so the caller can report it.
func Mirror(ctx context.Context, src, dst MediaStore) (int, error) {
	names, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list source store: %w", err)
	}

	copied := 0
	for _, name := range names {
		reader, err := src.Open(ctx, name)
		if err != nil {
			return copied, fmt.Errorf("failed to open %s: %w", name, err)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return copied, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := dst.Save(ctx, name, data, contentTypeFor(name)); err != nil {
			return copied, fmt.Errorf("failed to save %s: %w", name, err)
		}
		copied++
	}
	return copied, nil
}
