package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local is a MediaStore over a single flat directory. Saves go through a
// temp file and rename so a failure mid-write never leaves a partial object.
type Local struct {
	root string
}

// NewLocal creates a local media store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Local{root: dir}, nil
}

// Root returns the store's directory.
func (l *Local) Root() string {
	return l.root
}

// Save implements MediaStore.
func (l *Local) Save(ctx context.Context, name string, data []byte, contentType string) error {
	path := filepath.Join(l.root, name)

	tmp, err := os.CreateTemp(l.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return nil
}

// Open implements MediaStore.
func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.root, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// Exists implements MediaStore.
func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.root, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// List implements MediaStore. Temp files from in-flight saves are excluded.
func (l *Local) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// URL implements MediaStore; for a local store this is the file path.
func (l *Local) URL(name string) string {
	return filepath.Join(l.root, name)
}

// contentTypeFor maps a filename extension to its MIME type.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".apkg":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
