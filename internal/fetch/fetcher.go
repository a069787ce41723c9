package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
	"github.com/amarmeena/anki-auto-image-finder/internal/storage"
)

var (
	// ErrDownload indicates a network error, non-success status, or an
	// oversized payload.
	ErrDownload = errors.New("image download failed")

	// ErrInvalidImage indicates the payload was not an image: wrong
	// content type or undecodable pixel data.
	ErrInvalidImage = errors.New("payload is not a decodable image")
)

// Fetcher downloads candidate images, validates and normalizes them, and
// persists them through the media store. One object is written per success;
// nothing is stored on any failure path.
type Fetcher struct {
	client      *resty.Client
	store       storage.MediaStore
	maxBytes    int64
	maxWidth    int
	maxHeight   int
	jpegQuality int
}

// Config holds configuration for the image fetcher.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	MaxDownloadBytes int64
	MaxWidth         int
	MaxHeight        int
	JPEGQuality      int
}

// NewFetcher creates a new image fetcher writing into store.
func NewFetcher(store storage.MediaStore, cfg *Config) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Referer", "https://duckduckgo.com/")

	return &Fetcher{
		client:      client,
		store:       store,
		maxBytes:    cfg.MaxDownloadBytes,
		maxWidth:    cfg.MaxWidth,
		maxHeight:   cfg.MaxHeight,
		jpegQuality: cfg.JPEGQuality,
	}
}

// Client exposes the underlying resty client, used by tests to install a
// mock transport.
func (f *Fetcher) Client() *resty.Client {
	return f.client
}

// Fetch downloads the image at url, validates that it decodes, downscales it
// to the configured bounds, re-encodes it as JPEG, and saves it under
// filename. Re-running with the same filename overwrites the previous object.
func (f *Fetcher) Fetch(ctx context.Context, url, filename string) (*domain.StoredImage, error) {
	data, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img = f.normalize(img)
	bounds := img.Bounds()

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: f.jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %v", ErrInvalidImage, err)
	}

	if err := f.store.Save(ctx, filename, encoded.Bytes(), "image/jpeg"); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	stored := &domain.StoredImage{
		Filename:  filename,
		Path:      f.store.URL(filename),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		ByteSize:  int64(encoded.Len()),
		SourceURL: url,
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldImageURL: url,
		logger.FieldFilename: filename,
		"format":             format,
		"width":              stored.Width,
		"height":             stored.Height,
	}).Debug("Stored image")

	return stored, nil
}

// download retrieves the raw payload with the configured size cap. The
// response is streamed so an oversized body is abandoned rather than
// buffered whole.
func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", ErrInvalidImage, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(raw, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrDownload, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrDownload, f.maxBytes)
	}
	return data, nil
}

// normalize downscales img so both dimensions fit within the configured
// bounds, preserving aspect ratio. Images already within bounds are returned
// unchanged.
func (f *Fetcher) normalize(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= f.maxWidth && h <= f.maxHeight {
		return img
	}

	scaleW := float64(f.maxWidth) / float64(w)
	scaleH := float64(f.maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}
