package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/deck"
	"github.com/amarmeena/anki-auto-image-finder/internal/enrich"
	"github.com/amarmeena/anki-auto-image-finder/internal/fetch"
	"github.com/amarmeena/anki-auto-image-finder/internal/logger"
	"github.com/amarmeena/anki-auto-image-finder/internal/search"
	"github.com/amarmeena/anki-auto-image-finder/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	inputPath := flag.String("input", "", "Path to input CSV or APKG file")
	deckName := flag.String("deck-name", "", "Name for the output deck")
	searchField := flag.String("search-field", "", "Which field to use for image search: question or answer")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Initialize logger first (with defaults)
	appLogger := logger.New(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	if *inputPath == "" {
		appLogger.Error("Missing required -input flag")
		flag.Usage()
		return 1
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load config")
		return 1
	}
	if *searchField != "" {
		cfg.Deck.SearchField = *searchField
		if err := cfg.Validate(); err != nil {
			appLogger.WithError(err).Error("Invalid configuration")
			return 1
		}
	}
	if *deckName != "" {
		cfg.Output.DeckName = *deckName
	}

	// Reconfigure logging per config
	appLogger = logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		File:        cfg.Log.File,
		ServiceName: "anki-image-finder",
	})
	logger.SetDefaultLogger(appLogger)

	appLogger.WithFields(logger.Fields{
		"input":        *inputPath,
		"deck_name":    cfg.Output.DeckName,
		"search_field": cfg.Deck.SearchField,
	}).Info("Starting deck enrichment")

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Read the input deck
	src, err := deck.NewSource(*inputPath, cfg.Deck)
	if err != nil {
		appLogger.WithError(err).Error("Unsupported input deck")
		return 1
	}
	notes, err := src.Read(ctx)
	if err != nil {
		appLogger.WithError(err).Error("Failed to read input deck")
		return 1
	}

	// Prepare output and images directories
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		appLogger.WithError(err).Error("Failed to create output directory")
		return 1
	}
	imagesDir := filepath.Join(cfg.Output.Dir, cfg.Output.ImagesDir)
	mediaStore, err := storage.NewLocal(imagesDir)
	if err != nil {
		appLogger.WithError(err).Error("Failed to create images directory")
		return 1
	}

	// Wire the enrichment pipeline
	searcher := search.NewDuckDuckGoClient(&search.DuckDuckGoConfig{
		UserAgent:     cfg.Search.UserAgent,
		Timeout:       cfg.Search.Timeout,
		MaxCandidates: cfg.Search.MaxCandidates,
	})
	fetcher := fetch.NewFetcher(mediaStore, &fetch.Config{
		UserAgent:        cfg.Search.UserAgent,
		Timeout:          cfg.Fetch.Timeout,
		MaxDownloadBytes: cfg.Fetch.MaxDownloadBytes,
		MaxWidth:         cfg.Fetch.MaxWidth,
		MaxHeight:        cfg.Fetch.MaxHeight,
		JPEGQuality:      cfg.Fetch.JPEGQuality,
	})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay := cfg.Search.Delay(); delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	enricher := enrich.NewEnricher(searcher, fetcher, limiter, cfg.Deck)
	batch := enrich.NewBatch(enricher)

	// Run the batch; per-note failures are tallied inside, never fatal
	enriched, result, err := batch.Run(ctx, notes)
	if err != nil {
		appLogger.WithError(err).Error("Enrichment run aborted")
		return 1
	}

	// Package the enriched deck
	packager := deck.NewPackager(cfg.Deck, cfg.Output.Dir)
	outPath, err := packager.Package(ctx, enriched, cfg.Output.DeckName, mediaStore)
	if err != nil {
		appLogger.WithError(err).Error("Failed to write output package")
		return 1
	}

	// CSV input also gets an enriched CSV next to the package
	if strings.EqualFold(filepath.Ext(*inputPath), ".csv") {
		csvPath := filepath.Join(cfg.Output.Dir, cfg.Output.DeckName+".csv")
		if err := deck.WriteCSV(ctx, csvPath, enriched, cfg.Deck.ImageField); err != nil {
			appLogger.WithError(err).Error("Failed to write enriched CSV")
			return 1
		}
	}

	// Optional mirror of package and images to S3-compatible storage;
	// failure is reported but the local output is already complete
	if cfg.Backup.Enabled {
		backupOutput(ctx, cfg, outPath, mediaStore)
	}

	appLogger.WithFields(logger.Fields(result.Summary())).
		WithField("output", outPath).
		Info("Deck enrichment completed")

	return 0
}

// backupOutput mirrors the images and the output package to the configured
// S3-compatible bucket.
func backupOutput(ctx context.Context, cfg *config.Config, apkgPath string, mediaStore storage.MediaStore) {
	log := logger.FromContext(ctx)

	remote, err := storage.NewS3Store(&storage.S3Config{
		Endpoint:  cfg.Backup.Endpoint,
		AccessKey: cfg.Backup.AccessKey,
		SecretKey: cfg.Backup.SecretKey,
		UseSSL:    cfg.Backup.UseSSL,
		Bucket:    cfg.Backup.Bucket,
		Region:    cfg.Backup.Region,
		PublicURL: cfg.Backup.PublicURL,
	})
	if err != nil {
		log.WithError(err).Warn("Backup skipped: storage init failed")
		return
	}
	if err := remote.EnsureBucket(ctx); err != nil {
		log.WithError(err).Warn("Backup skipped: bucket unavailable")
		return
	}

	copied, err := storage.Mirror(ctx, mediaStore, remote)
	if err != nil {
		log.WithError(err).Warn("Backup incomplete: media mirror failed")
		return
	}

	data, err := os.ReadFile(apkgPath)
	if err != nil {
		log.WithError(err).Warn("Backup incomplete: cannot read output package")
		return
	}
	name := filepath.Base(apkgPath)
	if err := remote.Save(ctx, name, data, "application/zip"); err != nil {
		log.WithError(err).Warn("Backup incomplete: package upload failed")
		return
	}

	log.WithFields(logger.Fields{
		"images":  copied,
		"package": remote.URL(name),
	}).Info("Backup completed")
}
