// Package app assembles the pipeline and query components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bull/oncodoc/internal/casefinder"
	"github.com/bull/oncodoc/internal/clinical"
	"github.com/bull/oncodoc/internal/config"
	"github.com/bull/oncodoc/internal/embedding"
	"github.com/bull/oncodoc/internal/enrich"
	"github.com/bull/oncodoc/internal/extract"
	"github.com/bull/oncodoc/internal/indexer"
	"github.com/bull/oncodoc/internal/report"
	"github.com/bull/oncodoc/internal/storage"
)

// App holds the wired components of one process.
type App struct {
	Config    *config.Config
	Store     storage.Store
	Generator *embedding.Generator
	Pipeline  *indexer.Pipeline
	Finder    *casefinder.Finder
	Logger    *slog.Logger
}

// NewLogger builds a text logger at the configured level.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// New opens the store and wires every component. Close releases the store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vocab, err := enrich.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, err
	}
	enricher := enrich.New(vocab)

	generator, err := NewGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg, generator.Dimension())
	if err != nil {
		return nil, err
	}

	pipeline := indexer.NewPipeline(indexer.Components{
		Classifier: report.NewClassifier(),
		Extractors: extract.NewRegistry(),
		Rules:      clinical.NewEngine(cfg.Thresholds()),
		Enricher:   enricher,
		Embedder:   generator,
		Store:      store,
	}, logger,
		indexer.WithStoreTimeout(cfg.StoreTimeout),
		indexer.WithWorkers(cfg.Workers),
	)

	finder := casefinder.New(store, generator, enricher, casefinder.Config{
		Threshold: cfg.SimilarityThreshold,
	}, logger)

	return &App{
		Config:    cfg,
		Store:     store,
		Generator: generator,
		Pipeline:  pipeline,
		Finder:    finder,
		Logger:    logger,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// NewGenerator builds the embedding generator. Without an OpenAI key it runs
// offline on the deterministic fallback.
func NewGenerator(cfg *config.Config, logger *slog.Logger) (*embedding.Generator, error) {
	provider, err := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:            cfg.OpenAIAPIKey,
		Model:             cfg.EmbeddingModel,
		Dimension:         cfg.EmbeddingDimension,
		RequestsPerSecond: cfg.EmbeddingRPS,
	})
	switch {
	case errors.Is(err, embedding.ErrProviderUnavailable):
		logger.Warn("OpenAI API key not set, embeddings use the offline fallback")
		return embedding.NewGenerator(nil, cfg.EmbeddingDimension, cfg.EmbeddingTimeout, logger), nil
	case err != nil:
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	return embedding.NewGenerator(provider, cfg.EmbeddingDimension, cfg.EmbeddingTimeout, logger), nil
}

// OpenStore opens the configured backend for vectors of the given dimension.
func OpenStore(ctx context.Context, cfg *config.Config, dimension int) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return storage.NewMemoryStore(dimension), nil

	case config.BackendSQLite:
		store, err := storage.OpenSQLite(ctx, cfg.SQLitePath, dimension)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil

	case config.BackendQdrant:
		store, err := storage.NewQdrantStorage(ctx, storage.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.QdrantCollection,
			Dimension:  dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		if err := store.EnsureCollection(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to ensure collection: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
