// Package app assembles the store, embedder, search engine and indexer from
// a validated configuration.
package app

import (
	"fmt"
	"log/slog"

	"pdfrag/internal/config"
	"pdfrag/internal/embedder"
	"pdfrag/internal/extract"
	"pdfrag/internal/index"
	"pdfrag/internal/search"
	"pdfrag/internal/store"
)

// App holds the long-lived components of one process.
type App struct {
	Config   config.Config
	Store    store.Store
	Embedder *embedder.OllamaEmbedder
	Engine   *search.Engine
	log      *slog.Logger
}

// Open validates cfg and opens the configured store.
func Open(cfg config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	path := cfg.StoreFile()
	st, err := store.Open(cfg.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	log.Debug("store opened", "backend", cfg.Backend, "path", path)

	emb := embedder.NewOllamaEmbedder(embedder.Options{
		BaseURL:           cfg.OllamaURL,
		Model:             cfg.Model,
		Timeout:           cfg.EmbedTimeout,
		RequestsPerSecond: cfg.EmbedRPS,
		Logger:            log,
	})

	engine := search.NewEngine(st, emb)
	engine.MinScore = cfg.MinScore

	return &App{
		Config:   cfg,
		Store:    st,
		Embedder: emb,
		Engine:   engine,
		log:      log,
	}, nil
}

// Indexer returns an indexer over the app's store and embedder.
func (a *App) Indexer(progress index.ProgressFunc) (*index.Indexer, error) {
	return index.New(a.Store, a.Embedder, extract.NewPDF(), index.Options{
		ChunkSize:     a.Config.ChunkSize,
		ChunkOverlap:  a.Config.ChunkOverlap,
		Scope:         a.Config.ChunkScope,
		MinChunkChars: a.Config.MinChunkChars,
		BatchSize:     a.Config.BatchSize,
		Logger:        a.log,
		OnProgress:    progress,
	})
}

// EmptyIndexMessage is shown instead of results while nothing is indexed.
const EmptyIndexMessage = "No documents indexed yet. Run `pdfrag index <path>` to add PDFs."

// SearchReady reports whether the store holds anything to search. It fails
// with index.ErrModelChanged when the records were embedded by a different
// model than the configured one, since their scores would be meaningless.
func (a *App) SearchReady() (bool, error) {
	st, err := a.Store.Stats()
	if err != nil {
		return false, fmt.Errorf("read store stats: %w", err)
	}
	if st.TotalChunks == 0 {
		return false, nil
	}
	if st.EmbeddingModel != "" && st.EmbeddingModel != a.Embedder.Model() {
		return false, fmt.Errorf("%w: store has %q, configured %q; search with --model %s or run `pdfrag clear` and re-index",
			index.ErrModelChanged, st.EmbeddingModel, a.Embedder.Model(), st.EmbeddingModel)
	}
	return true, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
