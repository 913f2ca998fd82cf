package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pdfrag/internal/chunker"
	"pdfrag/internal/extract"
	"pdfrag/internal/store"
)

// DefaultBatchSize is the number of chunks sent per embedding call.
const DefaultBatchSize = 16

// ErrModelChanged is returned when the store holds embeddings from another
// model. Vectors of different models are not comparable.
var ErrModelChanged = errors.New("store was indexed with a different embedding model")

// Embedder produces embeddings for batches of text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// ProgressFunc is called after each file with the number of files handled so
// far and the total.
type ProgressFunc func(path string, done, total int)

// Options configures an Indexer.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// Scope is chunker.ScopePage or chunker.ScopeDocument.
	Scope string
	// MinChunkChars drops chunks with fewer characters; 0 keeps all.
	MinChunkChars int
	BatchSize     int

	Logger     *slog.Logger
	OnProgress ProgressFunc
	// Now stamps records; defaults to time.Now.
	Now func() time.Time
}

// Indexer extracts, chunks, embeds and stores PDF documents.
type Indexer struct {
	store     store.Store
	embedder  Embedder
	extractor extract.Extractor
	opts      Options
	log       *slog.Logger
}

// New creates an Indexer. The chunk window and scope are validated here so a
// bad configuration fails before any file is touched.
func New(s store.Store, emb Embedder, ext extract.Extractor, opts Options) (*Indexer, error) {
	if err := chunker.Validate(opts.ChunkSize, opts.ChunkOverlap); err != nil {
		return nil, err
	}
	switch opts.Scope {
	case "":
		opts.Scope = chunker.ScopePage
	case chunker.ScopePage, chunker.ScopeDocument:
	default:
		return nil, fmt.Errorf("unknown chunk scope %q", opts.Scope)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MinChunkChars < 0 {
		opts.MinChunkChars = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		store:     s,
		embedder:  emb,
		extractor: ext,
		opts:      opts,
		log:       log,
	}, nil
}

// Index indexes every PDF reachable from paths. It returns a report even
// when the run aborts; files persisted before the abort stay in the store.
func (idx *Indexer) Index(ctx context.Context, paths []string) (*Report, error) {
	if err := idx.checkModel(); err != nil {
		return &Report{}, err
	}
	return idx.run(ctx, paths)
}

// checkModel refuses to mix embedding models in one store.
func (idx *Indexer) checkModel() error {
	stored, err := idx.store.GetMeta(store.MetaEmbeddingModel)
	if err != nil {
		return fmt.Errorf("read store metadata: %w", err)
	}
	if stored == "" || stored == idx.embedder.Model() {
		return nil
	}
	dim, err := idx.store.Dimension()
	if err != nil {
		return fmt.Errorf("read store dimension: %w", err)
	}
	if dim == 0 {
		return nil
	}
	return fmt.Errorf("%w: store has %q, configured %q; run `pdfrag clear` first",
		ErrModelChanged, stored, idx.embedder.Model())
}
