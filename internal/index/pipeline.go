package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"pdfrag/internal/chunker"
	"pdfrag/internal/embedder"
	"pdfrag/internal/extract"
	"pdfrag/internal/store"
	"pdfrag/internal/walker"
)

// Failure describes a file or chunk that could not be indexed.
type Failure struct {
	Path   string `json:"path"`
	Page   *int   `json:"page,omitempty"`
	Chunk  *int   `json:"chunk,omitempty"`
	Reason string `json:"reason"`
}

// Report summarizes an indexing run.
type Report struct {
	FilesTotal     int       `json:"files_total"`
	FilesIndexed   int       `json:"files_indexed"`
	FilesUnchanged int       `json:"files_unchanged"`
	FilesSkipped   int       `json:"files_skipped"`
	ChunksIndexed  int       `json:"chunks_indexed"`
	Failures       []Failure `json:"failures,omitempty"`
}

// Partial reports whether anything failed during an otherwise completed run.
func (r *Report) Partial() bool { return len(r.Failures) > 0 }

func (r *Report) fail(path string, page, chunk *int, reason string) {
	r.Failures = append(r.Failures, Failure{Path: path, Page: page, Chunk: chunk, Reason: reason})
}

// piece is one chunk awaiting embedding.
type piece struct {
	text  string
	page  *int
	index int
}

// fileWork is a file that has been read and chunked, or that failed to be.
type fileWork struct {
	info      walker.FileInfo
	hash      string
	unchanged bool
	replace   bool
	pieces    []piece
	err       error
}

// run walks the paths, then feeds extracted files from a producer goroutine
// to the embed and store stage running on the calling goroutine.
func (idx *Indexer) run(ctx context.Context, paths []string) (*Report, error) {
	var report Report

	files, problems := walker.Collect(paths, map[string]bool{"pdf": true})
	report.FilesTotal = len(files) + len(problems)
	for _, p := range problems {
		idx.log.Warn("skipping path", "path", p.Path, "err", p.Err)
		report.FilesSkipped++
		report.fail(p.Path, nil, nil, p.Err.Error())
	}
	if len(files) == 0 {
		return &report, nil
	}

	known := make(map[string]string)
	sources, err := idx.store.Sources()
	if err != nil {
		return &report, fmt.Errorf("list indexed sources: %w", err)
	}
	for _, s := range sources {
		known[s.Path] = s.Hash
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stage 1: hash, extract, chunk (1 producer, in walk order)
	workCh := make(chan fileWork, 2)
	go func() {
		defer close(workCh)
		for _, fi := range files {
			w := idx.prepare(ctx, fi, known)
			select {
			case workCh <- w:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Stage 2: embed + store
	st := &runState{first: true}
	var runErr error
	done := 0
	for w := range workCh {
		if err := idx.consume(ctx, w, st, &report); err != nil {
			runErr = err
			break
		}
		done++
		if idx.opts.OnProgress != nil {
			idx.opts.OnProgress(w.info.Path, done, len(files))
		}
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		cancel()
		for range workCh {
		}
		return &report, runErr
	}
	return &report, nil
}

// prepare reads, hashes and chunks one file.
func (idx *Indexer) prepare(ctx context.Context, fi walker.FileInfo, known map[string]string) fileWork {
	w := fileWork{info: fi}

	hash, err := hashFile(fi.Path)
	if err != nil {
		w.err = fmt.Errorf("read: %w", err)
		return w
	}
	w.hash = hash
	prev, seen := known[fi.Path]
	if seen && prev == hash {
		w.unchanged = true
		return w
	}
	w.replace = seen

	pages, err := idx.extractor.Pages(ctx, fi.Path)
	if err != nil {
		w.err = err
		return w
	}
	if !extract.HasText(pages) {
		w.err = errors.New("no extractable text")
		return w
	}

	w.pieces, w.err = idx.split(pages)
	return w
}

// split chunks pages according to the configured scope. Chunk indexes run
// across the whole document.
func (idx *Indexer) split(pages []string) ([]piece, error) {
	var out []piece
	add := func(text string, page *int) error {
		chunks, err := chunker.Split(text, idx.opts.ChunkSize, idx.opts.ChunkOverlap)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if strings.TrimSpace(c) == "" || utf8.RuneCountInString(c) < idx.opts.MinChunkChars {
				continue
			}
			out = append(out, piece{text: c, page: page, index: len(out)})
		}
		return nil
	}

	if idx.opts.Scope == chunker.ScopeDocument {
		if err := add(strings.Join(pages, "\n"), nil); err != nil {
			return nil, err
		}
		return out, nil
	}
	for i, p := range pages {
		page := i + 1
		if err := add(p, &page); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// runState carries what the consumer needs to remember across files.
type runState struct {
	// first is true until the first embedding call of the run returns.
	first      bool
	modelSaved bool
}

// consume embeds and stores one file. A returned error aborts the run;
// everything else is recorded in the report.
func (idx *Indexer) consume(ctx context.Context, w fileWork, st *runState, report *Report) error {
	path := w.info.Path
	switch {
	case w.unchanged:
		idx.log.Debug("unchanged", "path", path)
		report.FilesUnchanged++
		return nil
	case w.err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		idx.log.Warn("skipping file", "path", path, "err", w.err)
		report.FilesSkipped++
		report.fail(path, nil, nil, w.err.Error())
		return nil
	case len(w.pieces) == 0:
		idx.log.Warn("skipping file", "path", path, "reason", "no chunks")
		report.FilesSkipped++
		report.fail(path, nil, nil, "no chunks")
		return nil
	}

	vectors, errs, err := idx.embedPieces(ctx, w.pieces, st)
	if err != nil {
		return err
	}
	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}

	now := idx.opts.Now().UTC()
	hash := w.hash
	if failed > 0 {
		// Leave the hash empty so the next run retries the whole file.
		hash = ""
	}
	records := make([]store.ChunkRecord, 0, len(w.pieces))
	for i, p := range w.pieces {
		if errs[i] != nil {
			idx.log.Warn("chunk embedding failed", "path", path, "chunk", p.index, "err", errs[i])
			report.fail(path, p.page, intPtr(p.index), errs[i].Error())
			continue
		}
		records = append(records, store.ChunkRecord{
			ID:         store.RecordID(path, p.index),
			Text:       p.text,
			Embedding:  vectors[i],
			SourcePath: path,
			PageNumber: p.page,
			ChunkIndex: p.index,
			SourceHash: hash,
			CreatedAt:  now,
		})
	}

	switch {
	case w.replace:
		n, err := idx.store.Replace(path, records)
		if err != nil {
			return fmt.Errorf("replace %s: %w", path, err)
		}
		idx.log.Info("replaced changed file", "path", path, "removed", n)
	case len(records) > 0:
		if err := idx.store.Add(records); err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
	}
	if len(records) == 0 {
		report.FilesSkipped++
		return nil
	}
	if !st.modelSaved {
		if err := idx.store.SetMeta(store.MetaEmbeddingModel, idx.embedder.Model()); err != nil {
			return fmt.Errorf("record embedding model: %w", err)
		}
		st.modelSaved = true
	}

	idx.log.Info("indexed", "path", path, "chunks", len(records), "failed", failed)
	report.FilesIndexed++
	report.ChunksIndexed += len(records)
	return nil
}

// embedPieces embeds pieces in batches. A failed batch is retried one chunk
// at a time; chunks that still fail have a nil vector and their error in
// errs. Only a transport failure on the run's first call, or cancellation,
// is returned as an error.
func (idx *Indexer) embedPieces(ctx context.Context, pieces []piece, st *runState) (vectors [][]float32, errs []error, err error) {
	vectors = make([][]float32, len(pieces))
	errs = make([]error, len(pieces))

	for start := 0; start < len(pieces); start += idx.opts.BatchSize {
		end := min(start+idx.opts.BatchSize, len(pieces))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = pieces[start+i].text
		}

		embs, err := idx.embedder.Embed(ctx, texts)
		first := st.first
		st.first = false
		if err == nil {
			copy(vectors[start:end], embs)
			continue
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if first && (errors.Is(err, embedder.ErrUnavailable) || errors.Is(err, embedder.ErrTimeout)) {
			return nil, nil, fmt.Errorf("embedding service: %w", err)
		}
		if len(texts) == 1 {
			errs[start] = err
			continue
		}

		idx.log.Warn("batch embedding failed, retrying chunk by chunk", "size", len(texts), "err", err)
		for i := start; i < end; i++ {
			v, err := idx.embedder.Embed(ctx, []string{pieces[i].text})
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				errs[i] = err
				continue
			}
			vectors[i] = v[0]
		}
	}
	return vectors, errs, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func intPtr(v int) *int { return &v }
