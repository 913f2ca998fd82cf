package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when an embedding's length differs
	// from the dimension established by the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrDuplicateID is returned when a record id is already present.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrInvalidRecord is returned for records missing an id, text or embedding.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrIO is returned when the backing file cannot be read or written.
	ErrIO = errors.New("store i/o error")
)

// Backends accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store persists chunk records and their embeddings. Every mutating call
// either applies completely and is persisted, or leaves the store unchanged.
type Store interface {
	// Add appends records. The first record written to an empty store fixes
	// the embedding dimension; a batch containing any mismatching vector,
	// duplicate id or invalid record is rejected as a whole.
	Add(records []ChunkRecord) error
	// All returns a snapshot of every record in insertion order. Callers
	// must not modify the returned embeddings.
	All() ([]ChunkRecord, error)
	// Clear removes every record and all metadata.
	Clear() error
	// Stats summarizes the store.
	Stats() (Stats, error)
	// Dimension returns the established embedding dimension, or 0.
	Dimension() (int, error)
	// Sources lists indexed source files ordered by path.
	Sources() ([]SourceInfo, error)
	// RemoveSource deletes all records of one source file and returns how
	// many were removed.
	RemoveSource(path string) (int, error)
	// Replace swaps all records of one source file for records in a single
	// mutation and returns how many were removed. Every record must belong
	// to path. The new records are validated as if the old ones were
	// already gone; on any error the old records stay.
	Replace(path string, records []ChunkRecord) (int, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close releases resources.
	Close() error
}

// Open opens the store of the given backend at path, creating it if needed.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		return OpenJSON(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func checkSource(path string, records []ChunkRecord) error {
	for _, r := range records {
		if r.SourcePath != path {
			return fmt.Errorf("%w: record %s belongs to %s, not %s", ErrInvalidRecord, r.ID, r.SourcePath, path)
		}
	}
	return nil
}

// validateBatch checks records against the established dimension dim (0 for
// none) and the exists lookup, and returns the dimension in force after the
// batch.
func validateBatch(dim int, exists func(id string) (bool, error), records []ChunkRecord) (int, error) {
	batch := make(map[string]bool, len(records))
	for i, r := range records {
		switch {
		case r.ID == "":
			return 0, fmt.Errorf("%w: record %d has no id", ErrInvalidRecord, i)
		case r.Text == "":
			return 0, fmt.Errorf("%w: record %s has no text", ErrInvalidRecord, r.ID)
		case len(r.Embedding) == 0:
			return 0, fmt.Errorf("%w: record %s has no embedding", ErrInvalidRecord, r.ID)
		}
		if dim == 0 {
			dim = len(r.Embedding)
		}
		if len(r.Embedding) != dim {
			return 0, fmt.Errorf("%w: record %s (%s chunk %d) has %d values, store has %d",
				ErrDimensionMismatch, r.ID, r.SourcePath, r.ChunkIndex, len(r.Embedding), dim)
		}
		if batch[r.ID] {
			return 0, fmt.Errorf("%w: %s appears twice in the batch", ErrDuplicateID, r.ID)
		}
		batch[r.ID] = true
		ok, err := exists(r.ID)
		if err != nil {
			return 0, err
		}
		if ok {
			return 0, fmt.Errorf("%w: %s (%s chunk %d)", ErrDuplicateID, r.ID, r.SourcePath, r.ChunkIndex)
		}
	}
	return dim, nil
}

func computeStats(records []ChunkRecord, dim int, model string) Stats {
	sources := make(map[string]bool)
	for _, r := range records {
		sources[r.SourcePath] = true
	}
	files := make([]string, 0, len(sources))
	for p := range sources {
		files = append(files, p)
	}
	sort.Strings(files)

	st := Stats{
		TotalDocuments: len(files),
		TotalChunks:    len(records),
		SourceFiles:    files,
		EmbeddingModel: model,
	}
	if dim > 0 {
		d := dim
		st.Dimension = &d
	}
	return st
}

func computeSources(records []ChunkRecord) []SourceInfo {
	byPath := make(map[string]*SourceInfo)
	for _, r := range records {
		si, ok := byPath[r.SourcePath]
		if !ok {
			si = &SourceInfo{Path: r.SourcePath, Hash: r.SourceHash}
			byPath[r.SourcePath] = si
		}
		si.Chunks++
	}
	out := make([]SourceInfo, 0, len(byPath))
	for _, si := range byPath {
		out = append(out, *si)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
