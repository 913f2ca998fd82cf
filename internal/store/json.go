package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const formatVersion = 1

// document is the on-disk layout of a JSONStore.
type document struct {
	Version   int               `json:"version"`
	Dimension int               `json:"dimension"`
	Meta      map[string]string `json:"meta"`
	Records   []ChunkRecord     `json:"records"`
}

// JSONStore keeps the whole collection in memory and rewrites a single
// indented JSON file after every mutation.
type JSONStore struct {
	mu      sync.RWMutex
	path    string
	dim     int
	meta    map[string]string
	records []ChunkRecord
	ids     map[string]struct{}
}

// OpenJSON loads the store at path. A missing file is an empty store; an
// unreadable or inconsistent file is ErrIO and is left untouched.
func OpenJSON(path string) (*JSONStore, error) {
	s := &JSONStore{
		path: path,
		meta: make(map[string]string),
		ids:  make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrIO, path, err)
	}
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("%w: %s has format version %d, this build reads up to %d", ErrIO, path, doc.Version, formatVersion)
	}

	dim, err := validateBatch(doc.Dimension, func(string) (bool, error) { return false, nil }, doc.Records)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is inconsistent: %v", ErrIO, path, err)
	}
	if len(doc.Records) > 0 {
		s.dim = dim
	}
	s.records = doc.Records
	for _, r := range doc.Records {
		s.ids[r.ID] = struct{}{}
	}
	if doc.Meta != nil {
		s.meta = doc.Meta
	}
	return s, nil
}

// Path returns the backing file.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Add(records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := validateBatch(s.dim, func(id string) (bool, error) {
		_, ok := s.ids[id]
		return ok, nil
	}, records)
	if err != nil {
		return err
	}

	prevDim, prevLen := s.dim, len(s.records)
	s.dim = dim
	s.records = append(s.records, records...)
	if err := s.persist(); err != nil {
		s.dim = prevDim
		s.records = s.records[:prevLen]
		return err
	}
	for _, r := range records {
		s.ids[r.ID] = struct{}{}
	}
	return nil
}

func (s *JSONStore) All() ([]ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChunkRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *JSONStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevDim, prevRecords, prevMeta := s.dim, s.records, s.meta
	s.dim, s.records, s.meta = 0, nil, make(map[string]string)
	if err := s.persist(); err != nil {
		s.dim, s.records, s.meta = prevDim, prevRecords, prevMeta
		return err
	}
	s.ids = make(map[string]struct{})
	return nil
}

func (s *JSONStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStats(s.records, s.dim, s.meta[MetaEmbeddingModel]), nil
}

func (s *JSONStore) Dimension() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim, nil
}

func (s *JSONStore) Sources() ([]SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeSources(s.records), nil
}

func (s *JSONStore) RemoveSource(path string) (int, error) {
	return s.Replace(path, nil)
}

func (s *JSONStore) Replace(path string, records []ChunkRecord) (int, error) {
	if err := checkSource(path, records); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]ChunkRecord, 0, len(s.records)+len(records))
	removed := make(map[string]struct{})
	for _, r := range s.records {
		if r.SourcePath == path {
			removed[r.ID] = struct{}{}
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) == 0 && len(records) == 0 {
		return 0, nil
	}

	base := s.dim
	if len(kept) == 0 {
		base = 0
	}
	dim, err := validateBatch(base, func(id string) (bool, error) {
		_, gone := removed[id]
		_, ok := s.ids[id]
		return ok && !gone, nil
	}, records)
	if err != nil {
		return 0, err
	}

	prevDim, prevRecords := s.dim, s.records
	s.dim = dim
	s.records = append(kept, records...)
	if err := s.persist(); err != nil {
		s.dim, s.records = prevDim, prevRecords
		return 0, err
	}
	for id := range removed {
		delete(s.ids, id)
	}
	for _, r := range records {
		s.ids[r.ID] = struct{}{}
	}
	return len(removed), nil
}

func (s *JSONStore) GetMeta(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[key], nil
}

func (s *JSONStore) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.meta[key]
	if had && prev == value {
		return nil
	}
	s.meta[key] = value
	if err := s.persist(); err != nil {
		if had {
			s.meta[key] = prev
		} else {
			delete(s.meta, key)
		}
		return err
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }

// persist writes the full collection to a temporary file in the target
// directory and renames it over the store, so readers only ever see the old
// or the new complete file. Callers hold s.mu.
func (s *JSONStore) persist() error {
	records := s.records
	if records == nil {
		records = []ChunkRecord{}
	}
	data, err := json.MarshalIndent(document{
		Version:   formatVersion,
		Dimension: s.dim,
		Meta:      s.meta,
		Records:   records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrIO, err)
	}

	dir := filepath.Dir(s.path)
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %v", ErrIO, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod %s: %v", ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %v", ErrIO, s.path, err)
	}
	return nil
}

// ensureDir creates dir if needed. A directory created here also gets a
// .gitignore so the store never ends up in version control.
func ensureDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*\n"), 0o644)
}
