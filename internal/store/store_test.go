package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Compile-time interface checks.
var (
	_ Store = (*JSONStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

type opener func(t *testing.T, path string) Store

func backends() map[string]struct {
	file string
	open opener
} {
	return map[string]struct {
		file string
		open opener
	}{
		BackendJSON: {"store.json", func(t *testing.T, path string) Store {
			t.Helper()
			s, err := OpenJSON(path)
			if err != nil {
				t.Fatalf("OpenJSON() = %v", err)
			}
			return s
		}},
		BackendSQLite: {"store.db", func(t *testing.T, path string) Store {
			t.Helper()
			s, err := OpenSQLite(path)
			if err != nil {
				t.Fatalf("OpenSQLite() = %v", err)
			}
			return s
		}},
	}
}

func record(source string, idx int, vec ...float32) ChunkRecord {
	page := idx + 1
	return ChunkRecord{
		ID:         RecordID(source, idx),
		Text:       source + " chunk text",
		Embedding:  vec,
		SourcePath: source,
		PageNumber: &page,
		ChunkIndex: idx,
		SourceHash: "hash-" + source,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, path string, open opener)) {
	for name, b := range backends() {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", b.file)
			fn(t, path, b.open)
		})
	}
}

func TestRecordIDDeterministic(t *testing.T) {
	if RecordID("/a.pdf", 3) != RecordID("/a.pdf", 3) {
		t.Error("RecordID is not deterministic")
	}
	if RecordID("/a.pdf", 3) == RecordID("/a.pdf", 4) {
		t.Error("RecordID collides across chunk indexes")
	}
	if RecordID("/a.pdf", 1) == RecordID("/b.pdf", 1) {
		t.Error("RecordID collides across sources")
	}
}

func TestEmptyStore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		defer s.Close()

		st, err := s.Stats()
		if err != nil {
			t.Fatalf("Stats() = %v", err)
		}
		if st.TotalDocuments != 0 || st.TotalChunks != 0 || st.Dimension != nil {
			t.Errorf("Stats() = %+v, want empty", st)
		}
		all, err := s.All()
		if err != nil || len(all) != 0 {
			t.Errorf("All() = %v, %v; want empty", all, err)
		}
	})
}

func TestAddEstablishesDimension(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		defer s.Close()

		if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1, 0, 0), record("/a.pdf", 1, 0, 1, 0)}); err != nil {
			t.Fatalf("Add() = %v", err)
		}
		dim, err := s.Dimension()
		if err != nil || dim != 3 {
			t.Fatalf("Dimension() = %d, %v; want 3", dim, err)
		}

		err = s.Add([]ChunkRecord{record("/b.pdf", 0, 1, 1)})
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Fatalf("Add(wrong dim) = %v, want ErrDimensionMismatch", err)
		}

		all, _ := s.All()
		if len(all) != 2 {
			t.Errorf("store has %d records after rejected add, want 2", len(all))
		}
	})
}

func TestAddRejectsWholeBatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		defer s.Close()

		batch := []ChunkRecord{record("/a.pdf", 0, 1, 2), record("/a.pdf", 1, 1, 2, 3)}
		if err := s.Add(batch); !errors.Is(err, ErrDimensionMismatch) {
			t.Fatalf("Add(mixed dims) = %v, want ErrDimensionMismatch", err)
		}
		st, _ := s.Stats()
		if st.TotalChunks != 0 || st.Dimension != nil {
			t.Errorf("Stats() = %+v after rejected batch, want empty", st)
		}
	})
}

func TestAddDuplicateIDs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		defer s.Close()

		r := record("/a.pdf", 0, 1, 2)
		if err := s.Add([]ChunkRecord{r, r}); !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("Add(dup in batch) = %v, want ErrDuplicateID", err)
		}
		if err := s.Add([]ChunkRecord{r}); err != nil {
			t.Fatalf("Add() = %v", err)
		}
		if err := s.Add([]ChunkRecord{r}); !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("Add(dup vs store) = %v, want ErrDuplicateID", err)
		}
	})
}

func TestAddInvalidRecord(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		defer s.Close()

		noText := record("/a.pdf", 0, 1)
		noText.Text = ""
		noVec := record("/a.pdf", 1)
		for _, r := range []ChunkRecord{noText, noVec} {
			if err := s.Add([]ChunkRecord{r}); !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("Add() = %v, want ErrInvalidRecord", err)
			}
		}
	})
}

func TestPersistAndReopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		in := []ChunkRecord{record("/b.pdf", 0, 0.5, -0.25), record("/a.pdf", 0, 1, 2), record("/a.pdf", 1, 3, 4)}
		in[2].PageNumber = nil
		if err := s.Add(in); err != nil {
			t.Fatalf("Add() = %v", err)
		}
		if err := s.SetMeta(MetaEmbeddingModel, "nomic-embed-text"); err != nil {
			t.Fatalf("SetMeta() = %v", err)
		}
		s.Close()

		s = open(t, path)
		defer s.Close()
		out, err := s.All()
		if err != nil {
			t.Fatalf("All() = %v", err)
		}
		if len(out) != len(in) {
			t.Fatalf("reopened store has %d records, want %d", len(out), len(in))
		}
		for i := range in {
			a, b := in[i], out[i]
			if a.ID != b.ID || a.Text != b.Text || a.SourcePath != b.SourcePath ||
				a.ChunkIndex != b.ChunkIndex || a.SourceHash != b.SourceHash || !a.CreatedAt.Equal(b.CreatedAt) {
				t.Errorf("record %d = %+v, want %+v", i, b, a)
			}
			if (a.PageNumber == nil) != (b.PageNumber == nil) || (a.PageNumber != nil && *a.PageNumber != *b.PageNumber) {
				t.Errorf("record %d page = %v, want %v", i, b.PageNumber, a.PageNumber)
			}
			if len(a.Embedding) != len(b.Embedding) {
				t.Fatalf("record %d embedding len = %d", i, len(b.Embedding))
			}
			for j := range a.Embedding {
				if a.Embedding[j] != b.Embedding[j] {
					t.Errorf("record %d embedding[%d] = %v, want %v", i, j, b.Embedding[j], a.Embedding[j])
				}
			}
		}

		st, _ := s.Stats()
		if st.TotalDocuments != 2 || st.TotalChunks != 3 || st.Dimension == nil || *st.Dimension != 2 {
			t.Errorf("Stats() = %+v", st)
		}
		if st.EmbeddingModel != "nomic-embed-text" {
			t.Errorf("EmbeddingModel = %q", st.EmbeddingModel)
		}
		if len(st.SourceFiles) != 2 || st.SourceFiles[0] != "/a.pdf" || st.SourceFiles[1] != "/b.pdf" {
			t.Errorf("SourceFiles = %v", st.SourceFiles)
		}
	})
}

func TestClear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1, 2, 3)}); err != nil {
			t.Fatalf("Add() = %v", err)
		}
		_ = s.SetMeta(MetaEmbeddingModel, "m")
		if err := s.Clear(); err != nil {
			t.Fatalf("Clear() = %v", err)
		}
		s.Close()

		s = open(t, path)
		defer s.Close()
		st, _ := s.Stats()
		if st.TotalChunks != 0 || st.TotalDocuments != 0 || st.Dimension != nil || st.EmbeddingModel != "" {
			t.Errorf("Stats() after clear = %+v", st)
		}
		// A cleared store accepts a new dimension.
		if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1)}); err != nil {
			t.Errorf("Add() after clear = %v", err)
		}
	})
}

func TestSourcesAndRemoveSource(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		defer s.Close()

		if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1, 1), record("/a.pdf", 1, 1, 0), record("/b.pdf", 0, 0, 1)}); err != nil {
			t.Fatalf("Add() = %v", err)
		}
		srcs, err := s.Sources()
		if err != nil {
			t.Fatalf("Sources() = %v", err)
		}
		if len(srcs) != 2 || srcs[0].Path != "/a.pdf" || srcs[0].Chunks != 2 || srcs[0].Hash != "hash-/a.pdf" {
			t.Errorf("Sources() = %+v", srcs)
		}

		n, err := s.RemoveSource("/a.pdf")
		if err != nil || n != 2 {
			t.Fatalf("RemoveSource() = %d, %v; want 2", n, err)
		}
		if n, _ := s.RemoveSource("/missing.pdf"); n != 0 {
			t.Errorf("RemoveSource(missing) = %d", n)
		}
		// Removed ids can be added again.
		if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1, 1)}); err != nil {
			t.Errorf("re-add after remove = %v", err)
		}

		if _, err := s.RemoveSource("/a.pdf"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.RemoveSource("/b.pdf"); err != nil {
			t.Fatal(err)
		}
		if dim, _ := s.Dimension(); dim != 0 {
			t.Errorf("Dimension() = %d after removing every source, want 0", dim)
		}
	})
}

func TestReplace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1, 0), record("/a.pdf", 1, 0, 1), record("/b.pdf", 0, 1, 1)}); err != nil {
			t.Fatalf("Add() = %v", err)
		}

		// Same ids as the records being replaced are not duplicates.
		n, err := s.Replace("/a.pdf", []ChunkRecord{record("/a.pdf", 0, 2, 2)})
		if err != nil || n != 2 {
			t.Fatalf("Replace() = %d, %v; want 2 removed", n, err)
		}

		_, err = s.Replace("/a.pdf", []ChunkRecord{record("/a.pdf", 0, 1, 2, 3)})
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("Replace(wrong dim) = %v, want ErrDimensionMismatch", err)
		}
		_, err = s.Replace("/a.pdf", []ChunkRecord{record("/b.pdf", 1, 1, 1)})
		if !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("Replace(foreign record) = %v, want ErrInvalidRecord", err)
		}
		_, err = s.Replace("/a.pdf", []ChunkRecord{record("/a.pdf", 3, 1, 1), record("/a.pdf", 3, 1, 1)})
		if !errors.Is(err, ErrDuplicateID) {
			t.Errorf("Replace(duplicate ids) = %v, want ErrDuplicateID", err)
		}
		s.Close()

		s = open(t, path)
		defer s.Close()
		srcs, err := s.Sources()
		if err != nil {
			t.Fatal(err)
		}
		if len(srcs) != 2 || srcs[0].Path != "/a.pdf" || srcs[0].Chunks != 1 || srcs[1].Chunks != 1 {
			t.Fatalf("Sources() after failed replaces = %+v", srcs)
		}
		all, _ := s.All()
		for _, r := range all {
			if r.SourcePath == "/a.pdf" && r.Embedding[0] != 2 {
				t.Errorf("record of /a.pdf = %v, want the successful replacement", r.Embedding)
			}
		}
	})
}

func TestReplaceOnlySourceResetsDimension(t *testing.T) {
	forEachBackend(t, func(t *testing.T, path string, open opener) {
		s := open(t, path)
		defer s.Close()
		if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1, 0)}); err != nil {
			t.Fatal(err)
		}
		// The only source may switch dimension, since nothing else pins it.
		if _, err := s.Replace("/a.pdf", []ChunkRecord{record("/a.pdf", 0, 1, 0, 0)}); err != nil {
			t.Fatalf("Replace() = %v", err)
		}
		if dim, _ := s.Dimension(); dim != 3 {
			t.Errorf("Dimension() = %d, want 3", dim)
		}
	})
}

func TestOpenDispatch(t *testing.T) {
	dir := t.TempDir()
	s, err := Open("json", filepath.Join(dir, "s.json"))
	if err != nil {
		t.Fatalf("Open(json) = %v", err)
	}
	s.Close()
	if _, err := Open("bolt", filepath.Join(dir, "s.bolt")); err == nil {
		t.Error("Open(bolt) succeeded, want error")
	}
}

func TestJSONCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenJSON(path); !errors.Is(err, ErrIO) {
		t.Fatalf("OpenJSON(corrupt) = %v, want ErrIO", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Error("corrupt file was modified")
	}
}

func TestJSONInconsistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	doc := `{"version":1,"dimension":2,"records":[{"id":"x","text":"t","embedding":[1,2,3],"source_path":"/a","chunk_index":0}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenJSON(path); !errors.Is(err, ErrIO) {
		t.Fatalf("OpenJSON(inconsistent) = %v, want ErrIO", err)
	}
}

func TestJSONWritesGitignoreInNewDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".pdfrag")
	s, err := OpenJSON(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1)}); err != nil {
		t.Fatalf("Add() = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil || string(data) != "*\n" {
		t.Errorf(".gitignore = %q, %v", data, err)
	}
	// No temp files are left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestJSONFailedPersistKeepsState(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	s, err := OpenJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Add([]ChunkRecord{record("/a.pdf", 0, 1, 2)}); err != nil {
		t.Fatalf("Add() = %v", err)
	}
	before, _ := os.ReadFile(path)

	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)

	if err := s.Add([]ChunkRecord{record("/a.pdf", 1, 3, 4)}); !errors.Is(err, ErrIO) {
		t.Fatalf("Add() on read-only dir = %v, want ErrIO", err)
	}
	if err := s.Clear(); !errors.Is(err, ErrIO) {
		t.Fatalf("Clear() on read-only dir = %v, want ErrIO", err)
	}

	all, _ := s.All()
	if len(all) != 1 {
		t.Errorf("in-memory store has %d records after failed persist, want 1", len(all))
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("store file changed after failed persist")
	}

	// The rolled-back record id is free again once writes succeed.
	os.Chmod(dir, 0o755)
	if err := s.Add([]ChunkRecord{record("/a.pdf", 1, 3, 4)}); err != nil {
		t.Errorf("Add() after recovery = %v", err)
	}
}
