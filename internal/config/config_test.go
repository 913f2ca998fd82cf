package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pdfrag/internal/chunker"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero overlap", func(c *Config) { c.ChunkOverlap = 0 }, false},
		{"zero size", func(c *Config) { c.ChunkSize = 0 }, true},
		{"negative size", func(c *Config) { c.ChunkSize = -10 }, true},
		{"overlap equals size", func(c *Config) { c.ChunkSize, c.ChunkOverlap = 100, 100 }, true},
		{"overlap above size", func(c *Config) { c.ChunkSize, c.ChunkOverlap = 100, 150 }, true},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, true},
		{"zero top-k", func(c *Config) { c.TopK = 0 }, true},
		{"unknown scope", func(c *Config) { c.ChunkScope = "paragraph" }, true},
		{"document scope", func(c *Config) { c.ChunkScope = chunker.ScopeDocument }, false},
		{"unknown backend", func(c *Config) { c.Backend = "bolt" }, true},
		{"sqlite backend", func(c *Config) { c.Backend = BackendSQLite }, false},
		{"relative url", func(c *Config) { c.OllamaURL = "localhost:11434/" }, true},
		{"empty model", func(c *Config) { c.Model = "" }, true},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, true},
		{"min score in range", func(c *Config) { c.MinScore = 0.3 }, false},
		{"min score above one", func(c *Config) { c.MinScore = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OLLAMA_BASE_URL":      "http://ollama:11434",
		"OLLAMA_MODEL":         "mxbai-embed-large",
		"CHUNK_SIZE":           "1000",
		"CHUNK_OVERLAP":        "100",
		"PDFRAG_TOP_K":         "9",
		"PDFRAG_EMBED_TIMEOUT": "5s",
		"PDFRAG_EMBED_RPS":     "2.5",
		"PDFRAG_BACKEND":       "sqlite",
	}
	cfg := Default()
	if err := applyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv() = %v", err)
	}

	if cfg.OllamaURL != "http://ollama:11434" {
		t.Errorf("OllamaURL = %q", cfg.OllamaURL)
	}
	if cfg.Model != "mxbai-embed-large" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 100 {
		t.Errorf("chunk = %d/%d, want 1000/100", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 9 {
		t.Errorf("TopK = %d, want 9", cfg.TopK)
	}
	if cfg.EmbedTimeout != 5*time.Second {
		t.Errorf("EmbedTimeout = %v, want 5s", cfg.EmbedTimeout)
	}
	if cfg.EmbedRPS != 2.5 {
		t.Errorf("EmbedRPS = %v, want 2.5", cfg.EmbedRPS)
	}
	if got, want := cfg.StoreFile(), filepath.Join(".pdfrag", "store.db"); got != want {
		t.Errorf("StoreFile() = %q, want %q", got, want)
	}
}

func TestApplyEnvBadNumber(t *testing.T) {
	env := map[string]string{"CHUNK_SIZE": "big"}
	cfg := Default()
	err := applyEnv(&cfg, func(k string) string { return env[k] })
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("applyEnv() = %v, want ErrInvalid", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("OLLAMA_MODEL", "")

	path := filepath.Join(t.TempDir(), "pdfrag.yaml")
	data := "chunk_size: 800\nchunk_overlap: 200\nmodel: all-minilm\nembed_timeout: 10s\nstore_path: /tmp/x.json\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunk = %d/%d, want 800/200", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.Model != "all-minilm" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.EmbedTimeout != 10*time.Second {
		t.Errorf("EmbedTimeout = %v", cfg.EmbedTimeout)
	}
	if cfg.StoreFile() != "/tmp/x.json" {
		t.Errorf("StoreFile() = %q", cfg.StoreFile())
	}
	// Untouched keys keep their defaults.
	if cfg.OllamaURL != Default().OllamaURL {
		t.Errorf("OllamaURL = %q, want default", cfg.OllamaURL)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfrag.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: 800\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHUNK_SIZE", "1200")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.ChunkSize != 1200 {
		t.Errorf("ChunkSize = %d, want 1200", cfg.ChunkSize)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() = %v, want not-exist error", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfrag.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: [1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load() = %v, want ErrInvalid", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	// Registered so the value .env sets is undone after the test.
	t.Setenv("PDFRAG_TOP_K", "")
	os.Unsetenv("PDFRAG_TOP_K")
	if err := os.WriteFile(".env", []byte("PDFRAG_TOP_K=9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.TopK != 9 {
		t.Errorf("TopK = %d, want 9 from .env", cfg.TopK)
	}
}

func TestLoadMalformedDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile(".env", []byte("B@D=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load() = %v, want ErrInvalid", err)
	}
}

func TestCheckMinScore(t *testing.T) {
	for _, v := range []float64{-1, 0, 0.35, 1} {
		if err := CheckMinScore(v); err != nil {
			t.Errorf("CheckMinScore(%g) = %v", v, err)
		}
	}
	for _, v := range []float64{-1.01, 1.5} {
		if err := CheckMinScore(v); err == nil {
			t.Errorf("CheckMinScore(%g) = nil, want error", v)
		}
	}
}
