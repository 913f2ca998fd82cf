package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pdfrag/internal/chunker"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration error. It is reported before any
// indexing or search I/O happens.
var ErrInvalid = errors.New("invalid configuration")

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultFile is the config file picked up from the working directory when
// no explicit path is given.
const DefaultFile = "pdfrag.yaml"

// Config is the process-wide configuration, passed explicitly into the
// chunker, embedder, store and search engine constructors.
type Config struct {
	StorePath string `yaml:"store_path"`
	Backend   string `yaml:"backend"`

	OllamaURL    string        `yaml:"ollama_url"`
	Model        string        `yaml:"model"`
	EmbedTimeout time.Duration `yaml:"embed_timeout"`
	EmbedRPS     float64       `yaml:"embed_rps"`
	BatchSize    int           `yaml:"batch_size"`

	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	ChunkScope    string `yaml:"chunk_scope"`
	MinChunkChars int    `yaml:"min_chunk_chars"`

	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
	LogLevel string  `yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Backend:      BackendJSON,
		OllamaURL:    "http://localhost:11434",
		Model:        "nomic-embed-text",
		EmbedTimeout: 60 * time.Second,
		BatchSize:    16,
		ChunkSize:    2000,
		ChunkOverlap: 500,
		ChunkScope:   chunker.ScopePage,
		TopK:         5,
		MinScore:     -1,
		LogLevel:     "info",
	}
}

// Load builds a Config from defaults, an optional YAML file, a .env file and
// the environment, in that order of increasing precedence. An empty path
// means DefaultFile if it exists; a missing explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := loadFile(path, &cfg); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return cfg, err
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("%w: .env: %v", ErrInvalid, err)
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// StoreFile returns the store location, defaulting per backend to a file
// under .pdfrag in the working directory.
func (c Config) StoreFile() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	if c.Backend == BackendSQLite {
		return filepath.Join(".pdfrag", "store.db")
	}
	return filepath.Join(".pdfrag", "store.json")
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. The Ollama and chunk
// variable names are shared with existing deployments of the tool.
func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
		}
		*dst = n
		return nil
	}

	str("OLLAMA_BASE_URL", &cfg.OllamaURL)
	str("OLLAMA_MODEL", &cfg.Model)
	str("PDFRAG_STORE", &cfg.StorePath)
	str("PDFRAG_BACKEND", &cfg.Backend)
	str("PDFRAG_CHUNK_SCOPE", &cfg.ChunkScope)
	str("PDFRAG_LOG_LEVEL", &cfg.LogLevel)

	for key, dst := range map[string]*int{
		"CHUNK_SIZE":        &cfg.ChunkSize,
		"CHUNK_OVERLAP":     &cfg.ChunkOverlap,
		"PDFRAG_TOP_K":      &cfg.TopK,
		"PDFRAG_BATCH_SIZE": &cfg.BatchSize,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(getenv("PDFRAG_EMBED_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: PDFRAG_EMBED_TIMEOUT=%q: %v", ErrInvalid, v, err)
		}
		cfg.EmbedTimeout = d
	}
	if v := strings.TrimSpace(getenv("PDFRAG_EMBED_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: PDFRAG_EMBED_RPS=%q is not a number", ErrInvalid, v)
		}
		cfg.EmbedRPS = f
	}
	return nil
}

// CheckMinScore rejects similarity thresholds outside [-1, 1].
func CheckMinScore(v float64) error {
	if v < -1 || v > 1 {
		return fmt.Errorf("min score must be in [-1, 1] (got %g)", v)
	}
	return nil
}

// Validate checks every knob that must be sane before any I/O.
func (c Config) Validate() error {
	var problems []string
	if c.ChunkSize <= 0 {
		problems = append(problems, fmt.Sprintf("chunk size must be > 0 (got %d)", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, fmt.Sprintf("chunk overlap must be in [0, chunk size) (got %d, size %d)", c.ChunkOverlap, c.ChunkSize))
	}
	if c.ChunkScope != chunker.ScopePage && c.ChunkScope != chunker.ScopeDocument {
		problems = append(problems, fmt.Sprintf("chunk scope must be %q or %q (got %q)", chunker.ScopePage, chunker.ScopeDocument, c.ChunkScope))
	}
	if c.MinChunkChars < 0 {
		problems = append(problems, "min chunk chars must be >= 0")
	}
	if c.TopK < 1 {
		problems = append(problems, fmt.Sprintf("top-k must be >= 1 (got %d)", c.TopK))
	}
	if err := CheckMinScore(c.MinScore); err != nil {
		problems = append(problems, err.Error())
	}
	if c.BatchSize < 1 {
		problems = append(problems, fmt.Sprintf("batch size must be >= 1 (got %d)", c.BatchSize))
	}
	if c.EmbedTimeout < 0 {
		problems = append(problems, "embed timeout must be >= 0")
	}
	if c.EmbedRPS < 0 {
		problems = append(problems, "embed rps must be >= 0")
	}
	if c.Backend != BackendJSON && c.Backend != BackendSQLite {
		problems = append(problems, fmt.Sprintf("backend must be %q or %q (got %q)", BackendJSON, BackendSQLite, c.Backend))
	}
	if c.Model == "" {
		problems = append(problems, "embedding model is required")
	}
	if u, err := url.Parse(c.OllamaURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("ollama url %q is not an absolute URL", c.OllamaURL))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
