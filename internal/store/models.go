package store

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// recordNamespace scopes the name-based UUIDs used as record ids.
var recordNamespace = uuid.MustParse("6f1d2c1e-4f0b-5d8a-9c57-0b6e2a4d7f31")

// ChunkRecord is the unit of storage and retrieval.
type ChunkRecord struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	SourcePath string    `json:"source_path"`
	// PageNumber is 1-based and nil when chunks span pages.
	PageNumber *int      `json:"page_number,omitempty"`
	ChunkIndex int       `json:"chunk_index"`
	SourceHash string    `json:"source_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordID derives the id of the chunkIndex-th chunk of sourcePath. The same
// path and index always give the same id.
func RecordID(sourcePath string, chunkIndex int) string {
	return uuid.NewSHA1(recordNamespace, []byte(sourcePath+"#"+strconv.Itoa(chunkIndex))).String()
}

// Stats summarizes a store.
type Stats struct {
	TotalDocuments int `json:"total_documents"`
	TotalChunks    int `json:"total_chunks"`
	// Dimension is nil while no embedding dimension is established.
	Dimension      *int     `json:"dimension"`
	SourceFiles    []string `json:"source_files"`
	EmbeddingModel string   `json:"embedding_model,omitempty"`
}

// SourceInfo describes one indexed source file.
type SourceInfo struct {
	Path   string `json:"path"`
	Hash   string `json:"hash,omitempty"`
	Chunks int    `json:"chunks"`
}

// Meta keys.
const (
	MetaEmbeddingModel = "embedding_model"
)
