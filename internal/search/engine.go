package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"pdfrag/internal/store"
)

// ErrInvalidTopK is returned when fewer than one result is requested.
var ErrInvalidTopK = errors.New("top_k must be at least 1")

// tieEpsilon is the score difference below which two results count as tied.
const tieEpsilon = 1e-9

// NoMinScore disables score filtering.
const NoMinScore = -1.0

// Result is a stored chunk with its similarity to the query.
type Result struct {
	Record store.ChunkRecord `json:"record"`
	Score  float64           `json:"score"`
}

// Candidates supplies the records a query is ranked against.
type Candidates interface {
	All() ([]store.ChunkRecord, error)
}

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Engine answers queries by exhaustive cosine similarity.
type Engine struct {
	candidates Candidates
	embedder   QueryEmbedder
	// MinScore drops results scoring below it. NoMinScore keeps everything.
	MinScore float64
}

// NewEngine creates an Engine over c using emb for queries.
func NewEngine(c Candidates, emb QueryEmbedder) *Engine {
	return &Engine{candidates: c, embedder: emb, MinScore: NoMinScore}
}

// Search embeds query and returns up to topK records ordered by descending
// similarity.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	records, err := e.candidates.All()
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	if len(records) == 0 {
		return []Result{}, nil
	}

	qvec, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if dim := len(records[0].Embedding); len(qvec) != dim {
		return nil, fmt.Errorf("%w: query has %d values, store has %d", store.ErrDimensionMismatch, len(qvec), dim)
	}

	return Rank(records, qvec, topK, e.MinScore), nil
}

// Rank scores records against qvec and returns the best topK at or above
// minScore. Scores in the same tieEpsilon bucket are ordered by chunk index,
// then source path.
func Rank(records []store.ChunkRecord, qvec []float32, topK int, minScore float64) []Result {
	results := make([]Result, 0, len(records))
	for _, r := range records {
		score := Cosine(qvec, r.Embedding)
		if score < minScore {
			continue
		}
		results = append(results, Result{Record: r, Score: score})
	}

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// sortResults orders results by descending score bucket, then ascending
// chunk index, then source path. Bucketing keeps the order a strict weak
// ordering, so it never depends on input order; two scores closer than
// tieEpsilon can still straddle a bucket edge and compare unequal.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ba, bb := scoreBucket(a.Score), scoreBucket(b.Score); ba != bb {
			return ba > bb
		}
		if a.Record.ChunkIndex != b.Record.ChunkIndex {
			return a.Record.ChunkIndex < b.Record.ChunkIndex
		}
		return a.Record.SourcePath < b.Record.SourcePath
	})
}

func scoreBucket(score float64) int64 {
	return int64(math.Round(score / tieEpsilon))
}

// Cosine returns the cosine similarity of a and b computed in float64 and
// clamped to [-1, 1]. A zero vector or a length mismatch scores -1.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return -1
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return max(-1, min(1, s))
}
