package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteStore implements Store backed by SQLite. Embeddings are stored as
// little-endian float32 blobs in sqlite-vec's vector format.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at the given path,
// initializes the schema and checks that stored vectors agree with the
// recorded dimension.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := ensureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrIO, err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrIO, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.check(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) check() error {
	dim, err := s.Dimension()
	if err != nil {
		return err
	}
	var bad int
	err = s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE vec_length(embedding) != ?", dim).Scan(&bad)
	if err != nil {
		return fmt.Errorf("%w: check embeddings: %v", ErrIO, err)
	}
	if bad > 0 {
		return fmt.Errorf("%w: %d stored embeddings do not have dimension %d", ErrIO, bad, dim)
	}
	return nil
}

func (s *SQLiteStore) Add(records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIO, err)
	}
	defer tx.Rollback()

	prevDim, err := dimensionOf(tx)
	if err != nil {
		return err
	}
	if err := insertRecords(tx, prevDim, records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return nil
}

// insertRecords validates records against prevDim and inserts them,
// recording the dimension when the batch establishes it.
func insertRecords(tx *sql.Tx, prevDim int, records []ChunkRecord) error {
	dim, err := validateBatch(prevDim, func(id string) (bool, error) {
		var one int
		err := tx.QueryRow("SELECT 1 FROM chunks WHERE id = ?", id).Scan(&one)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: lookup %s: %v", ErrIO, id, err)
		}
		return true, nil
	}, records)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks
		(id, text, embedding, source_path, page_number, chunk_index, source_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrIO, err)
	}
	defer stmt.Close()

	for _, r := range records {
		blob, err := sqlite_vec.SerializeFloat32(r.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", r.ID, err)
		}
		var page sql.NullInt64
		if r.PageNumber != nil {
			page = sql.NullInt64{Int64: int64(*r.PageNumber), Valid: true}
		}
		_, err = stmt.Exec(r.ID, r.Text, blob, r.SourcePath, page, r.ChunkIndex, r.SourceHash,
			r.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrIO, r.ID, err)
		}
	}

	if dim != prevDim {
		return setMeta(tx, metaDimension, strconv.Itoa(dim))
	}
	return nil
}

func (s *SQLiteStore) All() ([]ChunkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, text, embedding, source_path, page_number, chunk_index, source_hash, created_at
		FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []ChunkRecord
	for rows.Next() {
		var (
			r       ChunkRecord
			blob    []byte
			page    sql.NullInt64
			created string
		)
		if err := rows.Scan(&r.ID, &r.Text, &blob, &r.SourcePath, &page, &r.ChunkIndex, &r.SourceHash, &created); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", ErrIO, err)
		}
		if r.Embedding, err = decodeFloat32(blob); err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %v", ErrIO, r.ID, err)
		}
		if page.Valid {
			p := int(page.Int64)
			r.PageNumber = &p
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("%w: chunk %s created_at: %v", ErrIO, r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return out, nil
}

func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", ErrIO, err)
	}
	if _, err := tx.Exec("DELETE FROM meta"); err != nil {
		return fmt.Errorf("%w: delete meta: %v", ErrIO, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return nil
}

func (s *SQLiteStore) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&st.TotalChunks); err != nil {
		return st, fmt.Errorf("%w: count chunks: %v", ErrIO, err)
	}
	rows, err := s.db.Query("SELECT DISTINCT source_path FROM chunks ORDER BY source_path")
	if err != nil {
		return st, fmt.Errorf("%w: list sources: %v", ErrIO, err)
	}
	defer rows.Close()
	st.SourceFiles = []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return st, fmt.Errorf("%w: scan source: %v", ErrIO, err)
		}
		st.SourceFiles = append(st.SourceFiles, p)
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("%w: %v", ErrIO, err)
	}
	st.TotalDocuments = len(st.SourceFiles)

	dim, err := dimensionOf(s.db)
	if err != nil {
		return st, err
	}
	if dim > 0 && st.TotalChunks > 0 {
		st.Dimension = &dim
	}
	if st.EmbeddingModel, err = getMeta(s.db, MetaEmbeddingModel); err != nil {
		return st, err
	}
	return st, nil
}

func (s *SQLiteStore) Dimension() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dimensionOf(s.db)
}

func (s *SQLiteStore) Sources() ([]SourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT source_path, MAX(source_hash), COUNT(*)
		FROM chunks GROUP BY source_path ORDER BY source_path`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sources: %v", ErrIO, err)
	}
	defer rows.Close()

	var out []SourceInfo
	for rows.Next() {
		var si SourceInfo
		if err := rows.Scan(&si.Path, &si.Hash, &si.Chunks); err != nil {
			return nil, fmt.Errorf("%w: scan source: %v", ErrIO, err)
		}
		out = append(out, si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return out, nil
}

func (s *SQLiteStore) RemoveSource(path string) (int, error) {
	return s.Replace(path, nil)
}

func (s *SQLiteStore) Replace(path string, records []ChunkRecord) (int, error) {
	if err := checkSource(path, records); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrIO, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM chunks WHERE source_path = ?", path)
	if err != nil {
		return 0, fmt.Errorf("%w: delete %s: %v", ErrIO, path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}

	var left int
	if err := tx.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&left); err != nil {
		return 0, fmt.Errorf("%w: count chunks: %v", ErrIO, err)
	}
	prevDim := 0
	if left == 0 {
		if _, err := tx.Exec("DELETE FROM meta WHERE key = ?", metaDimension); err != nil {
			return 0, fmt.Errorf("%w: reset dimension: %v", ErrIO, err)
		}
	} else if prevDim, err = dimensionOf(tx); err != nil {
		return 0, err
	}

	if err := insertRecords(tx, prevDim, records); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrIO, err)
	}
	return int(n), nil
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getMeta(s.db, key)
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setMeta(s.db, key, value)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func getMeta(q queryer, key string) (string, error) {
	var value string
	err := q.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get meta %s: %v", ErrIO, key, err)
	}
	return value, nil
}

func setMeta(q queryer, key, value string) error {
	_, err := q.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("%w: set meta %s: %v", ErrIO, key, err)
	}
	return nil
}

func dimensionOf(q queryer) (int, error) {
	v, err := getMeta(q, metaDimension)
	if err != nil || v == "" {
		return 0, err
	}
	dim, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: bad stored dimension %q", ErrIO, v)
	}
	return dim, nil
}

// decodeFloat32 reverses sqlite_vec.SerializeFloat32.
func decodeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes is not a float32 vector", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
