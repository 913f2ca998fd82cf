package store

import "database/sql"

const ddl = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS chunks (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    text        TEXT NOT NULL,
    embedding   BLOB NOT NULL,
    source_path TEXT NOT NULL,
    page_number INTEGER,
    chunk_index INTEGER NOT NULL,
    source_hash TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS chunks_source_path ON chunks(source_path);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// metaDimension holds the established embedding dimension in the meta table.
const metaDimension = "dimension"

// Init creates the schema tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
