package shardstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// SQLiteStore keeps all shards of a project in a single SQLite database.
// Useful where one file per shard is impractical (very large closures,
// filesystems with poor small-file behavior).
//
// SQLite serializes writers internally; the UPSERT makes same-id concurrent
// stores last-writer-wins without partial writes.
type SQLiteStore struct {
	db *sql.DB
}

const shardSchema = `
CREATE TABLE IF NOT EXISTS shards (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// NewSQLiteStore opens (creating if necessary) the shard database under
// projectRoot.
func NewSQLiteStore(projectRoot string) (*SQLiteStore, error) {
	dir := filepath.Join(projectRoot, indexSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard directory %q: %w", dir, err)
	}
	dbPath := filepath.Join(dir, "shards.db")

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open shard database: %w", err)
	}

	// WAL mode lets shard loads proceed while a worker is storing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=2000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// SQLite benefits from a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(shardSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create shard schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// StoreShard persists the shard, replacing any previous version for the id.
func (s *SQLiteStore) StoreShard(id string, shard *types.IndexShard) error {
	data, err := encodeShard(shard)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO shards (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		id, data, time.Now())
	if err != nil {
		return fmt.Errorf("store shard %q: %w", id, err)
	}
	return nil
}

// LoadShard returns the stored shard or ErrNotFound.
func (s *SQLiteStore) LoadShard(id string) (*types.IndexShard, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM shards WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ErrNotFound
	}
	shard, err := decodeShard(data)
	if err != nil {
		return nil, ErrNotFound
	}
	return shard, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
