package shardstore

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// indexSubdir is where shards live relative to the project root.
const indexSubdir = ".sourcescope/index"

// DiskStore persists one compressed shard file per source file.
//
// Writes go through a temp file and an atomic rename, so a crashed or failed
// store leaves the previous shard intact. Same-id concurrent stores race on
// the rename and resolve last-writer-wins; distinct ids never interfere.
type DiskStore struct {
	dir string
	log *slog.Logger
}

// NewDiskStore creates a disk store rooted under projectRoot. The shard
// directory is created on first use.
func NewDiskStore(projectRoot string, log *slog.Logger) (*DiskStore, error) {
	dir := filepath.Join(projectRoot, indexSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard directory %q: %w", dir, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &DiskStore{dir: dir, log: log}, nil
}

// StoreShard writes the shard for id atomically.
func (s *DiskStore) StoreShard(id string, shard *types.IndexShard) error {
	data, err := encodeShard(shard)
	if err != nil {
		return err
	}

	dst := s.shardPath(id)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(dst)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp shard for %q: %w", id, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write shard for %q: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close shard for %q: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("publish shard for %q: %w", id, err)
	}
	return nil
}

// LoadShard reads the shard for id. Absent, unreadable, and corrupt shards
// all report ErrNotFound; the caller re-indexes in every such case.
func (s *DiskStore) LoadShard(id string) (*types.IndexShard, error) {
	data, err := os.ReadFile(s.shardPath(id))
	if err != nil {
		return nil, ErrNotFound
	}
	shard, err := decodeShard(data)
	if err != nil {
		s.log.Debug("discarding unreadable shard", "id", id, "error", err)
		return nil, ErrNotFound
	}
	return shard, nil
}

// shardPath flattens an id (an absolute path) into a single filename: the
// base name for debuggability plus a hash of the full id for uniqueness.
func (s *DiskStore) shardPath(id string) string {
	sum := sha256.Sum256([]byte(id))
	return filepath.Join(s.dir, fmt.Sprintf("%s.%x.shard", filepath.Base(id), sum[:8]))
}
