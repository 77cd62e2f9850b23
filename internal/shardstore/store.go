// Package shardstore provides persistent, content-addressed storage for
// per-file index shards.
//
// Shards are stored and retrieved independently, keyed by shard identifier -
// in practice the absolute path of a source file. Storage is a cache, not a
// source of truth: it may retain shards for files no longer tracked, and a
// lost or corrupt shard only costs a re-index on the next run.
//
// Three backends are provided: a disk store writing one compressed file per
// shard, a SQLite store using the same dual-driver build-tag setup as the
// rest of the ecosystem, and an in-memory store for tests.
package shardstore

import (
	"errors"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// ErrNotFound is returned by LoadShard when no shard exists for the id.
// Unreadable or corrupt shards are also reported as not found; absence is
// never an error condition worth acting on beyond re-indexing.
var ErrNotFound = errors.New("shard not found")

// Store persists and retrieves index shards. Implementations must be safe
// for unlimited concurrent callers on any ids; concurrent stores to the same
// id are last-writer-wins, with no atomicity across ids.
type Store interface {
	// StoreShard durably persists the shard under the given id. On failure
	// the prior content for that id is either untouched or fully
	// overwritten, never partially written, and unrelated ids are never
	// affected.
	StoreShard(id string, shard *types.IndexShard) error

	// LoadShard returns the stored shard, or ErrNotFound if the shard is
	// absent or unreadable.
	LoadShard(id string) (*types.IndexShard, error)
}

// Factory maps a scope key (a project root) to a storage instance. The
// factory caches instances per scope, is safe for concurrent use, and never
// returns nil.
type Factory func(scope string) Store
