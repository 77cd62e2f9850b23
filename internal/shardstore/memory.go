package shardstore

import (
	"sync"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// MemoryStore is an in-memory Store for tests and as the factory's fallback
// when disk storage is unavailable. Thread-safe.
//
// Shards are kept in encoded form so that stored and loaded values are fully
// decoupled from caller-held pointers, matching the disk backend's behavior.
type MemoryStore struct {
	mu     sync.RWMutex
	shards map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shards: make(map[string][]byte)}
}

// StoreShard persists the shard in memory.
func (s *MemoryStore) StoreShard(id string, shard *types.IndexShard) error {
	data, err := encodeShard(shard)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.shards[id] = data
	s.mu.Unlock()
	return nil
}

// LoadShard returns the stored shard or ErrNotFound.
func (s *MemoryStore) LoadShard(id string) (*types.IndexShard, error) {
	s.mu.RLock()
	data, ok := s.shards[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeShard(data)
}

// Len returns the number of stored shards.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shards)
}
