package shardstore

import (
	"log/slog"
	"sync"
)

// NewDiskBackedFactory returns a Factory that creates one DiskStore per
// project root, caching instances so that sibling projects sharing a scope
// share a store. The factory is safe for concurrent use and never returns
// nil: if the shard directory cannot be created the scope silently degrades
// to an in-memory store and shards simply don't survive the process.
func NewDiskBackedFactory(log *slog.Logger) Factory {
	if log == nil {
		log = slog.Default()
	}
	var (
		mu     sync.Mutex
		stores = make(map[string]Store)
	)
	return func(scope string) Store {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := stores[scope]; ok {
			return s
		}
		var s Store
		disk, err := NewDiskStore(scope, log)
		if err != nil {
			log.Warn("shard storage unavailable, falling back to memory",
				"scope", scope, "error", err)
			s = NewMemoryStore()
		} else {
			s = disk
		}
		stores[scope] = s
		return s
	}
}

// NewSQLiteBackedFactory is like NewDiskBackedFactory but stores all shards
// of a scope in one SQLite database.
func NewSQLiteBackedFactory(log *slog.Logger) Factory {
	if log == nil {
		log = slog.Default()
	}
	var (
		mu     sync.Mutex
		stores = make(map[string]Store)
	)
	return func(scope string) Store {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := stores[scope]; ok {
			return s
		}
		var s Store
		db, err := NewSQLiteStore(scope)
		if err != nil {
			log.Warn("shard database unavailable, falling back to memory",
				"scope", scope, "error", err)
			s = NewMemoryStore()
		} else {
			s = db
		}
		stores[scope] = s
		return s
	}
}

// NewMemoryFactory returns a Factory handing out one MemoryStore per scope.
// Intended for tests.
func NewMemoryFactory() Factory {
	var (
		mu     sync.Mutex
		stores = make(map[string]*MemoryStore)
	)
	return func(scope string) Store {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := stores[scope]; ok {
			return s
		}
		s := NewMemoryStore()
		stores[scope] = s
		return s
	}
}
