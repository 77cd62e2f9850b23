// Package index holds the in-memory symbol index: a mutable per-file table
// fed by the background indexer, and the immutable snapshots published from
// it for lock-free reads.
package index

import (
	"sync"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// FileSymbols is the mutable per-file symbol table. Workers merge each
// reconciled file's contribution here; readers never touch it directly and
// instead query a published Snapshot.
type FileSymbols struct {
	mu    sync.Mutex
	files map[string][]types.Symbol
}

// NewFileSymbols creates an empty table.
func NewFileSymbols() *FileSymbols {
	return &FileSymbols{files: make(map[string][]types.Symbol)}
}

// Update replaces the symbols contributed by path. A nil or empty slice
// still registers the file as indexed.
func (fs *FileSymbols) Update(path string, symbols []types.Symbol) {
	copied := make([]types.Symbol, len(symbols))
	copy(copied, symbols)

	fs.mu.Lock()
	fs.files[path] = copied
	fs.mu.Unlock()
}

// FileCount returns the number of files with a contribution in the table.
func (fs *FileSymbols) FileCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.files)
}

// Build constructs an immutable snapshot of the current table contents.
func (fs *FileSymbols) Build(version uint64) *Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	snap := &Snapshot{
		version: version,
		byFile:  make(map[string][]types.Symbol, len(fs.files)),
		byName:  make(map[string][]types.Symbol),
	}
	for path, symbols := range fs.files {
		snap.byFile[path] = symbols // slices are never mutated after Update
		for _, sym := range symbols {
			snap.byName[sym.Name] = append(snap.byName[sym.Name], sym)
			snap.total++
		}
	}
	return snap
}
