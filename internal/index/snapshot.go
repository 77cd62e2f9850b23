package index

import (
	"sync/atomic"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// Snapshot is an immutable, fully built version of the queryable index.
// All lookups are read-only and safe for unlimited concurrent use.
//
// Query algorithms beyond exact lookup (ranking, fuzzy matching, protocol
// surfaces) are out of scope here; the snapshot only guarantees that readers
// observe a complete, consistent index state.
type Snapshot struct {
	version uint64
	total   int
	byFile  map[string][]types.Symbol
	byName  map[string][]types.Symbol
}

// Version returns the snapshot's monotonically increasing rebuild number.
func (s *Snapshot) Version() uint64 { return s.version }

// SymbolCount returns the total number of symbols in the snapshot.
func (s *Snapshot) SymbolCount() int { return s.total }

// FileCount returns the number of indexed files.
func (s *Snapshot) FileCount() int { return len(s.byFile) }

// LookupName returns all symbols with the given exact name.
func (s *Snapshot) LookupName(name string) []types.Symbol {
	return copySymbols(s.byName[name])
}

// FileSymbols returns the symbols contributed by one file.
func (s *Snapshot) FileSymbols(path string) []types.Symbol {
	return copySymbols(s.byFile[path])
}

// HasFile reports whether the file contributed to this snapshot.
func (s *Snapshot) HasFile(path string) bool {
	_, ok := s.byFile[path]
	return ok
}

func copySymbols(src []types.Symbol) []types.Symbol {
	if len(src) == 0 {
		return nil
	}
	out := make([]types.Symbol, len(src))
	copy(out, src)
	return out
}

// SwapIndex publishes snapshots atomically: readers always see either the
// previous complete snapshot or the new one, never a partial state. Reads
// are lock-free.
type SwapIndex struct {
	current atomic.Pointer[Snapshot]
}

// NewSwapIndex creates a SwapIndex holding an empty snapshot.
func NewSwapIndex() *SwapIndex {
	si := &SwapIndex{}
	si.current.Store(&Snapshot{
		byFile: make(map[string][]types.Symbol),
		byName: make(map[string][]types.Symbol),
	})
	return si
}

// Current returns the currently published snapshot. Never nil.
func (si *SwapIndex) Current() *Snapshot {
	return si.current.Load()
}

// Swap atomically publishes a new snapshot.
func (si *SwapIndex) Swap(s *Snapshot) {
	si.current.Store(s)
}
