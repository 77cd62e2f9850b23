// Package vfs abstracts file-content access for digest computation and
// testability, in the spirit of a minimal filesystem provider: the indexer
// needs nothing more than "give me the bytes of this path".
package vfs

import (
	"io/fs"
	"os"
	"sync"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// FS provides file contents to the indexer.
type FS interface {
	// ReadFile returns the content of the file at path.
	ReadFile(path string) ([]byte, error)
}

// Digest reads path through fsys and returns its content digest.
func Digest(fsys FS, path string) (types.FileDigest, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return types.FileDigest{}, err
	}
	return types.ComputeDigest(data), nil
}

// OSFS reads from the local filesystem.
type OSFS struct{}

// ReadFile returns the content of the file at path.
func (OSFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// MemFS is an in-memory FS for tests. Thread-safe.
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemFS creates a MemFS pre-populated with the given files.
func NewMemFS(files map[string]string) *MemFS {
	m := &MemFS{files: make(map[string][]byte, len(files))}
	for path, content := range files {
		m.files[path] = []byte(content)
	}
	return m
}

// ReadFile returns the content of the file at path, or fs.ErrNotExist.
func (m *MemFS) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteFile sets the content of the file at path.
func (m *MemFS) WriteFile(path, content string) {
	m.mu.Lock()
	m.files[path] = []byte(content)
	m.mu.Unlock()
}

// Remove deletes the file at path.
func (m *MemFS) Remove(path string) {
	m.mu.Lock()
	delete(m.files, path)
	m.mu.Unlock()
}
