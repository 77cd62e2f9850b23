package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestStableAcrossReads(t *testing.T) {
	m := NewMemFS(map[string]string{"/src/a.c": "int main() {}\n"})

	d1, err := Digest(m, "/src/a.c")
	require.NoError(t, err)
	d2, err := Digest(m, "/src/a.c")
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	m.WriteFile("/src/a.c", "int main() { return 1; }\n")
	d3, err := Digest(m, "/src/a.c")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestMemFSMissingFile(t *testing.T) {
	m := NewMemFS(nil)
	_, err := m.ReadFile("/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Digest(m, "/nope")
	assert.Error(t, err)
}

func TestMemFSReturnsCopies(t *testing.T) {
	m := NewMemFS(map[string]string{"/a": "abc"})
	data, err := m.ReadFile("/a")
	require.NoError(t, err)
	data[0] = 'X'

	again, err := m.ReadFile("/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestOSFS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.c")
	require.NoError(t, os.WriteFile(path, []byte("void f();"), 0o644))

	data, err := OSFS{}.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "void f();", string(data))

	_, err = OSFS{}.ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
