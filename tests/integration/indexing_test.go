package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcescope/sourcescope/internal/background"
	"github.com/sourcescope/sourcescope/internal/compiledb"
	"github.com/sourcescope/sourcescope/internal/scan"
	"github.com/sourcescope/sourcescope/internal/shardstore"
	"github.com/sourcescope/sourcescope/internal/vfs"
	"github.com/sourcescope/sourcescope/pkg/types"
)

const idleTimeout = 10 * time.Second

// writeProject lays out a small C project with a compilation database.
func writeProject(t *testing.T) (root string, sources []string) {
	t.Helper()
	root = t.TempDir()

	files := map[string]string{
		"util.h": "#define UTIL_VERSION 3\nint util_add(int a, int b);\n",
		"util.c": `#include "util.h"` + "\n\nint util_add(int a, int b)\n{\n\treturn a + b;\n}\n",
		"main.c": `#include "util.h"` + "\n\nint main(void)\n{\n\treturn util_add(1, 2);\n}\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}

	db := fmt.Sprintf(`[
  {"directory": %q, "file": "util.c", "arguments": ["cc", "-c", "util.c"]},
  {"directory": %q, "file": "main.c", "arguments": ["cc", "-c", "main.c"]}
]`, root, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, compiledb.DatabaseFilename), []byte(db), 0o644))

	return root, []string{
		filepath.Join(root, "main.c"),
		filepath.Join(root, "util.c"),
		filepath.Join(root, "util.h"),
	}
}

func newIndexer(t *testing.T, root string, factory shardstore.Factory) *background.Index {
	t.Helper()
	db, err := compiledb.LoadJSONDatabase(root)
	require.NoError(t, err)
	fsys := vfs.OSFS{}
	return background.New(fsys, db, scan.ParseFuncFor(fsys), factory, background.Options{
		Workers: 2,
	})
}

func TestFreshProjectIsFullyIndexed(t *testing.T) {
	root, sources := writeProject(t)

	idx := newIndexer(t, root, shardstore.NewMemoryFactory())
	defer idx.Close()

	idx.Enqueue(sources)
	require.True(t, idx.BlockUntilIdleForTest(idleTimeout))

	snap := idx.Snapshot()
	assert.Equal(t, 3, snap.FileCount())
	assert.NotEmpty(t, snap.LookupName("util_add"))
	assert.NotEmpty(t, snap.LookupName("UTIL_VERSION"))
}

func TestRestartReusesPersistedShards(t *testing.T) {
	root, sources := writeProject(t)
	factory := shardstore.NewDiskBackedFactory(nil)

	idx := newIndexer(t, root, factory)
	idx.Enqueue(sources)
	require.True(t, idx.BlockUntilIdleForTest(idleTimeout))
	idx.Close()

	// Second process over the same tree: resolved from shards, and the
	// snapshot is identical in content.
	idx2 := newIndexer(t, root, shardstore.NewDiskBackedFactory(nil))
	defer idx2.Close()
	idx2.Enqueue(sources)
	require.True(t, idx2.BlockUntilIdleForTest(idleTimeout))

	snap := idx2.Snapshot()
	assert.Equal(t, 3, snap.FileCount())
	assert.NotEmpty(t, snap.LookupName("util_add"))
}

func TestEditedHeaderRefreshesDependents(t *testing.T) {
	root, sources := writeProject(t)

	idx := newIndexer(t, root, shardstore.NewMemoryFactory())
	defer idx.Close()

	idx.Enqueue(sources)
	require.True(t, idx.BlockUntilIdleForTest(idleTimeout))
	require.Empty(t, idx.Snapshot().LookupName("UTIL_MAX"))

	header := filepath.Join(root, "util.h")
	require.NoError(t, os.WriteFile(header,
		[]byte("#define UTIL_VERSION 3\n#define UTIL_MAX 128\nint util_add(int a, int b);\n"), 0o644))

	idx.Enqueue([]string{header})
	require.True(t, idx.BlockUntilIdleForTest(idleTimeout))

	syms := idx.Snapshot().LookupName("UTIL_MAX")
	require.NotEmpty(t, syms)
	assert.Equal(t, types.KindMacro, syms[0].Kind)
}

func TestSQLiteBackendEndToEnd(t *testing.T) {
	root, sources := writeProject(t)

	idx := newIndexer(t, root, shardstore.NewSQLiteBackedFactory(nil))
	defer idx.Close()

	idx.Enqueue(sources)
	require.True(t, idx.BlockUntilIdleForTest(idleTimeout))

	assert.Equal(t, 3, idx.Snapshot().FileCount())
}
