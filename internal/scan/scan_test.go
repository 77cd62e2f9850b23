package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcescope/sourcescope/internal/vfs"
	"github.com/sourcescope/sourcescope/pkg/types"
)

func TestScanExtractsDefinitions(t *testing.T) {
	fsys := vfs.NewMemFS(map[string]string{
		"/p/util.c": `#define MAX_LEN 64
typedef unsigned long handle_t;
struct buffer {
	char data[MAX_LEN];
};

int buffer_init(struct buffer *b)
{
	return 0;
}
`,
	})

	parse := ParseFuncFor(fsys)
	result, err := parse(types.BuildCommand{Filename: "/p/util.c"})
	require.NoError(t, err)
	require.Contains(t, result.Shards, "/p/util.c")
	assert.False(t, result.HadErrors)

	byName := make(map[string]types.SymbolKind)
	for _, s := range result.Shards["/p/util.c"].Symbols {
		byName[s.Name] = s.Kind
	}
	assert.Equal(t, types.KindMacro, byName["MAX_LEN"])
	assert.Equal(t, types.KindType, byName["handle_t"])
	assert.Equal(t, types.KindType, byName["buffer"])
	assert.Equal(t, types.KindFunction, byName["buffer_init"])
	assert.NotContains(t, byName, "if")
	assert.NotContains(t, byName, "return")
}

func TestScanFollowsLocalIncludes(t *testing.T) {
	fsys := vfs.NewMemFS(map[string]string{
		"/p/main.c": `#include "util.h"
#include "sub/deep.h"
int main(void) { return 0; }
`,
		"/p/util.h":     "int util(void);\n",
		"/p/sub/deep.h": `#include "../util.h"` + "\nint deep(void);\n",
	})

	parse := ParseFuncFor(fsys)
	result, err := parse(types.BuildCommand{Filename: "/p/main.c"})
	require.NoError(t, err)

	assert.Len(t, result.Shards, 3)
	assert.Contains(t, result.Shards, "/p/util.h")
	assert.Contains(t, result.Shards, "/p/sub/deep.h")
	assert.False(t, result.HadErrors)
}

func TestScanUnresolvableIncludeSetsHadErrors(t *testing.T) {
	fsys := vfs.NewMemFS(map[string]string{
		"/p/main.c": `#include "missing.h"` + "\nint main(void) { return 0; }\n",
	})

	parse := ParseFuncFor(fsys)
	result, err := parse(types.BuildCommand{Filename: "/p/main.c"})
	require.NoError(t, err)
	assert.True(t, result.HadErrors)
	assert.Contains(t, result.Shards, "/p/main.c")
}

func TestScanMissingMainFileFails(t *testing.T) {
	parse := ParseFuncFor(vfs.NewMemFS(nil))
	_, err := parse(types.BuildCommand{Filename: "/p/absent.c"})
	assert.Error(t, err)
}
