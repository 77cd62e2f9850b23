// Package scan provides a deliberately shallow, line-oriented parse action
// for C-family sources. It exists so the indexer runs end to end without an
// external front end: it recognizes obvious definitions and local includes
// and nothing more. Real deployments plug in a proper parser via the
// ParseFunc seam.
package scan

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sourcescope/sourcescope/internal/vfs"
	"github.com/sourcescope/sourcescope/pkg/types"
)

var (
	includeRe = regexp.MustCompile(`^\s*#\s*include\s+"([^"]+)"`)
	defineRe  = regexp.MustCompile(`^\s*#\s*define\s+([A-Za-z_]\w*)`)
	typedefRe = regexp.MustCompile(`^\s*typedef\b.*?\b([A-Za-z_]\w*)\s*;`)
	structRe  = regexp.MustCompile(`^\s*(?:struct|union|enum)\s+([A-Za-z_]\w*)`)
	funcRe    = regexp.MustCompile(`^[A-Za-z_][\w\s\*]*?\b([A-Za-z_]\w*)\s*\([^;]*$`)
)

// ParseFuncFor returns a parse action reading sources through fsys. The
// result contains one shard per file in the translation unit's local include
// closure.
func ParseFuncFor(fsys vfs.FS) types.ParseFunc {
	return func(cmd types.BuildCommand) (*types.ParseResult, error) {
		result := &types.ParseResult{Shards: make(map[string]*types.IndexShard)}
		if err := scanClosure(fsys, cmd.Filename, result); err != nil {
			return nil, err
		}
		return result, nil
	}
}

// scanClosure scans path and, transitively, every local include it can
// resolve. Unresolvable includes (system headers, generated files) are
// recorded as errors in the result rather than failing the unit.
func scanClosure(fsys vfs.FS, path string, result *types.ParseResult) error {
	if _, done := result.Shards[path]; done {
		return nil
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	symbols, includes := scanFile(path, data)
	result.Shards[path] = &types.IndexShard{Symbols: symbols}

	dir := filepath.Dir(path)
	for _, inc := range includes {
		depPath := filepath.Join(dir, inc)
		if err := scanClosure(fsys, depPath, result); err != nil {
			result.HadErrors = true
		}
	}
	return nil
}

// scanFile extracts symbols and quoted-include targets from one file.
func scanFile(path string, data []byte) ([]types.Symbol, []string) {
	var symbols []types.Symbol
	var includes []string

	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()

		if m := includeRe.FindStringSubmatch(text); m != nil {
			includes = append(includes, m[1])
			continue
		}

		name, kind, ok := classify(text)
		if !ok {
			continue
		}
		col := strings.Index(text, name) + 1
		symbols = append(symbols, types.Symbol{
			Name:  name,
			Kind:  kind,
			Path:  path,
			Start: types.Position{Line: line, Column: col},
			End:   types.Position{Line: line, Column: col + len(name)},
		})
	}
	return symbols, includes
}

// classify matches one line against the definition patterns, most specific
// first.
func classify(text string) (string, types.SymbolKind, bool) {
	if m := defineRe.FindStringSubmatch(text); m != nil {
		return m[1], types.KindMacro, true
	}
	if m := typedefRe.FindStringSubmatch(text); m != nil {
		return m[1], types.KindType, true
	}
	if m := structRe.FindStringSubmatch(text); m != nil {
		return m[1], types.KindType, true
	}
	if strings.HasPrefix(strings.TrimSpace(text), "//") {
		return "", "", false
	}
	if m := funcRe.FindStringSubmatch(text); m != nil {
		// Control-flow keywords also look like calls at line start.
		switch m[1] {
		case "if", "for", "while", "switch", "return", "sizeof":
			return "", "", false
		}
		return m[1], types.KindFunction, true
	}
	return "", "", false
}
