// Package compiledb resolves source files to the build commands that own
// them. The background indexer treats command resolution as an external
// concern; this package supplies the two providers the CLI uses: a JSON
// compilation database (compile_commands.json) and a synthetic fallback for
// projects without one.
package compiledb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// CommandProvider resolves a source path to its owning build command.
// Implementations must be safe for concurrent use.
type CommandProvider interface {
	// GetCommand returns the build command for path, or false when the
	// provider does not know how to build it.
	GetCommand(path string) (types.BuildCommand, bool)
}

// DatabaseFilename is the conventional JSON compilation database name.
const DatabaseFilename = "compile_commands.json"

// jsonEntry is one record of a JSON compilation database. Either Arguments
// or Command is set, per the format's specification.
type jsonEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
}

// JSONDatabase is a CommandProvider backed by a compile_commands.json file.
// The database is loaded once and immutable afterwards.
type JSONDatabase struct {
	commands map[string]types.BuildCommand
}

// LoadJSONDatabase reads the compilation database in dir.
func LoadJSONDatabase(dir string) (*JSONDatabase, error) {
	path := filepath.Join(dir, DatabaseFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compilation database: %w", err)
	}

	var entries []jsonEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", DatabaseFilename, err)
	}

	db := &JSONDatabase{commands: make(map[string]types.BuildCommand, len(entries))}
	for _, e := range entries {
		file := e.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(e.Directory, file)
		}
		file = filepath.Clean(file)

		args := e.Arguments
		if len(args) == 0 && e.Command != "" {
			args = strings.Fields(e.Command)
		}
		db.commands[file] = types.BuildCommand{
			Filename:  file,
			Directory: e.Directory,
			Args:      args,
		}
	}
	return db, nil
}

// headerExts are the suffixes treated as headers for ownership inference.
var headerExts = map[string]bool{".h": true, ".hh": true, ".hpp": true, ".hxx": true}

// GetCommand returns the command for path. Headers never appear in
// compilation databases, so for a header the command of the nearest main
// file is used instead: same basename stem first, then directory proximity.
func (db *JSONDatabase) GetCommand(path string) (types.BuildCommand, bool) {
	path = filepath.Clean(path)
	if cmd, ok := db.commands[path]; ok {
		return cmd, true
	}
	if !headerExts[filepath.Ext(path)] {
		return types.BuildCommand{}, false
	}
	return db.inferFromNearest(path)
}

func (db *JSONDatabase) inferFromNearest(header string) (types.BuildCommand, bool) {
	stem := strings.TrimSuffix(filepath.Base(header), filepath.Ext(header))
	dir := filepath.Dir(header)

	var bestFile string
	bestStem, bestShared := false, -1
	for file := range db.commands {
		sameStem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) == stem
		shared := sharedComponents(dir, filepath.Dir(file))

		switch {
		case sameStem != bestStem:
			if !sameStem {
				continue
			}
		case shared != bestShared:
			if shared < bestShared {
				continue
			}
		case bestFile != "" && file >= bestFile:
			continue
		}
		bestFile, bestStem, bestShared = file, sameStem, shared
	}
	if bestFile == "" {
		return types.BuildCommand{}, false
	}
	return db.commands[bestFile], true
}

// sharedComponents counts leading path components two directories share.
func sharedComponents(a, b string) int {
	as := strings.Split(filepath.Clean(a), string(filepath.Separator))
	bs := strings.Split(filepath.Clean(b), string(filepath.Separator))
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	return n
}

// Files returns the sorted list of main files the database knows about.
// Used for the initial full-project enqueue.
func (db *JSONDatabase) Files() []string {
	files := make([]string, 0, len(db.commands))
	for f := range db.commands {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// FallbackProvider synthesizes one command per source file under a root, for
// projects that ship no compilation database. Every file is its own
// translation unit.
type FallbackProvider struct {
	Root string

	// Extensions are the recognized source suffixes. Empty means any file.
	Extensions []string
}

// GetCommand synthesizes a build command for path if it lies under Root and
// matches a recognized extension.
func (p *FallbackProvider) GetCommand(path string) (types.BuildCommand, bool) {
	path = filepath.Clean(path)
	if p.Root != "" {
		rel, err := filepath.Rel(p.Root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return types.BuildCommand{}, false
		}
	}
	if len(p.Extensions) > 0 {
		ext := filepath.Ext(path)
		ok := false
		for _, e := range p.Extensions {
			if ext == e {
				ok = true
				break
			}
		}
		if !ok {
			return types.BuildCommand{}, false
		}
	}
	return types.BuildCommand{Filename: path, Directory: p.Root}, true
}
