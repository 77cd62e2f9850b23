package types

// BuildCommand describes how to build one translation unit. It is supplied by
// an external build-command provider and treated as opaque beyond the main
// file path and working directory.
type BuildCommand struct {
	// Filename is the absolute path of the main source file.
	Filename string

	// Directory is the working directory the command runs in, typically the
	// project root. It doubles as the storage scope key.
	Directory string

	// Args are the build flags, including the compiler argv[0].
	Args []string
}

// ParseResult is the output of the external parse action for one translation
// unit: the per-file index contributions for every file in the unit's
// dependency closure, plus whether any of them failed to parse cleanly.
type ParseResult struct {
	// Shards maps absolute file path to that file's contribution.
	Shards map[string]*IndexShard

	// HadErrors is true when the unit produced diagnostics that make its
	// results suspect. Partial results are still usable.
	HadErrors bool
}

// ParseFunc is the external parse-and-extract action. It builds one
// translation unit and returns its per-file index contributions.
//
// Implementations must be safe for concurrent use; the background indexer
// invokes the action from multiple workers at once.
type ParseFunc func(cmd BuildCommand) (*ParseResult, error)
