// Package types provides shared type definitions for the sourcescope
// background indexer.
//
// # Core Types
//
// Symbol represents a language construct extracted from source code by an
// external parse action:
//
//	symbol := types.Symbol{
//	    Name:      "openDatabase",
//	    Kind:      types.KindFunction,
//	    Path:      "/src/db.c",
//	    Signature: "sqlite3 *openDatabase(const char *path)",
//	}
//
// IndexShard is the persisted contribution of a single file: its symbols, the
// content digest they were extracted from, and (for main files) the
// dependency closure of the translation unit that produced them. Shards are
// keyed by file path so that two translation units sharing a header reuse one
// shard.
//
// FileDigest is a fixed-size content fingerprint. Digest equality is the sole
// criterion for "does this file need reprocessing":
//
//	current := types.ComputeDigest(content)
//	if current.Hex() == shard.Digest {
//	    // file unchanged, reuse persisted symbols
//	}
//
// BuildCommand and ParseFunc model the external collaborators: the build
// system that knows how to compile each file, and the static-analysis action
// that turns one compilation into per-file shards.
package types
