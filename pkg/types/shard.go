package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestSize is the size in bytes of a FileDigest.
const DigestSize = 8

// FileDigest is a fixed-size content fingerprint. Equal digests mean the file
// is effectively unchanged for indexing purposes.
type FileDigest [DigestSize]byte

// ComputeDigest returns the digest of the given file content.
func ComputeDigest(content []byte) FileDigest {
	sum := sha256.Sum256(content)
	var d FileDigest
	copy(d[:], sum[:DigestSize])
	return d
}

// Hex returns the lowercase hex encoding of the digest.
func (d FileDigest) Hex() string {
	return hex.EncodeToString(d[:])
}

// DigestFromHex parses a digest from its hex encoding.
// Returns the zero digest and false if the encoding is malformed.
func DigestFromHex(s string) (FileDigest, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != DigestSize {
		return FileDigest{}, false
	}
	var d FileDigest
	copy(d[:], b)
	return d, true
}

// IndexShard is the index contribution of a single file. Shards are persisted
// independently of which translation unit produced them, keyed by the file's
// absolute path.
type IndexShard struct {
	// Path is the absolute path of the file this shard describes.
	Path string `json:"path"`

	// Digest is the hex-encoded content digest the shard was built from.
	Digest string `json:"digest"`

	// HadErrors records whether the translation unit that produced this
	// shard failed to parse cleanly.
	HadErrors bool `json:"had_errors,omitempty"`

	// Deps is the dependency closure of the translation unit. Only set on
	// the shard of a main file; empty for header/include shards.
	Deps []string `json:"deps,omitempty"`

	// Symbols contributed by this file.
	Symbols []Symbol `json:"symbols,omitempty"`
}
