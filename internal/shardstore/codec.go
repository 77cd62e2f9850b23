package shardstore

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/sourcescope/sourcescope/pkg/types"
)

// Shards are persisted as zstd-compressed JSON. Symbol data compresses well
// (repeated paths and signatures), and the stateless EncodeAll/DecodeAll API
// is safe for concurrent use from every worker.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeShard serializes a shard to its on-disk representation.
func encodeShard(shard *types.IndexShard) ([]byte, error) {
	raw, err := json.Marshal(shard)
	if err != nil {
		return nil, fmt.Errorf("marshal shard %s: %w", shard.Path, err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// decodeShard deserializes a shard from its on-disk representation.
func decodeShard(data []byte) (*types.IndexShard, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress shard: %w", err)
	}
	var shard types.IndexShard
	if err := json.Unmarshal(raw, &shard); err != nil {
		return nil, fmt.Errorf("unmarshal shard: %w", err)
	}
	return &shard, nil
}
