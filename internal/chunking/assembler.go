// Package chunking implements the chunk assembler spec.md §4.H
// describes: a ChunkingAdapter abstraction parameterized by a "chunks
// container" type and a "value" type, with non-chunked and chunked
// modes. The chunked mode never streams partial results — a missing
// chunk is a hard error.
package chunking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jamestiotio/corestore/internal/errorsx"
	"github.com/jamestiotio/corestore/internal/readmodel"
	"github.com/jamestiotio/corestore/internal/storageengine"
)

// Adapter is implemented once per read-path shape (point-get byte
// record, batch-get typed record, compute decoded record). It owns how
// chunks are accumulated and how the final value is constructed.
type Adapter[C any, V any] interface {
	NewContainer(manifest readmodel.ChunkedValueManifest) C
	AddChunkIntoContainer(container C, chunkIndex int, bytes []byte) error
	ConstructValue(schemaID int32, container C) (V, error)
	DecodeNonChunked(schemaID int32, bytes []byte) (V, error)
}

// Assemble performs a single storage-engine read for non-chunked values,
// or a manifest read plus N chunk reads for chunked values, per
// spec.md §4.H and §6 ("chunked values are stored as N+1 records").
// schemaID is known ahead of time from the metadata retriever/schema
// registry and is only used for the non-chunked path; chunked values
// carry their own schema id in the manifest.
func Assemble[C any, V any](ctx context.Context, engine storageengine.Engine, partition int32, keyBytes []byte, chunked bool, schemaID int32, adapter Adapter[C, V]) (V, error) {
	var zero V

	raw, err := engine.Get(ctx, partition, keyBytes)
	if err != nil {
		return zero, err
	}
	if raw == nil {
		return zero, errorsx.StorageMissing(fmt.Sprintf("key not found for partition %d", partition))
	}

	if !chunked {
		return adapter.DecodeNonChunked(schemaID, raw)
	}

	var manifest readmodel.ChunkedValueManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return zero, fmt.Errorf("failed to decode chunked value manifest: %w", err)
	}

	container := adapter.NewContainer(manifest)
	for i, chunkKey := range manifest.ChunkKeys {
		chunkBytes, err := engine.Get(ctx, partition, chunkKey)
		if err != nil {
			return zero, err
		}
		if chunkBytes == nil {
			return zero, errorsx.StorageMissing(fmt.Sprintf("missing chunk %d of %d", i, len(manifest.ChunkKeys)))
		}
		if err := adapter.AddChunkIntoContainer(container, i, chunkBytes); err != nil {
			return zero, err
		}
	}

	return adapter.ConstructValue(manifest.SchemaID, container)
}
