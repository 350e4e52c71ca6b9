// Package storageengine implements the storage engine external
// collaborator (spec.md §6): get(partition, keyBytes) -> bytes | null.
// Chunked values are N+1 records (one manifest, N chunks); this package
// only knows about raw key/value bytes, the chunk assembler (internal/
// chunking) is what interprets the manifest shape.
package storageengine

import "context"

// Engine is the minimal read contract the read dispatcher needs from
// local storage. A nil value with a nil error means the key was absent.
type Engine interface {
	Get(ctx context.Context, partition int32, keyBytes []byte) ([]byte, error)
}
