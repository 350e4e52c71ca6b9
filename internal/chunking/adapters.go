package chunking

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jamestiotio/corestore/internal/objectcache"
	"github.com/jamestiotio/corestore/internal/readmodel"
)

// ByteRecordAdapter is used by the point-get path: the user-visible
// "value" is the raw decompressed bytes, the container is a plain byte
// buffer assembled in chunk order.
type ByteRecordAdapter struct{}

func (ByteRecordAdapter) NewContainer(manifest readmodel.ChunkedValueManifest) [][]byte {
	return make([][]byte, len(manifest.ChunkKeys))
}

func (ByteRecordAdapter) AddChunkIntoContainer(container [][]byte, chunkIndex int, chunk []byte) error {
	if chunkIndex < 0 || chunkIndex >= len(container) {
		return fmt.Errorf("chunk index %d out of range for %d chunks", chunkIndex, len(container))
	}
	container[chunkIndex] = chunk
	return nil
}

func (ByteRecordAdapter) ConstructValue(_ int32, container [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	for _, chunk := range container {
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}

func (ByteRecordAdapter) DecodeNonChunked(_ int32, raw []byte) ([]byte, error) {
	return raw, nil
}

// TypedRecord is the batch-get path's decoded shape: a JSON document
// keyed by field name (JSON stands in for the original's GenericRecord,
// see SPEC_FULL.md §4).
type TypedRecord map[string]any

// TypedRecordAdapter is used by the batch-get path.
type TypedRecordAdapter struct{}

func (TypedRecordAdapter) NewContainer(manifest readmodel.ChunkedValueManifest) [][]byte {
	return make([][]byte, len(manifest.ChunkKeys))
}

func (TypedRecordAdapter) AddChunkIntoContainer(container [][]byte, chunkIndex int, chunk []byte) error {
	if chunkIndex < 0 || chunkIndex >= len(container) {
		return fmt.Errorf("chunk index %d out of range for %d chunks", chunkIndex, len(container))
	}
	container[chunkIndex] = chunk
	return nil
}

func (TypedRecordAdapter) ConstructValue(_ int32, container [][]byte) (TypedRecord, error) {
	var buf bytes.Buffer
	for _, chunk := range container {
		buf.Write(chunk)
	}
	var rec TypedRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode typed record: %w", err)
	}
	return rec, nil
}

func (TypedRecordAdapter) DecodeNonChunked(_ int32, raw []byte) (TypedRecord, error) {
	var rec TypedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode typed record: %w", err)
	}
	return rec, nil
}

// DecodedRecordAdapter is used by the compute path. It takes a reusable
// decoded-record prototype and a reusable scratch buffer (spec.md §4.H:
// "additionally takes a reusable GenericRecord and a reusable
// BinaryDecoder to avoid per-call allocation") so the assembler writes
// into pre-allocated worker scratch instead of allocating per key.
type DecodedRecordAdapter struct {
	Prototype *objectcache.DecodedRecord
	Scratch   []byte
}

func (a DecodedRecordAdapter) NewContainer(manifest readmodel.ChunkedValueManifest) *bytes.Buffer {
	capacity := a.Scratch
	if int64(cap(capacity)) < manifest.TotalSize {
		capacity = make([]byte, 0, manifest.TotalSize)
	}
	return bytes.NewBuffer(capacity[:0])
}

func (a DecodedRecordAdapter) AddChunkIntoContainer(container *bytes.Buffer, _ int, chunk []byte) error {
	container.Write(chunk)
	return nil
}

func (a DecodedRecordAdapter) ConstructValue(schemaID int32, container *bytes.Buffer) (*objectcache.DecodedRecord, error) {
	a.Prototype.Clear()
	a.Prototype.SchemaID = schemaID
	if container.Len() > 0 {
		if err := json.Unmarshal(container.Bytes(), &a.Prototype.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode record into reusable prototype: %w", err)
		}
	}
	return a.Prototype, nil
}

func (a DecodedRecordAdapter) DecodeNonChunked(schemaID int32, raw []byte) (*objectcache.DecodedRecord, error) {
	a.Prototype.Clear()
	a.Prototype.SchemaID = schemaID
	if err := json.Unmarshal(raw, &a.Prototype.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode record into reusable prototype: %w", err)
	}
	return a.Prototype, nil
}
