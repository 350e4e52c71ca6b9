// Package metadata implements the metadata retriever external
// collaborator (spec.md §6): per-store-version chunking flag,
// compression strategy and dictionary, and committed offset lookup.
package metadata

import (
	"fmt"
	"sync"
)

// CompressionStrategy names how chunk/value bytes are compressed before
// storage. Only NoOp and a dictionary-based strategy are modeled; the
// actual codecs are out of scope (spec.md treats compression as an
// opaque-bytes concern, see SPEC_FULL.md §3).
type CompressionStrategy string

const (
	CompressionNone           CompressionStrategy = "NO_OP"
	CompressionZstdDictionary CompressionStrategy = "ZSTD_WITH_DICTIONARY"
)

// VersionMetadata is what the retriever knows about one store version.
type VersionMetadata struct {
	Chunked             bool
	Compression         CompressionStrategy
	CompressionDictionary []byte
	Offset              int64
}

// Retriever is the read-only contract the read dispatcher and compute
// evaluator depend on.
type Retriever interface {
	IsStoreVersionChunked(topic string) (bool, error)
	GetStoreVersionCompressionStrategy(topic string) (CompressionStrategy, error)
	GetStoreVersionCompressionDictionary(topic string) ([]byte, error)
	GetOffset(topic string, partition int32) (int64, error)
}

// InMemoryRetriever is the default implementation: metadata is populated
// through SetVersionMetadata and SetOffset; nothing in this module fills
// it from applied admin operations (spec.md places the concrete
// metadata-propagation mechanism out of scope).
type InMemoryRetriever struct {
	mu       sync.RWMutex
	versions map[string]VersionMetadata
	offsets  map[string]int64
}

func NewInMemoryRetriever() *InMemoryRetriever {
	return &InMemoryRetriever{
		versions: make(map[string]VersionMetadata),
		offsets:  make(map[string]int64),
	}
}

func (r *InMemoryRetriever) SetVersionMetadata(topic string, meta VersionMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[topic] = meta
}

func (r *InMemoryRetriever) SetOffset(topic string, partition int32, offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets[offsetKey(topic, partition)] = offset
}

func offsetKey(topic string, partition int32) string {
	return fmt.Sprintf("%s:%d", topic, partition)
}

func (r *InMemoryRetriever) lookup(topic string) (VersionMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.versions[topic]
	if !ok {
		return VersionMetadata{}, fmt.Errorf("no metadata known for store version topic %q", topic)
	}
	return meta, nil
}

func (r *InMemoryRetriever) IsStoreVersionChunked(topic string) (bool, error) {
	meta, err := r.lookup(topic)
	if err != nil {
		return false, err
	}
	return meta.Chunked, nil
}

func (r *InMemoryRetriever) GetStoreVersionCompressionStrategy(topic string) (CompressionStrategy, error) {
	meta, err := r.lookup(topic)
	if err != nil {
		return "", err
	}
	return meta.Compression, nil
}

func (r *InMemoryRetriever) GetStoreVersionCompressionDictionary(topic string) ([]byte, error) {
	meta, err := r.lookup(topic)
	if err != nil {
		return nil, err
	}
	return meta.CompressionDictionary, nil
}

func (r *InMemoryRetriever) GetOffset(topic string, partition int32) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offsets[offsetKey(topic, partition)], nil
}
