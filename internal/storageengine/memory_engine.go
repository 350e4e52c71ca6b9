package storageengine

import (
	"context"
	"sync"
)

// MemoryEngine is an in-memory Engine used by tests for the chunk
// assembler and compute evaluator, mirroring PebbleEngine's partition
// key-folding scheme.
type MemoryEngine struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{data: make(map[string][]byte)}
}

func (e *MemoryEngine) Get(_ context.Context, partition int32, keyBytes []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[string(partitionKey(partition, keyBytes))]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (e *MemoryEngine) Put(partition int32, keyBytes, value []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[string(partitionKey(partition, keyBytes))] = value
}
