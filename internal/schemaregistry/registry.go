// Package schemaregistry implements the schema registry external
// collaborator (spec.md §6): getValueSchema(store, id),
// getLatestValueSchema(store). Schemas themselves are opaque strings —
// the schema format/serialization mechanism is an out-of-scope external
// collaborator per spec.md §6; JSON stands in as the wire codec
// (SPEC_FULL.md §4 Open Question resolution).
package schemaregistry

import (
	"fmt"
	"sync"
)

// Schema is an opaque schema document plus the fields the compute
// evaluator needs to reason about field presence and nullability.
type Schema struct {
	ID       int32
	Raw      string
	Fields   map[string]FieldInfo
}

type FieldInfo struct {
	Nullable bool
}

// Registry is the read-only contract the compute evaluator depends on.
type Registry interface {
	GetValueSchema(store string, id int32) (Schema, error)
	GetLatestValueSchema(store string) (Schema, error)
}

// InMemoryRegistry is the default implementation, populated by the admin
// handler as AddSchema/StoreCreation operations are applied.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	byStore map[string]map[int32]Schema
	latest  map[string]int32
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		byStore: make(map[string]map[int32]Schema),
		latest:  make(map[string]int32),
	}
}

func (r *InMemoryRegistry) Register(store string, schema Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byStore[store] == nil {
		r.byStore[store] = make(map[int32]Schema)
	}
	r.byStore[store][schema.ID] = schema
	if schema.ID > r.latest[store] {
		r.latest[store] = schema.ID
	}
}

func (r *InMemoryRegistry) GetValueSchema(store string, id int32) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas, ok := r.byStore[store]
	if !ok {
		return Schema{}, fmt.Errorf("no schemas registered for store %q", store)
	}
	schema, ok := schemas[id]
	if !ok {
		return Schema{}, fmt.Errorf("store %q has no schema with id %d", store, id)
	}
	return schema, nil
}

func (r *InMemoryRegistry) GetLatestValueSchema(store string) (Schema, error) {
	r.mu.RLock()
	latestID, ok := r.latest[store]
	r.mu.RUnlock()
	if !ok {
		return Schema{}, fmt.Errorf("no schemas registered for store %q", store)
	}
	return r.GetValueSchema(store, latestID)
}
