// Package objectcache implements the per-worker reusable-object cache
// spec.md §4.K describes: a ~1 MiB scratch buffer plus two bounded LRU
// caches of prototype decoded records, one for values and one for
// results. Reuse is strictly per-worker; there is no cross-goroutine
// sharing. Grounded on the teacher's CacheService (internal/service/
// cache_service.go) for the "bounded cache attached to a long-lived
// component" shape, but backed by the real hashicorp/golang-lru instead
// of a hand-rolled eviction policy.
package objectcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultScratchSize  = 1 << 20 // 1 MiB
	prototypeCacheSize  = 100
)

// DecodedRecord is a placeholder for the decoded-record prototypes the
// compute evaluator clears and reuses (spec.md §4.H, §4.I, §4.K). Records
// are decoded in internal/chunking and results encoded in
// internal/compute; this package only owns the reuse lifecycle.
type DecodedRecord struct {
	SchemaID int32
	Fields   map[string]any
}

// Clear resets a prototype's fields before reuse, per spec.md §4.K's
// "before each use, the result record's fields are cleared" rule.
func (d *DecodedRecord) Clear() {
	for k := range d.Fields {
		delete(d.Fields, k)
	}
}

// WorkerScratch is the thread-local state attached to one worker
// goroutine's lifetime (spec.md §9: "thread-local scratch is a
// per-worker construct ... not ... any ambient thread-of-execution
// abstraction").
type WorkerScratch struct {
	Buffer        []byte
	valueRecords  *lru.Cache[int32, *DecodedRecord]
	resultRecords *lru.Cache[string, *DecodedRecord]
}

func NewWorkerScratch() *WorkerScratch {
	valueRecords, err := lru.New[int32, *DecodedRecord](prototypeCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size, which is a programming error
	}
	resultRecords, err := lru.New[string, *DecodedRecord](prototypeCacheSize)
	if err != nil {
		panic(err)
	}
	return &WorkerScratch{
		Buffer:        make([]byte, defaultScratchSize),
		valueRecords:  valueRecords,
		resultRecords: resultRecords,
	}
}

// ValueRecord returns a cleared prototype decoded record for the given
// value schema id, reusing a cached instance when present.
func (w *WorkerScratch) ValueRecord(schemaID int32) *DecodedRecord {
	if rec, ok := w.valueRecords.Get(schemaID); ok {
		rec.Clear()
		return rec
	}
	rec := &DecodedRecord{SchemaID: schemaID, Fields: make(map[string]any)}
	w.valueRecords.Add(schemaID, rec)
	return rec
}

// ResultRecord returns a cleared prototype result record for the given
// interned result-schema string, reusing a cached instance when present.
func (w *WorkerScratch) ResultRecord(resultSchemaStr string) *DecodedRecord {
	if rec, ok := w.resultRecords.Get(resultSchemaStr); ok {
		rec.Clear()
		return rec
	}
	rec := &DecodedRecord{Fields: make(map[string]any)}
	w.resultRecords.Add(resultSchemaStr, rec)
	return rec
}
