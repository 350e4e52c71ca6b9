package progress

import (
	"context"
	"sync"
)

// MemoryDurableStore is an in-memory DurableStore used by tests.
type MemoryDurableStore struct {
	mu       sync.Mutex
	execID   int64
	offset   int64
	byStore  map[string]int64
	Persists int
}

func NewMemoryDurableStore() *MemoryDurableStore {
	return &MemoryDurableStore{byStore: make(map[string]int64)}
}

func (m *MemoryDurableStore) LoadProgress(_ context.Context, _ string) (int64, int64, map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]int64, len(m.byStore))
	for k, v := range m.byStore {
		cp[k] = v
	}
	return m.execID, m.offset, cp, nil
}

func (m *MemoryDurableStore) PersistProgress(_ context.Context, _ string, execID int64, offset int64, byStore map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execID = execID
	m.offset = offset
	m.byStore = byStore
	m.Persists++
	return nil
}
