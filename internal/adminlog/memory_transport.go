package adminlog

import (
	"context"
	"sync"
	"time"

	"github.com/jamestiotio/corestore/internal/adminmodel"
)

// MemoryTransport is an in-memory Transport double used by tests and by
// standalone local runs of cmd/controller. It is not meant to model the
// real admin log's durability or multi-consumer semantics, only its
// offset-seek poll contract.
type MemoryTransport struct {
	mu         sync.Mutex
	records    []adminmodel.LogRecord
	topics     map[string]bool
	cursor     int64
	subscribed bool
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{topics: make(map[string]bool)}
}

// Append adds a record to the log, assigning it the next offset.
func (m *MemoryTransport) Append(rec adminmodel.LogRecord) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Offset = int64(len(m.records))
	m.records = append(m.records, rec)
	return rec.Offset
}

func (m *MemoryTransport) Subscribe(_ context.Context, topic string, _ int32, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[topic] = true
	m.cursor = offset
	m.subscribed = true
	return nil
}

func (m *MemoryTransport) Unsubscribe(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = false
	return nil
}

func (m *MemoryTransport) Poll(_ context.Context, _ time.Duration) ([]adminmodel.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.subscribed {
		return nil, nil
	}
	var out []adminmodel.LogRecord
	for _, r := range m.records {
		if r.Offset >= m.cursor {
			out = append(out, r)
		}
	}
	if len(out) > 0 {
		m.cursor = out[len(out)-1].Offset + 1
	}
	return out, nil
}

func (m *MemoryTransport) ContainsTopic(_ context.Context, topic string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topics[topic], nil
}

func (m *MemoryTransport) CreateTopic(_ context.Context, topic string, _ int32, _ int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[topic] = true
	return nil
}

func (m *MemoryTransport) UpdateRetentionToInfinite(_ context.Context, _ string) error {
	return nil
}
