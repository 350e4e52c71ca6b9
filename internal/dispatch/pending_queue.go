// Package dispatch implements the per-store dispatcher, spec.md §4.C, and
// the PerStorePendingQueue data structure of spec.md §3.
package dispatch

import (
	"sync"

	"github.com/jamestiotio/corestore/internal/adminmodel"
)

// PendingEntry is one (offset, AdminOperation) pair in a store's queue.
type PendingEntry struct {
	Offset    int64
	Operation adminmodel.AdminOperation
}

// PendingQueues holds one FIFO queue per store name. Mutated only by the
// dispatcher's single-threaded dispatch step; drained by the execution
// pool's per-store worker tasks, each of which owns its own store's
// queue reference for the duration of a cycle (spec.md §5: "workers do
// not mutate the map; they pop from their own queue reference").
type PendingQueues struct {
	mu     sync.Mutex
	queues map[string][]PendingEntry
}

func NewPendingQueues() *PendingQueues {
	return &PendingQueues{queues: make(map[string][]PendingEntry)}
}

// Append adds an entry to the named store's queue, creating it if absent.
func (p *PendingQueues) Append(store string, entry PendingEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues[store] = append(p.queues[store], entry)
}

// StoresWithWork returns the names of every store with a non-empty queue.
func (p *PendingQueues) StoresWithWork() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.queues))
	for store, q := range p.queues {
		if len(q) > 0 {
			names = append(names, store)
		}
	}
	return names
}

// Queue returns a snapshot copy of one store's pending queue, for a
// worker task to drain independently of further dispatcher mutation.
func (p *PendingQueues) Queue(store string) []PendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queues[store]
	out := make([]PendingEntry, len(q))
	copy(out, q)
	return out
}

// RemoveDrained drops the first n entries of a store's queue, called by
// the execution pool once it has successfully applied them.
func (p *PendingQueues) RemoveDrained(store string, n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queues[store]
	if n >= len(q) {
		p.queues[store] = nil
		return
	}
	p.queues[store] = q[n:]
}

// PeekHeadOffset returns the offset of the head entry of a store's queue,
// used for single-shot skip checks (spec.md §4.C step 1 and §4.D's "head
// offset matches offsetToSkip").
func (p *PendingQueues) PeekHeadOffset(store string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queues[store]
	if len(q) == 0 {
		return 0, false
	}
	return q[0].Offset, true
}

// DequeueHead removes just the head entry, used for the single-shot
// offsetToSkip consumption inside the execution pool.
func (p *PendingQueues) DequeueHead(store string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q := p.queues[store]
	if len(q) == 0 {
		return
	}
	p.queues[store] = q[1:]
}

// Len reports the current queue length for a store.
func (p *PendingQueues) Len(store string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queues[store])
}

// Reset discards every pending queue, used on leadership loss
// (spec.md §4.F).
func (p *PendingQueues) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues = make(map[string][]PendingEntry)
}
