// Package progress implements the progress tracker and skip controls,
// spec.md §4.E: the cluster-wide lastSucceededExecutionId, the per-store
// execution-id map, the persisted log offset, and the two single-shot
// operator skip overrides.
package progress

import (
	"context"
	"sync"

	"github.com/jamestiotio/corestore/internal/errorsx"
)

// DurableStore is the coordination store's view of progress state
// (spec.md §6's three keys). The concrete implementation lives in
// internal/coordstore.
type DurableStore interface {
	LoadProgress(ctx context.Context, cluster string) (lastSucceededExecutionID int64, lastPersistedOffset int64, byStore map[string]int64, err error)
	PersistProgress(ctx context.Context, cluster string, lastSucceededExecutionID int64, lastPersistedOffset int64, byStore map[string]int64) error
}

// Tracker holds the progress state for one cluster's admin subscription.
// The durable fields are the sole source of truth (spec.md §3's
// invariant); volatile fields reset on leadership loss (spec.md §4.F).
type Tracker struct {
	mu sync.Mutex

	cluster string
	durable DurableStore

	lastSucceededExecutionID int64
	lastPersistedOffset      int64
	byStore                  map[string]int64

	failingOffset    int64
	hasFailingOffset bool

	offsetToSkip    int64
	hasOffsetToSkip bool
}

const noFailingOffset = -1

func New(cluster string, durable DurableStore) *Tracker {
	return &Tracker{cluster: cluster, durable: durable, byStore: make(map[string]int64)}
}

// LoadFromDurableStore initializes progress from the coordination store,
// the sole source of truth at subscribe time (spec.md §3 Lifecycles).
func (t *Tracker) LoadFromDurableStore(ctx context.Context) error {
	lastExec, lastOffset, byStore, err := t.durable.LoadProgress(ctx, t.cluster)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSucceededExecutionID = lastExec
	t.lastPersistedOffset = lastOffset
	if byStore == nil {
		byStore = make(map[string]int64)
	}
	t.byStore = byStore
	return nil
}

// ResetVolatile clears everything except the durable fields, matching
// spec.md §4.F's "on loss of leadership or resubscription, all volatile
// state is reset; durable state is the sole source of truth."
func (t *Tracker) ResetVolatile() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasFailingOffset = false
	t.failingOffset = 0
	t.hasOffsetToSkip = false
	t.offsetToSkip = 0
}

func (t *Tracker) LastPersistedOffset() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPersistedOffset
}

func (t *Tracker) LastSucceededExecutionID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSucceededExecutionID
}

func (t *Tracker) ExecutionIDForStore(store string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byStore[store]
	return id, ok
}

func (t *Tracker) setExecutionIDForStore(store string, id int64) {
	t.byStore[store] = id
}

// FailingOffset returns the current failingOffset and whether it is set;
// exposed as an observable metric per spec.md §4.E.
func (t *Tracker) FailingOffset() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failingOffset, t.hasFailingOffset
}

// SetFailingOffsetFromDIV records a DIV-originated failingOffset,
// replacing any current value. ReconcileProblematicOffset later keeps
// whichever of it and a handler-blocked offset is smaller.
func (t *Tracker) SetFailingOffsetFromDIV(offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failingOffset = offset
	t.hasFailingOffset = true
}

// ReconcileProblematicOffset sets failingOffset to the minimum blocking
// offset across this cycle's problematic stores, unless a failingOffset
// (from DIV or an earlier cycle) is already set at or before that minimum.
func (t *Tracker) ReconcileProblematicOffset(minBlocking int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasFailingOffset && t.failingOffset <= minBlocking {
		return
	}
	t.failingOffset = minBlocking
	t.hasFailingOffset = true
}

// ClearFailingOffsetIfPersisted clears failingOffset once it is covered by
// the persisted offset, per spec.md §4.D's cycle-end rule.
func (t *Tracker) ClearFailingOffsetIfPersisted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasFailingOffset && t.failingOffset <= t.lastPersistedOffset {
		t.hasFailingOffset = false
	}
}

// SkipMessageWithOffset arms the single-shot offsetToSkip override. It
// only succeeds if offset exactly matches the current failingOffset
// (spec.md §4.E).
func (t *Tracker) SkipMessageWithOffset(offset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasFailingOffset || offset != t.failingOffset {
		return errorsx.SkipRejected(offset, t.failingOffset)
	}
	t.offsetToSkip = offset
	t.hasOffsetToSkip = true
	return nil
}

// SkipMessageDIVWithOffset validates the operator DIV-skip control
// (spec.md §4.B, §4.E): an offset is only eligible to bypass DIV's gap
// check if it exactly matches the current failingOffset, the same rule
// SkipMessageWithOffset applies. Unlike SkipMessageWithOffset, there is
// no tracker-owned field to arm here; the tracker only validates, and the
// caller is responsible for arming div.Validator's skip once this returns
// without error (see Orchestrator.SkipMessageDIVWithOffset).
func (t *Tracker) SkipMessageDIVWithOffset(offset int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasFailingOffset || offset != t.failingOffset {
		return errorsx.SkipRejected(offset, t.failingOffset)
	}
	return nil
}

// OffsetToSkip returns the current single-shot override and whether it is
// armed.
func (t *Tracker) OffsetToSkip() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offsetToSkip, t.hasOffsetToSkip
}

// ConsumeOffsetToSkip clears the single-shot override after one match,
// per spec.md §3's invariant.
func (t *Tracker) ConsumeOffsetToSkip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasOffsetToSkip = false
}

// RecordStoreSuccess updates the per-store execution-id map after a
// successful apply, called by the orchestrator at cycle end for stores
// that did not fail (spec.md §4.D).
func (t *Tracker) RecordStoreSuccess(store string, executionID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setExecutionIDForStore(store, executionID)
}

// CommitCycle performs the end-of-cycle reconciliation for a fully
// successful cycle (spec.md §4.D): raise lastSucceededExecutionId,
// clear failingOffset if covered, and persist (lastSucceededExecutionId,
// lastOffset) atomically — skipped entirely if the offset did not move.
func (t *Tracker) CommitCycle(ctx context.Context, largestSucceededThisCycle int64, newLastOffset int64) error {
	t.mu.Lock()
	if largestSucceededThisCycle > t.lastSucceededExecutionID {
		t.lastSucceededExecutionID = largestSucceededThisCycle
	}
	if t.hasFailingOffset && t.failingOffset <= newLastOffset {
		t.hasFailingOffset = false
	}
	offsetMoved := newLastOffset != t.lastPersistedOffset
	if offsetMoved {
		t.lastPersistedOffset = newLastOffset
	}
	snapshotExec := t.lastSucceededExecutionID
	snapshotOffset := t.lastPersistedOffset
	byStoreCopy := make(map[string]int64, len(t.byStore))
	for k, v := range t.byStore {
		byStoreCopy[k] = v
	}
	t.mu.Unlock()

	if !offsetMoved {
		return nil
	}
	return t.durable.PersistProgress(ctx, t.cluster, snapshotExec, snapshotOffset, byStoreCopy)
}
