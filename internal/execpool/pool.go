// Package execpool implements the admin execution pool, spec.md §4.D: it
// drains per-store pending queues concurrently through a bounded worker
// pool, with a cycle-wide timeout and cooperative cancellation.
package execpool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jamestiotio/corestore/internal/dispatch"
)

// Handler is the external admin handler collaborator (spec.md §6):
// apply(storeName, AdminOperation) -> void | error. Deterministic and
// idempotent relative to execution id.
type Handler interface {
	Apply(ctx context.Context, storeName string, entry dispatch.PendingEntry) error
}

// Pool bounds worker concurrency independently of how many stores have
// pending work in a given cycle — matching spec.md §5's "Workers are
// daemon-scoped and bounded [1..max]."
type Pool struct {
	handler Handler
	queues  *dispatch.PendingQueues
	logger  *zap.Logger
	sem     *semaphore.Weighted
}

func New(handler Handler, queues *dispatch.PendingQueues, maxWorkers int, logger *zap.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{handler: handler, queues: queues, logger: logger, sem: semaphore.NewWeighted(int64(maxWorkers))}
}

// StoreOutcome is one store's result at the end of a cycle.
type StoreOutcome int

const (
	StoreSucceeded StoreOutcome = iota
	StoreFailed
	StoreTimedOutNoProgress
	StoreTimedOutMadeProgress
)

// CycleResult summarizes one executeCycle call.
type CycleResult struct {
	Outcomes            map[string]StoreOutcome
	BlockingOffset      map[string]int64 // set for StoreFailed / StoreTimedOutNoProgress
	SucceededExecID     map[string]int64 // highest execution id the store reached this cycle
	LargestSucceededAll int64
}

// ExecuteCycle drains every store with pending work through the bounded
// pool, all submitted together and awaited with a single cycle-wide
// deadline (spec.md §4.D / §5). startExecIDs is each store's
// lastSucceededExecutionIdByStore value as of the start of the cycle, used
// to decide whether a timed-out store "made progress" per spec.md §4.D.
func (p *Pool) ExecuteCycle(ctx context.Context, timeout time.Duration, skip SkipOffset, startExecIDs map[string]int64) *CycleResult {
	cycleID := uuid.NewString()
	stores := p.queues.StoresWithWork()

	result := &CycleResult{
		Outcomes:        make(map[string]StoreOutcome, len(stores)),
		BlockingOffset:  make(map[string]int64),
		SucceededExecID: make(map[string]int64),
	}
	if len(stores) == 0 {
		return result
	}

	cycleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		store   string
		o       StoreOutcome
		offset  int64
		execID  int64
	}
	outcomes := make(chan outcome, len(stores))

	var g errgroup.Group
	for _, store := range stores {
		store := store
		g.Go(func() error {
			if err := p.sem.Acquire(cycleCtx, 1); err != nil {
				outcomes <- outcome{store: store, o: StoreTimedOutNoProgress}
				return nil
			}
			defer p.sem.Release(1)
			o, offset, execID := p.drainStore(cycleCtx, cycleID, store, skip, startExecIDs[store])
			outcomes <- outcome{store: store, o: o, offset: offset, execID: execID}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	for oc := range outcomes {
		result.Outcomes[oc.store] = oc.o
		if oc.execID > 0 {
			result.SucceededExecID[oc.store] = oc.execID
			if oc.execID > result.LargestSucceededAll {
				result.LargestSucceededAll = oc.execID
			}
		}
		if oc.o == StoreFailed || oc.o == StoreTimedOutNoProgress {
			result.BlockingOffset[oc.store] = oc.offset
		}
	}
	return result
}

// SkipOffset is the same single-shot-skip contract the dispatcher uses;
// the execution pool additionally consumes it when the head offset of a
// store's queue matches (spec.md §4.D step 1).
type SkipOffset interface {
	OffsetToSkip() (int64, bool)
	ConsumeOffsetToSkip()
}

// drainStore sequentially applies every pending operation for one store,
// preserving per-store FIFO order inside a single goroutine (spec.md §5:
// "within a store, strict FIFO; across stores, unordered").
func (p *Pool) drainStore(cycleCtx context.Context, cycleID, store string, skip SkipOffset, startExecID int64) (StoreOutcome, int64, int64) {
	lastSucceeded := startExecID

	for {
		if headOffset, ok := p.queues.PeekHeadOffset(store); ok {
			if offset, armed := skip.OffsetToSkip(); armed && offset == headOffset {
				skip.ConsumeOffsetToSkip()
				p.queues.DequeueHead(store)
				continue
			}
		}

		queue := p.queues.Queue(store)
		if len(queue) == 0 {
			return StoreSucceeded, 0, lastSucceeded
		}
		entry := queue[0]

		select {
		case <-cycleCtx.Done():
			if lastSucceeded > startExecID {
				return StoreTimedOutMadeProgress, 0, lastSucceeded
			}
			return StoreTimedOutNoProgress, entry.Offset, lastSucceeded
		default:
		}

		if err := p.handler.Apply(cycleCtx, store, entry); err != nil {
			if cycleCtx.Err() != nil {
				if lastSucceeded > startExecID {
					return StoreTimedOutMadeProgress, 0, lastSucceeded
				}
				return StoreTimedOutNoProgress, entry.Offset, lastSucceeded
			}
			p.logger.Warn("admin handler failed",
				zap.String("cycle", cycleID), zap.String("store", store),
				zap.Int64("offset", entry.Offset), zap.Error(err))
			return StoreFailed, entry.Offset, lastSucceeded
		}

		p.queues.RemoveDrained(store, 1)
		lastSucceeded = entry.Operation.ExecutionID()
	}
}
