// Package controller wires the admin-side components (spec.md §4.A-§4.F)
// into the single long-lived outer loop spec.md §5 describes: leader
// check, subscribe, poll, dispatch, execute cycle, persist, sleep.
//
// The orchestrator creates the pending-queues map, dispatcher and
// execution pool once and keeps them for its whole lifetime; the queues
// are emptied as stores drain and cleared wholesale only on leadership
// loss.
package controller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jamestiotio/corestore/internal/adminlog"
	"github.com/jamestiotio/corestore/internal/dispatch"
	"github.com/jamestiotio/corestore/internal/div"
	"github.com/jamestiotio/corestore/internal/execpool"
	"github.com/jamestiotio/corestore/internal/leadership"
	"github.com/jamestiotio/corestore/internal/metricsx"
	"github.com/jamestiotio/corestore/internal/progress"
)

// Config bundles the orchestrator's tunables. Names match spec.md's own
// vocabulary so the wiring in cmd/controller reads directly off the spec.
type Config struct {
	Cluster                   string
	Topic                     string
	Partition                 int32
	ReadCycleDelay            time.Duration // spec.md §5: "sleeps READ_CYCLE_DELAY (~1s) between iterations"
	ProcessingCycleTimeout    time.Duration
	PollTimeout               time.Duration
	MaxExecutionWorkers       int
	IsTopLevelController      bool
	AdminTopicReplicationFactor int32
}

// Orchestrator is the per-cluster admin consumer task.
type Orchestrator struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metricsx.AdminMetrics

	gate      *leadership.Gate
	cursor    *adminlog.Cursor
	validator *div.Validator
	tracker   *progress.Tracker
	pool      *execpool.Pool
	queues    *dispatch.PendingQueues
	dispatcher *dispatch.Dispatcher
}

func New(
	cfg Config,
	logger *zap.Logger,
	metrics *metricsx.AdminMetrics,
	elector leadership.Elector,
	cursor *adminlog.Cursor,
	tracker *progress.Tracker,
	handler execpool.Handler,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	queues := dispatch.NewPendingQueues()
	validator := div.New()

	o := &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		cursor:     cursor,
		validator:  validator,
		tracker:    tracker,
		queues:     queues,
		dispatcher: dispatch.New(queues, validator, cfg.Topic, cfg.Partition, logger),
		pool:       execpool.New(handler, queues, cfg.MaxExecutionWorkers, logger),
	}
	o.gate = leadership.New(elector, cfg.Cluster, cursor, cfg.IsTopLevelController, cfg.AdminTopicReplicationFactor, logger, o)
	return o
}

// ResetVolatile implements leadership.VolatileResetter.
func (o *Orchestrator) ResetVolatile() {
	o.validator.Reset()
	o.tracker.ResetVolatile()
	o.queues.Reset()
	o.cursor.DropUndelivered()
}

// Run drives the outer loop until ctx is cancelled, sleeping
// ReadCycleDelay between iterations (spec.md §5).
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.tracker.LoadFromDurableStore(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(o.cfg.ReadCycleDelay)
	defer ticker.Stop()

	for {
		if err := o.tick(ctx); err != nil {
			o.logger.Warn("admin consumption tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) error {
	isLeader, err := o.gate.Tick(ctx, o.tracker.LastPersistedOffset())
	if err != nil {
		return err
	}
	if !isLeader {
		return nil
	}

	if err := o.pollAndDispatch(ctx); err != nil {
		// spec.md §4.A: on exception downstream, unsubscribe and
		// resubscribe from lastPersistedOffset before the next poll.
		// Records already dispatched earlier in this batch still go
		// through execution below: one blocked store must not starve
		// the others (spec.md §4.D).
		o.logger.Warn("dispatch failed, resubscribing from last persisted offset", zap.Error(err))
		if unsubErr := o.cursor.Unsubscribe(ctx); unsubErr != nil {
			o.logger.Warn("unsubscribe after dispatch failure failed", zap.Error(unsubErr))
		}
		if subErr := o.cursor.Subscribe(ctx, o.tracker.LastPersistedOffset()); subErr != nil {
			o.logger.Warn("resubscribe after dispatch failure failed", zap.Error(subErr))
		}
	}

	result := o.pool.ExecuteCycle(ctx, o.cfg.ProcessingCycleTimeout, o.tracker, o.startExecIDs())
	o.reconcile(ctx, result)
	o.recordMetrics(result)
	return nil
}

func (o *Orchestrator) pollAndDispatch(ctx context.Context) error {
	records, err := o.cursor.Poll(ctx, o.cfg.PollTimeout)
	if err != nil {
		return err
	}

	delivered := 0
	for _, rec := range records {
		res, err := o.dispatcher.Dispatch(rec, o.cfg.Topic, o.cfg.Partition, o.tracker.LastPersistedOffset(), o.tracker)
		if err != nil {
			if res == dispatch.GapDetected {
				o.tracker.SetFailingOffsetFromDIV(rec.Offset)
				if o.metrics != nil {
					o.metrics.DIVErrorReportCount.Inc()
				}
			} else {
				o.tracker.ReconcileProblematicOffset(rec.Offset)
			}
			o.cursor.MarkDelivered(delivered)
			return err
		}
		delivered++
	}
	o.cursor.MarkDelivered(delivered)
	return nil
}

// SkipMessageWithOffset is the operator skip control (spec.md §4.E): it
// drops the record at offset without dispatching it, once offset matches
// the current failingOffset.
func (o *Orchestrator) SkipMessageWithOffset(offset int64) error {
	return o.tracker.SkipMessageWithOffset(offset)
}

// SkipMessageDIVWithOffset is the operator DIV-skip control (spec.md
// §4.B, §4.E): it validates offset against the current failingOffset and,
// on success, arms the DIV validator's single-shot skip so the gapped
// record still dispatches but bypasses the gap/duplicate check, resetting
// DIV's lastDelegatedExecutionId to that record's execution id.
func (o *Orchestrator) SkipMessageDIVWithOffset(offset int64) error {
	if err := o.tracker.SkipMessageDIVWithOffset(offset); err != nil {
		return err
	}
	o.validator.SetSkipDIV(offset)
	return nil
}

func (o *Orchestrator) startExecIDs() map[string]int64 {
	ids := make(map[string]int64)
	for _, store := range o.queues.StoresWithWork() {
		if id, ok := o.tracker.ExecutionIDForStore(store); ok {
			ids[store] = id
		}
	}
	return ids
}

func (o *Orchestrator) reconcile(ctx context.Context, result *execpool.CycleResult) {
	for store, execID := range result.SucceededExecID {
		if result.Outcomes[store] == execpool.StoreFailed {
			continue
		}
		o.tracker.RecordStoreSuccess(store, execID)
	}

	anyProblematic := false
	minBlocking := int64(-1)
	for store, outcome := range result.Outcomes {
		if outcome != execpool.StoreFailed && outcome != execpool.StoreTimedOutNoProgress {
			continue
		}
		anyProblematic = true
		offset := result.BlockingOffset[store]
		if minBlocking == -1 || offset < minBlocking {
			minBlocking = offset
		}
	}

	if !anyProblematic {
		newLastOffset := o.dispatcher.LastSeenOffset()
		if err := o.tracker.CommitCycle(ctx, result.LargestSucceededAll, newLastOffset); err != nil {
			o.logger.Warn("failed to persist admin progress", zap.Error(err))
		}
		return
	}
	o.tracker.ReconcileProblematicOffset(minBlocking)
}

func (o *Orchestrator) recordMetrics(result *execpool.CycleResult) {
	if o.metrics == nil {
		return
	}
	if offset, ok := o.tracker.FailingOffset(); ok {
		o.metrics.FailingOffset.Set(float64(offset))
	} else {
		o.metrics.FailingOffset.Set(-1)
	}

	pending := 0
	storesWithPending := 0
	for _, store := range o.queues.StoresWithWork() {
		n := o.queues.Len(store)
		pending += n
		if n > 0 {
			storesWithPending++
		}
	}
	o.metrics.PendingMessagesCount.Set(float64(pending))
	o.metrics.StoresWithPendingCount.Set(float64(storesWithPending))
}
