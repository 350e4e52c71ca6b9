package dispatch

import (
	"go.uber.org/zap"

	"github.com/jamestiotio/corestore/internal/adminmodel"
	"github.com/jamestiotio/corestore/internal/div"
	"github.com/jamestiotio/corestore/internal/errorsx"
)

// Dispatcher implements spec.md §4.C: it consumes one LogRecord at a time,
// in offset order, and either drops it, raises a fatal error, or appends
// it to the target store's pending queue.
type Dispatcher struct {
	queues    *PendingQueues
	validator *div.Validator
	logger    *zap.Logger

	topic     string
	partition int32

	lastSeenOffset int64
}

// SkipOffset abstracts the single-shot offsetToSkip lookup the dispatcher
// needs at step 1; the progress tracker owns the actual state.
type SkipOffset interface {
	OffsetToSkip() (int64, bool)
	ConsumeOffsetToSkip()
}

func New(queues *PendingQueues, validator *div.Validator, topic string, partition int32, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queues: queues, validator: validator, topic: topic, partition: partition, logger: logger}
}

// Result reports what happened to one record, so the cursor/orchestrator
// can decide whether to keep dispatching this cycle.
type Result int

const (
	Dispatched Result = iota
	Dropped
	GapDetected
)

// Dispatch runs the full spec.md §4.C pipeline for one record. recordTopic
// and recordPartition identify the topic/partition the record actually
// arrived on, so a transport-level mismatch can be detected (step 2).
// lastPersistedOffset is read fresh from the caller on every call since
// it can change between cycles.
func (d *Dispatcher) Dispatch(
	rec adminmodel.LogRecord,
	recordTopic string,
	recordPartition int32,
	lastPersistedOffset int64,
	skip SkipOffset,
) (Result, error) {
	// Step 1: single-shot offsetToSkip.
	if offset, armed := skip.OffsetToSkip(); armed && offset == rec.Offset {
		skip.ConsumeOffsetToSkip()
		d.advanceLastSeen(rec.Offset)
		return Dropped, nil
	}

	// Step 2: topic/partition match is fatal if violated; offset already
	// processed is a silent drop and per the Open Question in spec.md §9,
	// this guard must never touch lastDelegatedExecutionId.
	if recordTopic != d.topic || recordPartition != d.partition {
		return Dropped, errorsx.TopicMismatch(recordTopic)
	}
	if rec.Offset <= lastPersistedOffset {
		return Dropped, nil
	}

	// Step 3: transport-level control message.
	if rec.Key.IsControlMessage {
		d.advanceLastSeen(rec.Offset)
		return Dropped, nil
	}

	// Step 4: envelope message type must be PUT.
	if rec.Envelope.MessageType != adminmodel.MessageTypePut {
		return Dropped, errorsx.New(errorsx.CodeDeserialization, "admin envelope is not a PUT message", nil).
			WithDetail("offset", rec.Offset)
	}

	// Step 5: deserialize.
	op, err := adminmodel.DeserializeOperation(rec.Envelope.SchemaID, rec.Envelope.Payload)
	if err != nil {
		return Dropped, errorsx.Deserialization(rec.Offset, err)
	}

	// Step 6: DIV.
	switch d.validator.Check(op.ExecutionID(), rec.Offset) {
	case div.Duplicate:
		d.logger.Info("dropping duplicate admin record", zap.Int64("offset", rec.Offset), zap.Int64("executionId", op.ExecutionID()))
		d.advanceLastSeen(rec.Offset)
		return Dropped, nil
	case div.Gap:
		last, _ := d.validator.LastDelegated()
		return GapDetected, errorsx.DIVGap(rec.Offset, last+1, op.ExecutionID())
	}

	// Step 7: store name extraction (compile-time dispatch per variant,
	// per spec.md §9's rewrite guidance).
	storeName, err := op.StoreName()
	if err != nil {
		return Dropped, errorsx.New(errorsx.CodeDeserialization, "admin operation has no derivable storeName", err).
			WithDetail("offset", rec.Offset)
	}

	// Step 8: enqueue.
	d.queues.Append(storeName, PendingEntry{Offset: rec.Offset, Operation: op})
	d.advanceLastSeen(rec.Offset)
	return Dispatched, nil
}

func (d *Dispatcher) advanceLastSeen(offset int64) {
	if offset > d.lastSeenOffset {
		d.lastSeenOffset = offset
	}
}

// LastSeenOffset is the offset that will be persisted iff the cycle
// succeeds (spec.md §4.C: "Advance the in-memory last seen offset after
// each dispatched record").
func (d *Dispatcher) LastSeenOffset() int64 {
	return d.lastSeenOffset
}

// SetLastSeenOffset primes the dispatcher's watermark, used when resuming
// a cycle whose records were already partially dispatched before a crash.
func (d *Dispatcher) SetLastSeenOffset(offset int64) {
	if offset > d.lastSeenOffset {
		d.lastSeenOffset = offset
	}
}
