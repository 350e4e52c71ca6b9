// Package adminlog implements the log cursor: spec.md §4.A. It polls the
// admin log partition from a persisted offset and exposes an in-memory
// buffer of records that were polled but not yet dispatched.
package adminlog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jamestiotio/corestore/internal/adminmodel"
)

// Cursor owns one subscription against the admin log transport plus the
// undelivered buffer described in spec.md §4.A: "poll is skipped entirely
// while this buffer is non-empty, so that a mid-batch failure does not
// lose records."
type Cursor struct {
	transport Transport
	logger    *zap.Logger

	topic     string
	partition int32

	subscribed bool
	undelivered []adminmodel.LogRecord
}

func New(transport Transport, topic string, partition int32, logger *zap.Logger) *Cursor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cursor{transport: transport, topic: topic, partition: partition, logger: logger}
}

// Subscribe (re-)subscribes from the given offset. Per spec.md §4.A, a
// resubscription always happens at lastPersistedOffset after any
// downstream exception.
func (c *Cursor) Subscribe(ctx context.Context, offset int64) error {
	if err := c.transport.Subscribe(ctx, c.topic, c.partition, offset); err != nil {
		return err
	}
	c.subscribed = true
	c.logger.Debug("admin log cursor subscribed",
		zap.String("topic", c.topic), zap.Int32("partition", c.partition), zap.Int64("offset", offset))
	return nil
}

// Unsubscribe tears down the subscription. Safe to call when already
// unsubscribed.
func (c *Cursor) Unsubscribe(ctx context.Context) error {
	if !c.subscribed {
		return nil
	}
	err := c.transport.Unsubscribe(ctx)
	c.subscribed = false
	return err
}

// HasUndelivered reports whether records from a previous poll are still
// waiting to be dispatched.
func (c *Cursor) HasUndelivered() bool {
	return len(c.undelivered) > 0
}

// Poll returns the undelivered buffer if non-empty (without touching the
// transport), otherwise polls the transport and refills the buffer.
// Callers drain the returned slice via MarkDelivered as they dispatch
// each record, so a crash mid-batch does not lose anything already polled.
func (c *Cursor) Poll(ctx context.Context, timeout time.Duration) ([]adminmodel.LogRecord, error) {
	if c.HasUndelivered() {
		return c.undelivered, nil
	}
	records, err := c.transport.Poll(ctx, timeout)
	if err != nil {
		return nil, err
	}
	c.undelivered = records
	return records, nil
}

// MarkDelivered removes the leading n records from the undelivered buffer,
// called by the dispatcher as it successfully hands records off one at a
// time (spec.md §4.C works record-by-record).
func (c *Cursor) MarkDelivered(n int) {
	if n <= 0 {
		return
	}
	if n >= len(c.undelivered) {
		c.undelivered = nil
		return
	}
	c.undelivered = c.undelivered[n:]
}

// DropUndelivered discards the entire undelivered buffer, used when the
// orchestrator resets its volatile state on leadership loss.
func (c *Cursor) DropUndelivered() {
	c.undelivered = nil
}

// ContainsTopic, CreateTopic and EnsureInfiniteRetention proxy the
// transport's administrative operations, used by the leadership gate
// (spec.md §4.F) when it takes over leadership.
func (c *Cursor) ContainsTopic(ctx context.Context) (bool, error) {
	return c.transport.ContainsTopic(ctx, c.topic)
}

func (c *Cursor) CreateTopic(ctx context.Context, replicationFactor int32) error {
	return c.transport.CreateTopic(ctx, c.topic, 1, replicationFactor)
}

func (c *Cursor) EnsureInfiniteRetention(ctx context.Context) error {
	return c.transport.UpdateRetentionToInfinite(ctx, c.topic)
}

func (c *Cursor) Topic() string      { return c.topic }
func (c *Cursor) Partition() int32   { return c.partition }
func (c *Cursor) IsSubscribed() bool { return c.subscribed }
