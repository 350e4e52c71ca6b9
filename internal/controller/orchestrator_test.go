package controller

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/corestore/internal/adminhandler"
	"github.com/jamestiotio/corestore/internal/adminlog"
	"github.com/jamestiotio/corestore/internal/adminmodel"
	"github.com/jamestiotio/corestore/internal/metricsx"
	"github.com/jamestiotio/corestore/internal/progress"
)

type fakeElector struct {
	leader bool
}

func (f *fakeElector) IsLeader(_ context.Context, _ string) (bool, error) { return f.leader, nil }

func storeCreationRecord(execID int64, store string) adminmodel.LogRecord {
	payload, _ := json.Marshal(map[string]any{
		"type":          adminmodel.OpStoreCreation,
		"executionId":   execID,
		"store":         store,
		"owner":         "team-x",
		"keySchemaId":   1,
		"valueSchemaId": 1,
	})
	return adminmodel.LogRecord{
		Envelope: adminmodel.Envelope{MessageType: adminmodel.MessageTypePut, Payload: payload},
	}
}

func newTestOrchestrator(t *testing.T, transport *adminlog.MemoryTransport, elector *fakeElector, durable *progress.MemoryDurableStore) *Orchestrator {
	t.Helper()
	cursor := adminlog.New(transport, "admin-topic", 0, nil)
	tracker := progress.New("test-cluster", durable)
	handler := adminhandler.NewInMemoryHandler(nil, nil)
	metrics := metricsx.NewAdminMetrics("test-cluster-" + t.Name())

	cfg := Config{
		Cluster:                     "test-cluster",
		Topic:                       "admin-topic",
		Partition:                   0,
		ReadCycleDelay:              10 * time.Millisecond,
		ProcessingCycleTimeout:      time.Second,
		PollTimeout:                 100 * time.Millisecond,
		MaxExecutionWorkers:         2,
		IsTopLevelController:        true,
		AdminTopicReplicationFactor: 1,
	}
	return New(cfg, nil, metrics, elector, cursor, tracker, handler)
}

// TestOrchestrator_LeadershipLossMidCycleResetsVolatileState covers
// spec.md §8 scenario S6: losing leadership drops undelivered work and
// DIV state without touching the durably persisted offset, so a future
// re-acquire resumes cleanly from lastPersistedOffset.
func TestOrchestrator_LeadershipLossMidCycleResetsVolatileState(t *testing.T) {
	transport := adminlog.NewMemoryTransport()
	transport.Append(storeCreationRecord(1, "store-a"))
	transport.Append(storeCreationRecord(2, "store-b"))

	elector := &fakeElector{leader: true}
	durable := progress.NewMemoryDurableStore()
	o := newTestOrchestrator(t, transport, elector, durable)

	require.NoError(t, o.tracker.LoadFromDurableStore(context.Background()))
	require.NoError(t, o.tick(context.Background()))

	assert.Equal(t, int64(1), o.tracker.LastPersistedOffset())
	assert.Equal(t, 1, durable.Persists)

	elector.leader = false
	require.NoError(t, o.tick(context.Background()))
	assert.False(t, o.gate.IsLeader())
	assert.Empty(t, o.queues.StoresWithWork())

	// Persisted offset survives the leadership loss untouched.
	assert.Equal(t, int64(1), o.tracker.LastPersistedOffset())

	elector.leader = true
	transport.Append(storeCreationRecord(3, "store-c"))
	require.NoError(t, o.tick(context.Background()))
	assert.Equal(t, int64(2), o.tracker.LastPersistedOffset())
}

// TestOrchestrator_GapBlocksOnlyItsStoreAndRecoversAfterDIVSkip covers
// spec.md §8 scenario S3: a DIV gap on one record must not starve stores
// whose work was already dispatched earlier in the same batch, the
// cursor must keep resubscribing every cycle while the gap persists (not
// just once), and an operator DIV-skip must let consumption resume from
// the next offset.
func TestOrchestrator_GapBlocksOnlyItsStoreAndRecoversAfterDIVSkip(t *testing.T) {
	transport := adminlog.NewMemoryTransport()
	transport.Append(storeCreationRecord(1, "store-a"))
	transport.Append(storeCreationRecord(2, "store-b"))
	transport.Append(storeCreationRecord(5, "store-c")) // gap: expected executionId 3

	elector := &fakeElector{leader: true}
	durable := progress.NewMemoryDurableStore()
	o := newTestOrchestrator(t, transport, elector, durable)
	require.NoError(t, o.tracker.LoadFromDurableStore(context.Background()))

	// Cycle 1: store-a and store-b dispatch and execute despite the gap
	// at offset 2 stopping the batch; the gap must not starve them.
	require.NoError(t, o.tick(context.Background()))
	assert.Equal(t, int64(1), o.tracker.LastPersistedOffset())
	assert.Equal(t, 1, durable.Persists)
	offset, ok := o.tracker.FailingOffset()
	require.True(t, ok)
	assert.Equal(t, int64(2), offset)
	assert.True(t, o.cursor.IsSubscribed(), "cursor must resubscribe in the same cycle after a dispatch error")
	assert.Empty(t, o.queues.StoresWithWork(), "already-dispatched stores must have executed")

	// Cycle 2: the same gap reproduces; the cursor must resubscribe again
	// rather than staying unsubscribed forever after the first error.
	require.NoError(t, o.tick(context.Background()))
	assert.Equal(t, int64(1), o.tracker.LastPersistedOffset())
	assert.Equal(t, 1, durable.Persists)
	assert.True(t, o.cursor.IsSubscribed())

	// Operator issues a DIV-skip for the gapped offset.
	require.NoError(t, o.SkipMessageDIVWithOffset(2))

	// Cycle 3: the gapped record now dispatches (bypassing DIV) and
	// consumption fully recovers.
	require.NoError(t, o.tick(context.Background()))
	assert.Equal(t, int64(2), o.tracker.LastPersistedOffset())
	assert.Equal(t, 2, durable.Persists)
	_, ok = o.tracker.FailingOffset()
	assert.False(t, ok, "failingOffset must clear once it is covered by the persisted offset")
	assert.True(t, o.cursor.IsSubscribed())
}

func TestOrchestrator_NonLeaderTickIsANoop(t *testing.T) {
	transport := adminlog.NewMemoryTransport()
	transport.Append(storeCreationRecord(1, "store-a"))

	elector := &fakeElector{leader: false}
	durable := progress.NewMemoryDurableStore()
	o := newTestOrchestrator(t, transport, elector, durable)

	require.NoError(t, o.tracker.LoadFromDurableStore(context.Background()))
	require.NoError(t, o.tick(context.Background()))

	assert.Equal(t, int64(0), o.tracker.LastPersistedOffset())
	assert.Equal(t, 0, durable.Persists)
}
