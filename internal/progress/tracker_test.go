package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_SkipRejectedUnlessMatchesFailingOffset(t *testing.T) {
	tr := New("cluster-a", NewMemoryDurableStore())
	tr.SetFailingOffsetFromDIV(41)

	err := tr.SkipMessageWithOffset(42)
	assert.Error(t, err, "S4: skip must be rejected when it doesn't match failingOffset")

	offset, armed := tr.OffsetToSkip()
	assert.False(t, armed)
	assert.Zero(t, offset)
}

func TestTracker_SkipAcceptedAndSingleShot(t *testing.T) {
	tr := New("cluster-a", NewMemoryDurableStore())
	tr.SetFailingOffsetFromDIV(41)

	require.NoError(t, tr.SkipMessageWithOffset(41))
	offset, armed := tr.OffsetToSkip()
	assert.True(t, armed)
	assert.Equal(t, int64(41), offset)

	tr.ConsumeOffsetToSkip()
	_, armed = tr.OffsetToSkip()
	assert.False(t, armed, "single-shot sentinel must consume itself")
}

func TestTracker_SkipDIVRejectedUnlessMatchesFailingOffset(t *testing.T) {
	tr := New("cluster-a", NewMemoryDurableStore())
	tr.SetFailingOffsetFromDIV(41)

	err := tr.SkipMessageDIVWithOffset(42)
	assert.Error(t, err, "S3: DIV-skip must be rejected when it doesn't match failingOffset")
}

func TestTracker_SkipDIVAcceptedWhenMatchesFailingOffset(t *testing.T) {
	tr := New("cluster-a", NewMemoryDurableStore())
	tr.SetFailingOffsetFromDIV(41)

	require.NoError(t, tr.SkipMessageDIVWithOffset(41))
}

func TestTracker_CommitCycleSkipsPersistWhenOffsetUnchanged(t *testing.T) {
	durable := NewMemoryDurableStore()
	tr := New("cluster-a", durable)
	require.NoError(t, tr.LoadFromDurableStore(context.Background()))

	require.NoError(t, tr.CommitCycle(context.Background(), 0, 0))
	assert.Equal(t, 0, durable.Persists, "offset did not move, persist must be skipped")
}

func TestTracker_CommitCycleAdvancesAndPersists(t *testing.T) {
	durable := NewMemoryDurableStore()
	tr := New("cluster-a", durable)
	require.NoError(t, tr.LoadFromDurableStore(context.Background()))

	require.NoError(t, tr.CommitCycle(context.Background(), 109, 19))

	assert.Equal(t, int64(109), tr.LastSucceededExecutionID())
	assert.Equal(t, int64(19), tr.LastPersistedOffset())
	assert.Equal(t, 1, durable.Persists)
}

func TestTracker_ReconcileKeepsTheSmallerFailingOffset(t *testing.T) {
	tr := New("cluster-a", NewMemoryDurableStore())
	tr.SetFailingOffsetFromDIV(20)

	// A handler failure elsewhere blocked at a smaller offset (10 < 20),
	// so reconciliation moves the DIV failingOffset down to 10.
	tr.ReconcileProblematicOffset(10)
	offset, ok := tr.FailingOffset()
	require.True(t, ok)
	assert.Equal(t, int64(10), offset)

	// Now a later reconciliation tries to set it back up to 30; since the
	// current failingOffset (10) is already <= 30 it must not move.
	tr.ReconcileProblematicOffset(30)
	offset, _ = tr.FailingOffset()
	assert.Equal(t, int64(10), offset)
}

func TestTracker_ResetVolatileKeepsDurableFields(t *testing.T) {
	durable := NewMemoryDurableStore()
	tr := New("cluster-a", durable)
	require.NoError(t, tr.CommitCycle(context.Background(), 5, 3))
	tr.SetFailingOffsetFromDIV(7)

	tr.ResetVolatile()

	_, armed := tr.FailingOffset()
	assert.False(t, armed)
	assert.Equal(t, int64(3), tr.LastPersistedOffset(), "durable state survives a volatile reset")
}
