package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/corestore/internal/adminmodel"
	"github.com/jamestiotio/corestore/internal/div"
)

type fakeSkip struct {
	offset int64
	armed  bool
}

func (f *fakeSkip) OffsetToSkip() (int64, bool) { return f.offset, f.armed }
func (f *fakeSkip) ConsumeOffsetToSkip()        { f.armed = false }

func addVersionRecord(t *testing.T, offset int64, execID int64, store string) adminmodel.LogRecord {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"type":        adminmodel.OpAddVersion,
		"executionId": execID,
		"store":       store,
		"versionNumber": 1,
	})
	require.NoError(t, err)
	return adminmodel.LogRecord{
		Offset: offset,
		Envelope: adminmodel.Envelope{
			MessageType: adminmodel.MessageTypePut,
			Payload:     payload,
		},
	}
}

func TestDispatcher_OrdersPerStoreAcrossInterleavedRecords(t *testing.T) {
	queues := NewPendingQueues()
	d := New(queues, div.New(), "admin-topic", 0, nil)
	skip := &fakeSkip{}

	records := []adminmodel.LogRecord{
		addVersionRecord(t, 10, 100, "store-a"),
		addVersionRecord(t, 11, 101, "store-b"),
		addVersionRecord(t, 12, 102, "store-a"),
		addVersionRecord(t, 13, 103, "store-c"),
		addVersionRecord(t, 14, 104, "store-a"),
	}

	for _, rec := range records {
		res, err := d.Dispatch(rec, "admin-topic", 0, -1, skip)
		require.NoError(t, err)
		assert.Equal(t, Dispatched, res)
	}

	storeA := queues.Queue("store-a")
	require.Len(t, storeA, 3)
	assert.Equal(t, int64(10), storeA[0].Offset)
	assert.Equal(t, int64(12), storeA[1].Offset)
	assert.Equal(t, int64(14), storeA[2].Offset)

	assert.Equal(t, int64(14), d.LastSeenOffset())
}

func TestDispatcher_DropsAlreadyPersistedOffset(t *testing.T) {
	queues := NewPendingQueues()
	d := New(queues, div.New(), "admin-topic", 0, nil)
	skip := &fakeSkip{}

	rec := addVersionRecord(t, 5, 100, "store-a")
	res, err := d.Dispatch(rec, "admin-topic", 0, 10, skip)
	require.NoError(t, err)
	assert.Equal(t, Dropped, res)
	assert.Zero(t, queues.Len("store-a"))
}

func TestDispatcher_TopicMismatchIsFatal(t *testing.T) {
	queues := NewPendingQueues()
	d := New(queues, div.New(), "admin-topic", 0, nil)
	skip := &fakeSkip{}

	rec := addVersionRecord(t, 5, 100, "store-a")
	_, err := d.Dispatch(rec, "other-topic", 0, -1, skip)
	assert.Error(t, err)
}

func TestDispatcher_GapStopsDispatchWithoutEnqueue(t *testing.T) {
	queues := NewPendingQueues()
	v := div.New()
	d := New(queues, v, "admin-topic", 0, nil)
	skip := &fakeSkip{}

	_, err := d.Dispatch(addVersionRecord(t, 10, 100, "store-a"), "admin-topic", 0, -1, skip)
	require.NoError(t, err)
	_, err = d.Dispatch(addVersionRecord(t, 11, 101, "store-a"), "admin-topic", 0, -1, skip)
	require.NoError(t, err)

	res, err := d.Dispatch(addVersionRecord(t, 12, 103, "store-a"), "admin-topic", 0, -1, skip)
	assert.Equal(t, GapDetected, res)
	assert.Error(t, err)
	assert.Equal(t, 2, queues.Len("store-a"), "the gapped record must not be enqueued")
}

func TestDispatcher_SkipSingleShotConsumesItself(t *testing.T) {
	queues := NewPendingQueues()
	d := New(queues, div.New(), "admin-topic", 0, nil)
	skip := &fakeSkip{offset: 42, armed: true}

	rec := addVersionRecord(t, 42, 100, "store-a")
	res, err := d.Dispatch(rec, "admin-topic", 0, -1, skip)
	require.NoError(t, err)
	assert.Equal(t, Dropped, res)
	assert.False(t, skip.armed)
	assert.Zero(t, queues.Len("store-a"))
}
