package execpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/corestore/internal/adminmodel"
	"github.com/jamestiotio/corestore/internal/dispatch"
)

type blockingHandler struct {
	mu     sync.Mutex
	delays map[string]time.Duration
	calls  map[string]int
}

func newBlockingHandler(delays map[string]time.Duration) *blockingHandler {
	return &blockingHandler{delays: delays, calls: make(map[string]int)}
}

func (h *blockingHandler) Apply(ctx context.Context, storeName string, entry dispatch.PendingEntry) error {
	h.mu.Lock()
	h.calls[storeName]++
	h.mu.Unlock()

	select {
	case <-time.After(h.delays[storeName]):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeSkip struct{}

func (fakeSkip) OffsetToSkip() (int64, bool) { return 0, false }
func (fakeSkip) ConsumeOffsetToSkip()        {}

func entry(offset, execID int64) dispatch.PendingEntry {
	return dispatch.PendingEntry{Offset: offset, Operation: adminmodel.NewAddVersion(execID, "ignored", 1, "job")}
}

// TestPool_S1_SlowStoreDoesNotBlockOthers mirrors spec.md §8 scenario S1:
// store A is slow, B and C are fast; with a tight cycle timeout A should be
// reported as timed-out-without-progress while B and C succeed.
func TestPool_S1_SlowStoreDoesNotBlockOthers(t *testing.T) {
	queues := dispatch.NewPendingQueues()
	queues.Append("store-a", entry(10, 100))
	queues.Append("store-b", entry(11, 101))
	queues.Append("store-c", entry(13, 102))

	handler := newBlockingHandler(map[string]time.Duration{
		"store-a": 200 * time.Millisecond,
		"store-b": 10 * time.Millisecond,
		"store-c": 10 * time.Millisecond,
	})

	pool := New(handler, queues, 3, nil)
	result := pool.ExecuteCycle(context.Background(), 150*time.Millisecond, fakeSkip{}, nil)

	assert.Equal(t, StoreTimedOutNoProgress, result.Outcomes["store-a"])
	assert.Equal(t, StoreSucceeded, result.Outcomes["store-b"])
	assert.Equal(t, StoreSucceeded, result.Outcomes["store-c"])
	assert.Equal(t, int64(10), result.BlockingOffset["store-a"])
	assert.Equal(t, int64(102), result.LargestSucceededAll)
}

func TestPool_TimeoutWithProgressIsNotProblematic(t *testing.T) {
	queues := dispatch.NewPendingQueues()
	queues.Append("store-a", entry(10, 100))
	queues.Append("store-a", entry(11, 101))
	queues.Append("store-a", entry(12, 102))

	handler := newBlockingHandler(map[string]time.Duration{"store-a": 30 * time.Millisecond})
	pool := New(handler, queues, 1, nil)

	result := pool.ExecuteCycle(context.Background(), 50*time.Millisecond, fakeSkip{}, map[string]int64{"store-a": 0})
	require.Contains(t, result.Outcomes, "store-a")
	assert.Equal(t, StoreTimedOutMadeProgress, result.Outcomes["store-a"])
	assert.NotContains(t, result.BlockingOffset, "store-a", "a store that made progress must not be marked problematic")
}

func TestPool_HandlerFailureMarksStoreProblematic(t *testing.T) {
	queues := dispatch.NewPendingQueues()
	queues.Append("store-a", entry(10, 100))

	pool := New(failingHandler{}, queues, 1, nil)
	result := pool.ExecuteCycle(context.Background(), time.Second, fakeSkip{}, nil)

	assert.Equal(t, StoreFailed, result.Outcomes["store-a"])
	assert.Equal(t, int64(10), result.BlockingOffset["store-a"])
	assert.Equal(t, 1, queues.Len("store-a"), "a failed entry must remain queued for retry")
}

type failingHandler struct{}

func (failingHandler) Apply(context.Context, string, dispatch.PendingEntry) error {
	return assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "handler failure" }

func TestPool_NoPendingWorkReturnsEmptyResult(t *testing.T) {
	queues := dispatch.NewPendingQueues()
	pool := New(newBlockingHandler(nil), queues, 2, nil)

	result := pool.ExecuteCycle(context.Background(), time.Second, fakeSkip{}, nil)
	assert.Empty(t, result.Outcomes)
}
