package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObserver struct {
	mu    sync.Mutex
	waits []time.Duration
	depth int
}

func (f *fakeObserver) ObserveSubmissionWait(_ string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
}

func (f *fakeObserver) SetQueueDepth(_ string, depth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depth = depth
}

func TestPool_SubmitRunsTaskAndReportsWorkerID(t *testing.T) {
	p := New(Config{Name: "get", MaxWorkers: 2, QueueSize: 10})
	defer p.Stop(time.Second)

	var gotWorkerID int32 = -1
	done := make(chan struct{})
	err := p.Submit(Task{
		ID: "t1",
		Fn: func(_ context.Context, workerID int) error {
			atomic.StoreInt32(&gotWorkerID, int32(workerID))
			close(done)
			return nil
		},
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&gotWorkerID), int32(0))
}

func TestPool_SubmitRejectedAfterStop(t *testing.T) {
	p := New(Config{Name: "compute", MaxWorkers: 1, QueueSize: 1})
	require.NoError(t, p.Stop(time.Second))

	err := p.Submit(Task{ID: "t1", Fn: func(context.Context, int) error { return nil }})
	assert.Error(t, err)
}

func TestPool_ObserverReceivesSubmissionWaitAndQueueDepth(t *testing.T) {
	p := New(Config{Name: "get", MaxWorkers: 1, QueueSize: 10, Observer: &fakeObserver{}})
	obs := p.observer.(*fakeObserver)
	defer p.Stop(time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(Task{
		ID: "t1",
		Fn: func(context.Context, int) error {
			wg.Done()
			return nil
		},
	}))
	wg.Wait()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.NotEmpty(t, obs.waits)
}

func TestPool_PanicInTaskIsRecoveredAsError(t *testing.T) {
	p := New(Config{Name: "get", MaxWorkers: 1, QueueSize: 10})
	defer p.Stop(time.Second)

	done := make(chan struct{})
	require.NoError(t, p.Submit(Task{
		ID: "t1",
		Fn: func(context.Context, int) error {
			defer close(done)
			panic("boom")
		},
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking task never returned control to the pool")
	}

	require.Eventually(t, func() bool {
		return p.Stats().FailedTasks == 1
	}, time.Second, 10*time.Millisecond)
}
