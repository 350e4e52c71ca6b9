package readdispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/corestore/internal/adminhandler"
	"github.com/jamestiotio/corestore/internal/compute"
	"github.com/jamestiotio/corestore/internal/health"
	"github.com/jamestiotio/corestore/internal/metadata"
	"github.com/jamestiotio/corestore/internal/partition"
	"github.com/jamestiotio/corestore/internal/readmodel"
	"github.com/jamestiotio/corestore/internal/storageengine"
)

func newTestDispatcher(t *testing.T, engine *storageengine.MemoryEngine) *Dispatcher {
	t.Helper()
	resolver := partition.New(nil)
	md := metadata.NewInMemoryRetriever()
	evaluator := compute.NewEvaluator(engine, resolver, md, nil, compute.NewSchemaCache())
	checker := health.NewChecker(t.TempDir(), nil)
	admin := adminhandler.NewInMemoryHandler(nil, nil)

	cfg := Config{GetPoolWorkers: 2, GetPoolQueueSize: 10, ComputePoolWorkers: 2, ComputePoolQueueSize: 10}
	return New(cfg, engine, resolver, md, evaluator, checker, admin, nil, nil)
}

func drain(t *testing.T, ch <-chan readmodel.RecordResult, n int) []readmodel.RecordResult {
	t.Helper()
	var out []readmodel.RecordResult
	timeout := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatalf("timed out waiting for %d results, got %d", n, len(out))
		}
	}
	return out
}

func TestDispatcher_PointGet(t *testing.T) {
	engine := storageengine.NewMemoryEngine()
	engine.Put(0, []byte("k1"), []byte("v1"))
	d := newTestDispatcher(t, engine)

	ch := make(chan readmodel.RecordResult, 1)
	d.PointGet(context.Background(), readmodel.PointGetRequest{Resource: "store", Key: []byte("k1")}, "store_v1", false, nil, ch)

	results := drain(t, ch, 1)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, []byte("v1"), results[0].Value)
}

func TestDispatcher_PointGet_EarlyTermination(t *testing.T) {
	engine := storageengine.NewMemoryEngine()
	d := newTestDispatcher(t, engine)

	flag := &AtomicFlag{}
	flag.Terminate()
	ch := make(chan readmodel.RecordResult, 1)
	d.PointGet(context.Background(), readmodel.PointGetRequest{Resource: "store", Key: []byte("k1")}, "store_v1", false, flag, ch)

	results := drain(t, ch, 1)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}

func TestDispatcher_BatchGet_StreamingMissingKey(t *testing.T) {
	engine := storageengine.NewMemoryEngine()
	engine.Put(0, []byte("k1"), []byte("v1"))
	d := newTestDispatcher(t, engine)

	req := readmodel.BatchGetRequest{
		Resource:  "store",
		Streaming: true,
		Keys: []readmodel.BatchKeyEntry{
			{KeyBytes: []byte("k1"), KeyIndex: 0},
			{KeyBytes: []byte("missing"), KeyIndex: 1},
		},
	}
	ch := make(chan readmodel.RecordResult, 2)
	d.BatchGet(context.Background(), req, "store_v1", false, nil, ch)

	results := drain(t, ch, 2)
	require.Len(t, results, 2)

	var foundValue, foundSentinel bool
	for _, r := range results {
		if r.KeyIndex == 0 {
			assert.Equal(t, []byte("v1"), r.Value)
			foundValue = true
		}
		if r.KeyIndex == -1 {
			assert.Nil(t, r.Value)
			foundSentinel = true
		}
	}
	assert.True(t, foundValue)
	assert.True(t, foundSentinel)
}

func TestDispatcher_HealthCheck(t *testing.T) {
	engine := storageengine.NewMemoryEngine()
	d := newTestDispatcher(t, engine)
	status := d.HealthCheck()
	assert.NotEmpty(t, status)
}
