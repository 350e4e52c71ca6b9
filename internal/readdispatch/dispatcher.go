// Package readdispatch implements the read dispatcher spec.md §4.G
// describes: the network-thread entry point that inspects a request's
// kind and submits it to one of two bounded worker pools, never
// blocking the network thread itself.
package readdispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jamestiotio/corestore/internal/adminhandler"
	"github.com/jamestiotio/corestore/internal/chunking"
	"github.com/jamestiotio/corestore/internal/compute"
	"github.com/jamestiotio/corestore/internal/errorsx"
	"github.com/jamestiotio/corestore/internal/health"
	"github.com/jamestiotio/corestore/internal/metadata"
	"github.com/jamestiotio/corestore/internal/metricsx"
	"github.com/jamestiotio/corestore/internal/objectcache"
	"github.com/jamestiotio/corestore/internal/partition"
	"github.com/jamestiotio/corestore/internal/readmodel"
	"github.com/jamestiotio/corestore/internal/storageengine"
	"github.com/jamestiotio/corestore/internal/workerpool"
)

const (
	poolGet     = "get"
	poolCompute = "compute"
)

// EarlyTermination is checked before queueing and again at task start
// (spec.md §4.G). A request wraps one of these so the dispatcher can
// cooperatively abandon it without touching storage.
type EarlyTermination interface {
	Terminated() bool
}

// AtomicFlag is a concrete EarlyTermination backed by an int32, set by
// an upstream deadline tracker (spec.md §5).
type AtomicFlag struct {
	flag int32
}

func (f *AtomicFlag) Terminated() bool     { return atomic.LoadInt32(&f.flag) != 0 }
func (f *AtomicFlag) Terminate()           { atomic.StoreInt32(&f.flag, 1) }

// Dispatcher wires the read-side collaborators together: partition
// resolver, storage engine, metadata retriever, schema registry,
// compute evaluator, disk health checker, and the admin-introspection
// handler, fronted by two bounded worker pools.
type Dispatcher struct {
	engine    storageengine.Engine
	resolver  *partition.Resolver
	metadata  metadata.Retriever
	evaluator *compute.Evaluator
	health    *health.Checker
	admin     *adminhandler.InMemoryHandler
	metrics   *metricsx.ReadMetrics
	logger    *zap.Logger

	getPool     *workerpool.Pool
	computePool *workerpool.Pool

	workerScratch []*objectcache.WorkerScratch
}

type Config struct {
	GetPoolWorkers     int
	GetPoolQueueSize   int
	ComputePoolWorkers int
	ComputePoolQueueSize int
	ParallelChunkSize  int
}

func New(cfg Config, engine storageengine.Engine, resolver *partition.Resolver, md metadata.Retriever, evaluator *compute.Evaluator, checker *health.Checker, admin *adminhandler.InMemoryHandler, metrics *metricsx.ReadMetrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	totalWorkers := cfg.GetPoolWorkers + cfg.ComputePoolWorkers
	scratch := make([]*objectcache.WorkerScratch, totalWorkers)
	for i := range scratch {
		scratch[i] = objectcache.NewWorkerScratch()
	}

	var observer workerpool.WaitObserver
	if metrics != nil {
		observer = metrics
	}

	d := &Dispatcher{
		engine:        engine,
		resolver:      resolver,
		metadata:      md,
		evaluator:     evaluator,
		health:        checker,
		admin:         admin,
		metrics:       metrics,
		logger:        logger,
		workerScratch: scratch,
	}
	d.getPool = workerpool.New(workerpool.Config{Name: poolGet, MaxWorkers: cfg.GetPoolWorkers, QueueSize: cfg.GetPoolQueueSize, Logger: logger, Observer: observer})
	d.computePool = workerpool.New(workerpool.Config{Name: poolCompute, MaxWorkers: cfg.ComputePoolWorkers, QueueSize: cfg.ComputePoolQueueSize, Logger: logger, Observer: observer})
	return d
}

func (d *Dispatcher) scratchFor(workerID int) *objectcache.WorkerScratch {
	if workerID < 0 || workerID >= len(d.workerScratch) {
		return objectcache.NewWorkerScratch()
	}
	return d.workerScratch[workerID]
}

func (d *Dispatcher) incr(op, outcome string) {
	if d.metrics != nil {
		d.metrics.RequestsTotal.WithLabelValues(op, outcome).Inc()
	}
}

// PointGet submits a single-key read to the get pool. The caller
// receives the result on respCh once the worker completes.
func (d *Dispatcher) PointGet(ctx context.Context, req readmodel.PointGetRequest, topic string, chunked bool, term EarlyTermination, respCh chan<- readmodel.RecordResult) {
	if term != nil && term.Terminated() {
		d.terminateEarly(respCh)
		return
	}

	err := d.getPool.Submit(workerpool.Task{
		ID:      fmt.Sprintf("point-get:%s", req.Resource),
		Context: ctx,
		Fn: func(ctx context.Context, workerID int) error {
			if term != nil && term.Terminated() {
				d.terminateEarly(respCh)
				d.incr("point_get", "early_terminated")
				return nil
			}
			subPartition := d.resolver.SubPartition(req.Resource, req.UserPartition, req.Key)
			value, err := chunking.Assemble[[][]byte, []byte](ctx, d.engine, subPartition, req.Key, chunked, 0, chunking.ByteRecordAdapter{})
			if err != nil {
				respCh <- readmodel.RecordResult{Err: err}
				d.incr("point_get", "error")
				return err
			}
			respCh <- readmodel.RecordResult{Value: value}
			d.incr("point_get", "ok")
			return nil
		},
	})
	if err != nil {
		respCh <- readmodel.RecordResult{Err: errorsx.RequestShape(err.Error())}
		d.incr("point_get", "rejected")
	}
}

func (d *Dispatcher) terminateEarly(respCh chan<- readmodel.RecordResult) {
	respCh <- readmodel.RecordResult{Err: errorsx.EarlyTerminated()}
	if d.metrics != nil {
		d.metrics.EarlyTerminations.Inc()
	}
}

// BatchGet submits a multi-key read to the get pool, fanning out one
// sub-task per ParallelChunkSize keys (spec.md §4.G, §5).
func (d *Dispatcher) BatchGet(ctx context.Context, req readmodel.BatchGetRequest, topic string, chunked bool, term EarlyTermination, respCh chan<- readmodel.RecordResult) {
	if term != nil && term.Terminated() {
		d.terminateEarly(respCh)
		return
	}

	chunkSize := req.ParallelChunkSize
	if chunkSize <= 0 {
		chunkSize = len(req.Keys)
	}
	if chunkSize == 0 {
		close(respCh)
		return
	}

	var pending int32
	for start := 0; start < len(req.Keys); start += chunkSize {
		end := start + chunkSize
		if end > len(req.Keys) {
			end = len(req.Keys)
		}
		batch := req.Keys[start:end]
		atomic.AddInt32(&pending, 1)

		err := d.getPool.Submit(workerpool.Task{
			ID:      fmt.Sprintf("batch-get:%s:%d", req.Resource, start),
			Context: ctx,
			Fn: func(ctx context.Context, workerID int) error {
				defer func() {
					if atomic.AddInt32(&pending, -1) == 0 {
						close(respCh)
					}
				}()
				if term != nil && term.Terminated() {
					if req.Streaming {
						for _, entry := range batch {
							respCh <- readmodel.MissingKeySentinel(entry.KeyIndex)
						}
					}
					d.incr("batch_get", "early_terminated")
					return nil
				}
				for _, entry := range batch {
					subPartition := d.resolver.SubPartition(req.Resource, entry.PartitionID, entry.KeyBytes)
					value, err := chunking.Assemble[[][]byte, []byte](ctx, d.engine, subPartition, entry.KeyBytes, chunked, 0, chunking.ByteRecordAdapter{})
					if err != nil {
						if req.Streaming && errorsx.IsCode(err, errorsx.CodeStorageMissing) {
							respCh <- readmodel.MissingKeySentinel(entry.KeyIndex)
							continue
						}
						respCh <- readmodel.RecordResult{KeyIndex: entry.KeyIndex, Err: err}
						d.incr("batch_get", "error")
						continue
					}
					respCh <- readmodel.RecordResult{KeyIndex: entry.KeyIndex, Value: value}
					d.incr("batch_get", "ok")
				}
				return nil
			},
		})
		if err != nil {
			atomic.AddInt32(&pending, -1)
			d.incr("batch_get", "rejected")
		}
	}
}

// Compute submits a compute request to the compute pool, one key per
// sub-task (spec.md §4.G, §4.I).
func (d *Dispatcher) Compute(ctx context.Context, req readmodel.ComputeRequest, topic string, term EarlyTermination, respCh chan<- readmodel.RecordResult) {
	if term != nil && term.Terminated() {
		d.terminateEarly(respCh)
		return
	}

	var pending int32
	for i, key := range req.Keys {
		keyIndex := int32(i)
		atomic.AddInt32(&pending, 1)

		err := d.computePool.Submit(workerpool.Task{
			ID:      fmt.Sprintf("compute:%s:%d", req.Resource, keyIndex),
			Context: ctx,
			Fn: func(ctx context.Context, workerID int) error {
				defer func() {
					if atomic.AddInt32(&pending, -1) == 0 {
						close(respCh)
					}
				}()
				if term != nil && term.Terminated() {
					respCh <- readmodel.MissingKeySentinel(keyIndex)
					d.incr("compute", "early_terminated")
					return nil
				}
				result := d.evaluator.EvaluateKey(ctx, req, key, keyIndex, 0, topic, d.scratchFor(workerID))
				respCh <- result
				if result.Err != nil {
					d.incr("compute", "error")
				} else {
					d.incr("compute", "ok")
				}
				return nil
			},
		})
		if err != nil {
			atomic.AddInt32(&pending, -1)
			d.incr("compute", "rejected")
		}
	}
	if len(req.Keys) == 0 {
		close(respCh)
	}
}

// HealthCheck returns the disk-health collaborator's current status
// synchronously, bypassing both worker pools (spec.md §4.G).
func (d *Dispatcher) HealthCheck() health.Status {
	return d.health.Check()
}

// DictionaryFetch returns the compression dictionary for a store
// version's topic.
func (d *Dispatcher) DictionaryFetch(topic string) ([]byte, error) {
	return d.metadata.GetStoreVersionCompressionDictionary(topic)
}

// AdminIntrospection answers the server-side introspection message type
// with either an ingestion snapshot (current offset) or the store's
// admin-applied metadata, matching SPEC_FULL.md §3's supplemental
// feature list.
type AdminIntrospectionRequest struct {
	StoreName string
	Topic     string
	Partition int32
	Kind      AdminIntrospectionKind
}

type AdminIntrospectionKind int

const (
	IngestionSnapshot AdminIntrospectionKind = iota
	ServerConfig
)

func (d *Dispatcher) AdminIntrospection(req AdminIntrospectionRequest) ([]byte, error) {
	switch req.Kind {
	case IngestionSnapshot:
		offset, err := d.metadata.GetOffset(req.Topic, req.Partition)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"topic": req.Topic, "partition": req.Partition, "offset": offset})
	case ServerConfig:
		snapshot, ok := d.admin.Snapshot(req.StoreName)
		if !ok {
			return nil, errorsx.RequestShape(fmt.Sprintf("no metadata known for store %q", req.StoreName))
		}
		return json.Marshal(snapshot)
	default:
		return nil, errorsx.RequestShape("unsupported admin introspection kind")
	}
}

// Shutdown stops both worker pools, awaiting in-flight tasks up to grace
// (spec.md §9: "shutdown must ... await the pool with a bounded
// deadline").
func (d *Dispatcher) Shutdown(grace time.Duration) error {
	if err := d.getPool.Stop(grace); err != nil {
		return err
	}
	return d.computePool.Stop(grace)
}
