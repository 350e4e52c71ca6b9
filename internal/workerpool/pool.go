// Package workerpool implements the bounded worker pools the read
// dispatcher uses for point/batch-get and for compute (spec.md §4.G,
// §5: "two bounded worker pools ... sized independently"), adapted from
// the teacher's generic task-queue worker pool with submission-wait and
// queue-depth instrumentation wired to metricsx.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of read-path work. SubmittedAt is stamped by Submit
// and read by the worker to compute submission-wait latency.
type Task struct {
	ID          string
	Fn          func(ctx context.Context, workerID int) error
	Context     context.Context
	SubmittedAt time.Time
}

// WaitObserver receives submission-wait latency and queue-depth samples,
// satisfied by metricsx.ReadMetrics; nil disables instrumentation.
type WaitObserver interface {
	ObserveSubmissionWait(pool string, d time.Duration)
	SetQueueDepth(pool string, depth int)
}

type Pool struct {
	name       string
	maxWorkers int
	taskQueue  chan Task
	queueSize  int
	logger     *zap.Logger
	observer   WaitObserver
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopChan   chan struct{}

	activeWorkers  int32
	totalTasks     uint64
	completedTasks uint64
	failedTasks    uint64
	rejectedTasks  uint64
}

type Config struct {
	Name       string
	MaxWorkers int
	QueueSize  int
	Logger     *zap.Logger
	Observer   WaitObserver
}

func New(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	p := &Pool{
		name:       cfg.Name,
		maxWorkers: cfg.MaxWorkers,
		queueSize:  cfg.QueueSize,
		taskQueue:  make(chan Task, cfg.QueueSize),
		logger:     cfg.Logger,
		observer:   cfg.Observer,
		stopChan:   make(chan struct{}),
	}

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case task := <-p.taskQueue:
			p.reportQueueDepth()
			p.execute(id, task)
		}
	}
}

func (p *Pool) execute(workerID int, task Task) {
	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)

	if p.observer != nil && !task.SubmittedAt.IsZero() {
		p.observer.ObserveSubmissionWait(p.name, time.Since(task.SubmittedAt))
	}

	err := p.safeExecute(workerID, task)
	if err != nil {
		atomic.AddUint64(&p.failedTasks, 1)
		p.logger.Error("read task failed",
			zap.String("pool", p.name),
			zap.Int("worker_id", workerID),
			zap.String("task_id", task.ID),
			zap.Error(err))
	} else {
		atomic.AddUint64(&p.completedTasks, 1)
	}
}

func (p *Pool) safeExecute(workerID int, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read task panicked: %v", r)
			p.logger.Error("read task panic recovered", zap.String("pool", p.name), zap.String("task_id", task.ID), zap.Any("panic", r))
		}
	}()
	if task.Context == nil {
		task.Context = context.Background()
	}
	return task.Fn(task.Context, workerID)
}

// Submit enqueues a task without blocking. Returns an error if the
// queue is full or the pool is stopped — the network thread never
// blocks on this (spec.md §5: "the dispatcher never blocks the network
// thread").
func (p *Pool) Submit(task Task) error {
	select {
	case <-p.stopChan:
		atomic.AddUint64(&p.rejectedTasks, 1)
		return fmt.Errorf("worker pool %q is stopped", p.name)
	default:
	}

	task.SubmittedAt = time.Now()
	select {
	case p.taskQueue <- task:
		atomic.AddUint64(&p.totalTasks, 1)
		p.reportQueueDepth()
		return nil
	default:
		atomic.AddUint64(&p.rejectedTasks, 1)
		return fmt.Errorf("worker pool %q queue is full", p.name)
	}
}

func (p *Pool) reportQueueDepth() {
	if p.observer != nil {
		p.observer.SetQueueDepth(p.name, len(p.taskQueue))
	}
}

func (p *Pool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopChan)
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool %q stop timeout after %v", p.name, timeout)
		}
	})
	return err
}

type Stats struct {
	Name           string
	MaxWorkers     int
	ActiveWorkers  int
	QueuedTasks    int
	TotalTasks     uint64
	CompletedTasks uint64
	FailedTasks    uint64
	RejectedTasks  uint64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Name:           p.name,
		MaxWorkers:     p.maxWorkers,
		ActiveWorkers:  int(atomic.LoadInt32(&p.activeWorkers)),
		QueuedTasks:    len(p.taskQueue),
		TotalTasks:     atomic.LoadUint64(&p.totalTasks),
		CompletedTasks: atomic.LoadUint64(&p.completedTasks),
		FailedTasks:    atomic.LoadUint64(&p.failedTasks),
		RejectedTasks:  atomic.LoadUint64(&p.rejectedTasks),
	}
}
