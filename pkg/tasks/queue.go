// Package tasks runs shelfd's background maintenance: the worker queue that
// executes asynchronous engine work (multipart merges, blob cleanup, fixity
// checks) and the periodic runner that schedules the recurring sweeps.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/metrics"
)

// Task is one unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue is a bounded worker pool executing engine tasks in the background.
// It decouples request latency from merge/cleanup work. Tasks are idempotent
// by contract, so a task lost to a crash is recovered by the next periodic
// sweep rather than by queue durability.
type Queue struct {
	queue   chan Task
	workers int
	metrics *metrics.EngineMetrics

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu        sync.Mutex
	started   bool
	completed int
	failed    int
	lastError error
}

// NewQueue creates a worker queue with the given configuration.
func NewQueue(cfg Config, m *metrics.EngineMetrics) *Queue {
	cfg.applyDefaults()
	return &Queue{
		queue:     make(chan Task, cfg.QueueSize),
		workers:   cfg.Workers,
		metrics:   m,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins processing tasks. Idempotent.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	logger.Info("starting task queue", "workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	go func() {
		q.wg.Wait()
		close(q.stoppedCh)
	}()
}

// Stop gracefully shuts down the queue, waiting up to timeout for in-flight
// tasks to finish.
func (q *Queue) Stop(timeout time.Duration) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	logger.Info("stopping task queue", "pending", len(q.queue))
	close(q.stopCh)

	select {
	case <-q.stoppedCh:
		logger.Info("task queue stopped")
	case <-time.After(timeout):
		logger.Warn("task queue stop timed out", "pending", len(q.queue))
	}
}

// Enqueue submits a task. Returns false when the queue is full or stopped;
// the caller decides whether to run inline or drop.
func (q *Queue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	select {
	case <-q.stopCh:
		return false
	default:
	}

	select {
	case q.queue <- Task{Name: name, Run: fn}:
		return true
	default:
		logger.Warn("task queue full", "task", name)
		return false
	}
}

// Stats returns completed and failed task counts with the last error seen.
func (q *Queue) Stats() (completed, failed int, lastError error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed, q.failed, q.lastError
}

// worker drains the queue until stopped. On stop it finishes the tasks
// already queued before exiting; cancellation is honored at task boundaries.
func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			// Drain remaining tasks, then exit.
			for {
				select {
				case task := <-q.queue:
					q.run(ctx, task)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		case task := <-q.queue:
			q.run(ctx, task)
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	start := time.Now()
	err := task.Run(ctx)
	q.metrics.RecordTaskRun(task.Name, err)

	q.mu.Lock()
	if err != nil {
		q.failed++
		q.lastError = err
	} else {
		q.completed++
	}
	q.mu.Unlock()

	if err != nil {
		logger.Error("task failed", "task", task.Name, "duration", time.Since(start), "error", err)
		return
	}
	logger.Debug("task completed", "task", task.Name, "duration", time.Since(start))
}
