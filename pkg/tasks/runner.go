package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/service"
)

// Runner drives the recurring maintenance sweeps on their configured
// intervals: fixity verification batches, expired multipart cleanup, and
// orphaned file cleanup. The fixity and multipart-expiry sweeps enqueue
// per-file work on the queue; the orphan sweep removes blobs directly on the
// runner's goroutine.
type Runner struct {
	svc   *service.Service
	queue *Queue
	cfg   Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewRunner creates the maintenance runner.
func NewRunner(svc *service.Service, queue *Queue, cfg Config) *Runner {
	cfg.applyDefaults()
	return &Runner{svc: svc, queue: queue, cfg: cfg}
}

// Start launches the queue workers and the periodic tickers. Idempotent.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	// The queue runs on the parent context so that Stop, after canceling the
	// tickers, still lets the workers drain the pending tasks.
	r.queue.Start(ctx)
	ctx, r.cancel = context.WithCancel(ctx)
	r.svc.SetScheduler(r.queue)

	r.wg.Add(2)
	go r.loop(ctx, r.cfg.FixityBatchInterval, "fixity-schedule", func(ctx context.Context) error {
		_, err := r.svc.ScheduleChecksumVerification(ctx,
			r.cfg.FixityFrequency, r.cfg.FixityBatchInterval,
			r.cfg.FixityMaxCount, r.cfg.FixityMaxBytes)
		return err
	})
	go r.loop(ctx, r.cfg.CleanupInterval, "cleanup", func(ctx context.Context) error {
		if _, err := r.svc.RemoveExpiredMultiparts(ctx); err != nil {
			return err
		}
		_, err := r.svc.ClearOrphanedFiles(ctx, nil)
		return err
	})

	logger.Info("maintenance runner started",
		"fixity_interval", r.cfg.FixityBatchInterval,
		"cleanup_interval", r.cfg.CleanupInterval)
}

// Stop cancels the tickers and drains the queue.
func (r *Runner) Stop(timeout time.Duration) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.queue.Stop(timeout)
}

// loop runs fn once per interval until the context is canceled.
func (r *Runner) loop(ctx context.Context, interval time.Duration, name string, fn func(ctx context.Context) error) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.Error("maintenance sweep failed", "sweep", name, "error", err)
			}
		}
	}
}
