// Package queue moves job ids from the HTTP layer to background workers. Job state itself lives
// in the database; the queue only carries ids.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"printcost-backend/config"
)

// ErrClosed is returned by Enqueue after the queue has been closed.
var ErrClosed = errors.New("queue is closed")

// Handler processes one job. It is called by exactly one worker per dequeued id.
type Handler func(ctx context.Context, jobID string) error

// Queue is a job id queue with its own consumers.
type Queue interface {
	// Enqueue adds jobID, blocking while the queue is full or until ctx is done.
	Enqueue(ctx context.Context, jobID string) error
	// Run consumes ids with the configured number of workers until ctx is done or the queue is
	// closed, then waits for in-flight jobs.
	Run(ctx context.Context, handle Handler) error
	Stats() Stats
	Close() error
}

// New builds the queue selected by cfg.Backend.
func New(ctx context.Context, cfg *config.QueueConfig, log *zap.Logger) (Queue, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryQueue(cfg.Workers, cfg.Buffer, log), nil
	case "redis":
		return NewRedisQueue(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
}

// Stats represents queue statistics.
type Stats struct {
	Backend       string
	Workers       int
	ActiveWorkers int
	Enqueued      uint64
	Completed     uint64
	Failed        uint64
}

// SuccessRate returns the share of finished jobs that succeeded as a percentage.
func (s Stats) SuccessRate() float64 {
	done := s.Completed + s.Failed
	if done == 0 {
		return 100.0
	}
	return float64(s.Completed) / float64(done) * 100.0
}

// counters holds the statistics and execution wrapper shared by both backends.
type counters struct {
	backend   string
	workers   int
	active    int32
	enqueued  uint64
	completed uint64
	failed    uint64
	log       *zap.Logger
}

func (c *counters) stats() Stats {
	return Stats{
		Backend:       c.backend,
		Workers:       c.workers,
		ActiveWorkers: int(atomic.LoadInt32(&c.active)),
		Enqueued:      atomic.LoadUint64(&c.enqueued),
		Completed:     atomic.LoadUint64(&c.completed),
		Failed:        atomic.LoadUint64(&c.failed),
	}
}

// execute runs handle for jobID with panic recovery and updates the counters.
func (c *counters) execute(ctx context.Context, workerID int, jobID string, handle Handler) {
	atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)

	start := time.Now()
	err := c.safeExecute(ctx, jobID, handle)
	duration := time.Since(start)

	if err != nil {
		atomic.AddUint64(&c.failed, 1)
		c.log.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", jobID),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}
	atomic.AddUint64(&c.completed, 1)
	c.log.Debug("Job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", jobID),
		zap.Duration("duration", duration))
}

func (c *counters) safeExecute(ctx context.Context, jobID string, handle Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			c.log.Error("Job panic recovered", zap.String("job_id", jobID), zap.Any("panic", r))
		}
	}()
	return handle(ctx, jobID)
}
