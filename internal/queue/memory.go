package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// MemoryQueue is an in-process bounded queue. Queued ids are lost on restart; their jobs stay
// "queued" in the database and are re-queued on the next start.
type MemoryQueue struct {
	counters
	ids       chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a queue holding up to buffer ids, consumed by workers goroutines.
func NewMemoryQueue(workers, buffer int, log *zap.Logger) *MemoryQueue {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryQueue{
		counters: counters{backend: "memory", workers: workers, log: log.Named("queue")},
		ids:      make(chan string, buffer),
		done:     make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.ids <- jobID:
		atomic.AddUint64(&q.enqueued, 1)
		return nil
	}
}

func (q *MemoryQueue) Run(ctx context.Context, handle Handler) error {
	q.log.Info("Queue consumers started", zap.String("backend", q.backend), zap.Int("workers", q.workers))

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case jobID := <-q.ids:
					// Dispatched jobs are not cancelled by shutdown.
					q.execute(context.WithoutCancel(ctx), id, jobID, handle)
				}
			}
		}(i)
	}
	wg.Wait()

	q.log.Info("Queue consumers stopped", zap.String("backend", q.backend))
	return nil
}

func (q *MemoryQueue) Stats() Stats {
	return q.stats()
}

// Len is the number of ids waiting for a worker.
func (q *MemoryQueue) Len() int {
	return len(q.ids)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
