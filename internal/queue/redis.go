package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"printcost-backend/config"
)

// popTimeout bounds each BRPOP so workers notice shutdown.
const popTimeout = time.Second

// RedisQueue keeps ids in a Redis list (LPUSH / BRPOP) so queued jobs survive restarts and can be
// consumed by several processes.
type RedisQueue struct {
	counters
	client *redis.Client
	key    string
	closed atomic.Bool
}

// NewRedisQueue connects to cfg.RedisAddr and verifies the connection.
func NewRedisQueue(ctx context.Context, cfg *config.QueueConfig, log *zap.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &RedisQueue{
		counters: counters{backend: "redis", workers: workers, log: log.Named("queue")},
		client:   client,
		key:      cfg.RedisKey,
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if err := q.client.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	atomic.AddUint64(&q.enqueued, 1)
	return nil
}

func (q *RedisQueue) Run(ctx context.Context, handle Handler) error {
	q.log.Info("Queue consumers started", zap.String("backend", q.backend), zap.String("key", q.key), zap.Int("workers", q.workers))

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for ctx.Err() == nil && !q.closed.Load() {
				res, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
				switch {
				case errors.Is(err, redis.Nil):
					continue
				case err != nil:
					if ctx.Err() != nil || q.closed.Load() {
						return
					}
					q.log.Warn("BRPOP failed", zap.Error(err))
					time.Sleep(popTimeout)
					continue
				}
				// res is [key, value].
				q.execute(context.WithoutCancel(ctx), id, res[1], handle)
			}
		}(i)
	}
	wg.Wait()

	q.log.Info("Queue consumers stopped", zap.String("backend", q.backend))
	return nil
}

func (q *RedisQueue) Stats() Stats {
	return q.stats()
}

// Len returns the number of ids waiting in Redis.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close stops the consumers and releases the connection. A pop in flight fails and its worker
// exits; a job being executed runs to completion.
func (q *RedisQueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	return q.client.Close()
}
