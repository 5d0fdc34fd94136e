package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	output "llm-engine-service/internal/core/ports/output"
)

// RedisConfig describes the list used as a queue
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

// RedisQueue is a Redis list queue: LPUSH to publish, BRPOP to consume
type RedisQueue struct {
	client *redis.Client
	queue  string
	wait   time.Duration
}

func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return newRedisQueue(client, cfg.Queue, cfg.BlockWait), nil
}

func newRedisQueue(client *redis.Client, queue string, wait time.Duration) *RedisQueue {
	if queue == "" {
		queue = "llm-engine:fine-tunes"
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{client: client, queue: queue, wait: wait}
}

func (q *RedisQueue) Publish(ctx context.Context, fineTuneID string) error {
	if err := q.client.LPush(ctx, q.queue, fineTuneID).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Consume runs workerCount BRPOP loops. The first worker error stops the
// others and is returned once they have exited.
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler output.QueueHandler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				values, err := q.client.BRPop(gctx, q.wait, q.queue).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if errors.Is(err, redis.ErrClosed) {
						return output.ErrQueueClosed
					}
					if gctx.Err() != nil {
						return gctx.Err()
					}
					return fmt.Errorf("redis consume: %w", err)
				}
				if len(values) != 2 {
					continue
				}
				id := values[1]
				if handlerErr := handler(gctx, id); handlerErr != nil {
					// Put it back at the consuming end for another attempt
					if err := q.client.RPush(context.WithoutCancel(gctx), q.queue, id).Err(); err != nil {
						log.WithError(err).WithField("fine_tune_id", id).Error("redis redelivery failed")
					}
				}
			}
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}

var _ output.JobQueue = (*RedisQueue)(nil)
