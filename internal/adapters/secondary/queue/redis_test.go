package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	output "llm-engine-service/internal/core/ports/output"
)

func newTestRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	q := newRedisQueue(client, "test:fine-tunes", 50*time.Millisecond)
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestNewRedisQueue(t *testing.T) {
	_, err := NewRedisQueue(context.Background(), RedisConfig{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	q, err := NewRedisQueue(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer q.Close()
	assert.Equal(t, "llm-engine:fine-tunes", q.queue)
	assert.Equal(t, 5*time.Second, q.wait)
}

func TestRedisQueue_PublishConsumeInOrder(t *testing.T) {
	q, mr := newTestRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, "ft-1"))
	require.NoError(t, q.Publish(ctx, "ft-2"))
	items, err := mr.List("test:fine-tunes")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 1, func(_ context.Context, id string) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, id)
			if len(seen) == 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ft-1", "ft-2"}, seen)
}

func TestRedisQueue_RedeliversOnError(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, "ft-1"))

	var mu sync.Mutex
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 2, func(_ context.Context, id string) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			cancel()
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestRedisQueue_ConsumeReturnsServerError(t *testing.T) {
	q, mr := newTestRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 2, func(context.Context, string) error { return nil })
	}()

	time.Sleep(20 * time.Millisecond)
	mr.Close()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis consume")
		assert.NotErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, output.ErrQueueClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not report the server going away")
	}
}

func TestRedisQueue_ConsumeAfterClose(t *testing.T) {
	q, _ := newTestRedisQueue(t)
	require.NoError(t, q.Close())

	err := q.Consume(context.Background(), 1, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, output.ErrQueueClosed)
}
