package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-engine-service/internal/config"
)

func TestMemoryQueue_PublishConsume(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, "ft-1"))
	require.NoError(t, q.Publish(ctx, "ft-2"))

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 2, func(_ context.Context, id string) error {
			mu.Lock()
			seen[id] = true
			if len(seen) == 2 {
				cancel()
			}
			mu.Unlock()
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.True(t, seen["ft-1"])
	assert.True(t, seen["ft-2"])
}

func TestMemoryQueue_RedeliversOnError(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, "ft-1"))

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 1, func(_ context.Context, id string) error {
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
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, 3, attempts)
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), "ft-1")
	assert.ErrorIs(t, err, errQueueClosed)

	err = q.Consume(context.Background(), 1, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, errQueueClosed)
}

func TestMemoryQueue_PublishRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Publish(context.Background(), "ft-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, "ft-2"), context.DeadlineExceeded)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Queue: config.QueueConfig{Backend: "kafka"}})
	assert.Error(t, err)

	q, err := New(context.Background(), &config.Config{Queue: config.QueueConfig{Backend: "memory", Buffer: 2}})
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)
}
