package queue

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	output "llm-engine-service/internal/core/ports/output"
)

var errQueueClosed = output.ErrQueueClosed

// MemoryQueue is a channel-backed queue for single-process deployments and tests
type MemoryQueue struct {
	ch     chan string
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size)}
}

func (q *MemoryQueue) Publish(ctx context.Context, fineTuneID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- fineTuneID:
		return nil
	}
}

// Consume runs workerCount handlers until ctx is cancelled or the queue is
// closed. Failed IDs are put back when there is room.
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler output.QueueHandler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-q.ch:
					if !ok {
						return
					}
					if err := handler(ctx, id); err != nil {
						q.redeliver(id)
					}
				}
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return errQueueClosed
}

func (q *MemoryQueue) redeliver(id string) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- id:
	default:
		log.WithFields(log.Fields{
			"fine_tune_id": id,
			"queued":       q.Len(),
		}).Warn("queue full, dropping redelivery until the next requeue")
	}
}

// Len returns the number of IDs waiting to be consumed
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		close(q.ch)
		q.closed = true
	}
	return nil
}

var _ output.JobQueue = (*MemoryQueue)(nil)
