package ports

import (
	"context"
	"errors"

	"llm-engine-service/internal/core/domain"
)

// DatasetSummary describes a validated training dataset
type DatasetSummary struct {
	Location string
	Columns  []string
	Rows     int
	Fetched  bool
}

// DatasetValidator checks that a dataset location holds a prompt/response CSV
type DatasetValidator interface {
	Validate(ctx context.Context, location string) (*DatasetSummary, error)
}

// BaseModelCatalog lists the base models the platform can serve and fine-tune
type BaseModelCatalog interface {
	Get(name string) (*domain.BaseModel, error)
	List() []*domain.BaseModel
}

// StreamHandler receives streamed completion tokens in order
type StreamHandler func(out domain.CompletionStreamOutput) error

// InferenceClient dispatches completion requests to a serving URL
type InferenceClient interface {
	Generate(ctx context.Context, url string, req domain.CompletionRequest) (*domain.CompletionOutput, error)
	GenerateStream(ctx context.Context, url string, req domain.CompletionRequest, handle StreamHandler) error
}

// QueueHandler processes a fine-tune ID taken from the queue
type QueueHandler func(ctx context.Context, fineTuneID string) error

// ErrQueueClosed is returned by a JobQueue after Close
var ErrQueueClosed = errors.New("queue is closed")

// JobQueue carries fine-tune IDs from the API to the launcher
type JobQueue interface {
	Publish(ctx context.Context, fineTuneID string) error
	Consume(ctx context.Context, workerCount int, handler QueueHandler) error
	Close() error
}
