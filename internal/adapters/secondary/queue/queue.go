package queue

import (
	"context"
	"fmt"

	"llm-engine-service/internal/config"
	output "llm-engine-service/internal/core/ports/output"
)

// New builds the JobQueue selected by cfg.Queue.Backend
func New(ctx context.Context, cfg *config.Config) (output.JobQueue, error) {
	switch cfg.Queue.Backend {
	case "", "memory":
		return NewMemoryQueue(cfg.Queue.Buffer), nil
	case "redis":
		q, err := NewRedisQueue(ctx, RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Queue:    cfg.Queue.Name,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	case "rabbitmq":
		q, err := NewRabbitMQQueue(RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.Queue.Name,
			Prefetch: cfg.RabbitMQ.Prefetch,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.Queue.Backend)
	}
}
