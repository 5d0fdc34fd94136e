package worker

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
	"llm-engine-service/internal/core/services"
)

// LauncherOptions controls how many fine-tunes launch in parallel, how
// long a failed launch waits before it is handed back to the queue and how
// long the launcher waits before consuming again after the queue failed.
type LauncherOptions struct {
	Concurrency    int
	RetryBackoff   time.Duration
	RestartBackoff time.Duration
}

const maxRestartBackoff = time.Minute

// Launcher consumes fine-tune IDs and submits their training Jobs
type Launcher struct {
	queue     output.JobQueue
	fineTunes *services.FineTuneService
	opts      LauncherOptions
}

func NewLauncher(queue output.JobQueue, fineTunes *services.FineTuneService, opts LauncherOptions) *Launcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = time.Second
	}
	return &Launcher{queue: queue, fineTunes: fineTunes, opts: opts}
}

// Run blocks until ctx is cancelled or the queue is closed. Queue errors
// restart consumption with exponential backoff.
func (l *Launcher) Run(ctx context.Context) error {
	log.WithField("concurrency", l.opts.Concurrency).Info("fine-tune launcher started")

	backoff := l.opts.RestartBackoff
	for {
		err := l.queue.Consume(ctx, l.opts.Concurrency, l.handle)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			log.Info("fine-tune launcher stopped")
			return nil
		}
		if errors.Is(err, output.ErrQueueClosed) {
			log.Info("fine-tune queue closed, launcher stopped")
			return nil
		}

		log.WithError(err).WithField("backoff", backoff.String()).Warn("fine-tune queue consumer failed, restarting")
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("fine-tune launcher stopped")
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRestartBackoff)
	}
}

func (l *Launcher) handle(ctx context.Context, fineTuneID string) error {
	err := l.fineTunes.Launch(ctx, fineTuneID)
	if err == nil {
		return nil
	}

	logger := log.WithError(err).WithField("fine_tune_id", fineTuneID)

	// Deleted rows never come back, redelivering them would loop forever
	if errors.Is(err, domain.ErrFineTuneNotFound) {
		logger.Warn("drop launch of unknown fine-tune")
		return nil
	}

	logger.Warn("launch fine-tune failed, will retry")
	if l.opts.RetryBackoff > 0 {
		timer := time.NewTimer(l.opts.RetryBackoff)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return err
}
