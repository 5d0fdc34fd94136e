package worker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"llm-engine-service/internal/core/services"
)

// ReconcilerOptions sets how often the reconciler runs and how long a
// fine-tune may sit in PENDING before its queue message is presumed lost.
type ReconcilerOptions struct {
	Interval     time.Duration
	RequeueAfter time.Duration
}

// Reconciler periodically pulls the status of running fine-tunes from the
// cluster so jobs finish even when nobody polls them. It also republishes
// pending fine-tunes whose queue message went missing.
type Reconciler struct {
	fineTunes *services.FineTuneService
	opts      ReconcilerOptions
}

func NewReconciler(fineTunes *services.FineTuneService, opts ReconcilerOptions) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.RequeueAfter <= 0 {
		opts.RequeueAfter = 5 * time.Minute
	}
	return &Reconciler{fineTunes: fineTunes, opts: opts}
}

// Run requeues every pending fine-tune once, then on every tick requeues
// stale pending ones and reconciles running ones until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.requeue(ctx, 0)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.requeue(ctx, r.opts.RequeueAfter)
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) requeue(ctx context.Context, olderThan time.Duration) {
	// A full in-memory queue blocks Publish; give up until the next tick
	rctx, cancel := context.WithTimeout(ctx, r.opts.Interval)
	defer cancel()

	n, err := r.fineTunes.Requeue(rctx, olderThan)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).WithField("requeued", n).Warn("requeue pending fine-tunes failed")
		}
		return
	}
	if n > 0 {
		log.WithField("count", n).Info("requeued pending fine-tunes")
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	start := time.Now()
	finished, err := r.fineTunes.Reconcile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Error("reconcile fine-tunes failed")
		}
		return
	}
	if finished > 0 {
		log.WithFields(log.Fields{
			"finished":   finished,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("fine-tunes reconciled")
	}
}
