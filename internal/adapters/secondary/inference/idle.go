package inference

import (
	"context"
	"sync/atomic"
	"time"
)

// idleWatchdog cancels a stream that has been silent for longer than d.
// A zero d never fires.
type idleWatchdog struct {
	d     time.Duration
	timer *time.Timer
	fired atomic.Bool
}

func newIdleWatchdog(d time.Duration, cancel context.CancelFunc) *idleWatchdog {
	w := &idleWatchdog{d: d}
	if d > 0 {
		w.timer = time.AfterFunc(d, func() {
			w.fired.Store(true)
			cancel()
		})
	}
	return w
}

func (w *idleWatchdog) touch() {
	if w.timer != nil {
		w.timer.Reset(w.d)
	}
}

func (w *idleWatchdog) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *idleWatchdog) expired() bool {
	return w.fired.Load()
}
