package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner drives the world clock. Pausing stops tick advancement without
// stopping the HTTP surface; submissions keep resolving against the frozen
// tick.
type Runner struct {
	world    *World
	interval time.Duration
	paused   atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRunner(w *World, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{world: w, interval: interval}
}

// Start launches the tick loop. Stop cancels it and waits for the in-flight
// tick to finish.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			start := time.Now()
			tick := r.world.AdvanceTick()
			if d := time.Since(start); d > r.interval {
				log.Warn().Uint64("tick", tick).Dur("took", d).Msg("tick overran interval")
			}
		}
	}
}

func (r *Runner) Pause()  { r.paused.Store(true) }
func (r *Runner) Resume() { r.paused.Store(false) }

func (r *Runner) Paused() bool { return r.paused.Load() }

func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}
