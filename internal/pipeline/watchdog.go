package pipeline

import (
	"context"
	"time"
)

// watchdog periodically sweeps the project's chunks and kills attempts whose
// heartbeat has gone stale. The cancelled worker observes its own chunk
// context dying while the run context stays alive, and retries.
func (r *Runner) watchdog(ctx context.Context) {
	if r.cfg.WatchdogInterval <= 0 || r.cfg.StallTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(r.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep cancels every busy chunk whose last heartbeat is older than the
// stall timeout. Only the stalled chunk is touched; its siblings keep going.
func (r *Runner) sweep(ctx context.Context) {
	chunks, err := r.store.ListChunks(ctx, r.project.ID)
	if err != nil {
		r.log.WithError(err).Warn("watchdog sweep failed")
		return
	}

	now := time.Now()
	for _, chunk := range chunks {
		if !chunk.Phase.Busy() {
			continue
		}
		stale := now.Sub(chunk.LastUpdated)
		if stale < r.cfg.StallTimeout {
			continue
		}
		if r.state.cancelChunk(chunk.ID) {
			r.log.WithField("chunk", chunk.Index).
				WithField("stale", stale.Round(time.Second).String()).
				Warn("cancelled stalled chunk attempt")
		}
	}
}
