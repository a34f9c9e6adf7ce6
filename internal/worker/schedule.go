package worker

import (
	"context"
	"time"
)

// RunEvery runs the job once immediately and then on every tick of interval
// until ctx is done. Used when no Pub/Sub subscription is configured.
func (j *FetchJob) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("fetch schedule stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
