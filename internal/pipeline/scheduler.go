package pipeline

import (
	"context"
	"errors"
	"time"

	"cnjp_news/internal/storage"
)

// Loop runs the pipeline immediately and then every interval, blocking until
// ctx is cancelled. Run errors are logged and do not stop the loop.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	sum, err := r.Run(ctx)
	switch {
	case err == nil:
		r.log.Info("run finished",
			"day", sum.Day, "fetched", sum.Fetched, "added", sum.Added,
			"fallbacks", sum.Fallbacks, "home", sum.HomeCount)
	case errors.Is(err, storage.ErrLocked):
		r.log.Info("run skipped, another run holds the lock")
	case errors.Is(err, ErrNothingFetched):
		r.log.Warn("run aborted", "error", err, "failed_sources", sum.Failed)
	case ctx.Err() != nil:
		return
	default:
		r.log.Error("run failed", "error", err)
	}
}
