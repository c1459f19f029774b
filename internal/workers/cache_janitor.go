package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/metrics"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
)

// CacheJanitor periodically removes expired keys from stores without
// native expiry.
type CacheJanitor struct {
	logger  *slog.Logger
	sweeper storage.Sweeper

	// How often to run the sweep
	interval time.Duration
}

// NewCacheJanitor creates a new janitor worker
func NewCacheJanitor(logger *slog.Logger, sweeper storage.Sweeper, interval time.Duration) *CacheJanitor {
	return &CacheJanitor{
		logger:   logger,
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (j *CacheJanitor) Start(ctx context.Context) {
	j.logger.Info("Starting cache janitor worker", "sweep_interval", j.interval.String())

	if err := j.sweep(ctx); err != nil {
		j.logger.Error("Initial cache sweep failed", "error", err)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Cache janitor worker stopped")
			return
		case <-ticker.C:
			if err := j.sweep(ctx); err != nil {
				j.logger.Error("Cache sweep failed", "error", err)
			}
		}
	}
}

func (j *CacheJanitor) sweep(ctx context.Context) error {
	count, err := j.sweeper.DeleteExpired(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		metrics.StorageSwept.Add(float64(count))
		j.logger.Info("Removed expired storage keys", "count", count)
	} else {
		j.logger.Debug("No expired storage keys to remove")
	}

	return nil
}
