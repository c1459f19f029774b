package workers

import (
	"context"
	"log/slog"
	"time"
)

// UserSyncer refetches the current user when the stored token changed.
type UserSyncer interface {
	Sync(ctx context.Context) (changed bool, err error)
}

// UserRefresher keeps the cached user in step with the token store, the
// way another terminal signing in or out would be noticed.
type UserRefresher struct {
	logger   *slog.Logger
	syncer   UserSyncer
	interval time.Duration
}

func NewUserRefresher(logger *slog.Logger, syncer UserSyncer, interval time.Duration) *UserRefresher {
	return &UserRefresher{
		logger:   logger,
		syncer:   syncer,
		interval: interval,
	}
}

// Start checks the token store on every tick until ctx is done.
func (r *UserRefresher) Start(ctx context.Context) {
	r.logger.Info("Starting user refresher worker", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("User refresher worker stopped")
			return
		case <-ticker.C:
			changed, err := r.syncer.Sync(ctx)
			if err != nil {
				r.logger.Warn("User refresh failed", "error", err)
				continue
			}
			if changed {
				r.logger.Info("Signed-in user changed")
			}
		}
	}
}
