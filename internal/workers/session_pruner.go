package workers

import (
	"context"
	"log/slog"
	"time"
)

// Pruner drops in-memory state that is no longer needed.
type Pruner interface {
	Prune() int
}

// SessionPruner periodically closes idle scan sessions.
type SessionPruner struct {
	logger   *slog.Logger
	pruner   Pruner
	interval time.Duration
}

func NewSessionPruner(logger *slog.Logger, pruner Pruner, interval time.Duration) *SessionPruner {
	return &SessionPruner{
		logger:   logger,
		pruner:   pruner,
		interval: interval,
	}
}

// Start prunes on every tick until ctx is done.
func (p *SessionPruner) Start(ctx context.Context) {
	p.logger.Info("Starting session pruner worker", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Session pruner worker stopped")
			return
		case <-ticker.C:
			if n := p.pruner.Prune(); n > 0 {
				p.logger.Debug("Pruned idle sessions", "count", n)
			}
		}
	}
}
