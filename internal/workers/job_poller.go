package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/core/ports"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/metrics"
)

// PollSink receives the outcome of every status request made by a JobPoller.
type PollSink interface {
	// PollUpdated applies a status. Returning false stops the poller.
	PollUpdated(ctx context.Context, id entities.JobID, status *entities.DetectionStatus) bool
	// PollFailed is called once with the error that stopped the poller.
	PollFailed(ctx context.Context, id entities.JobID, err error)
}

// JobPoller watches one detection job until it reaches a terminal status.
type JobPoller struct {
	logger   *slog.Logger
	fetcher  ports.StatusFetcher
	interval time.Duration
}

// NewJobPoller creates a poller. A non-positive interval uses the default.
func NewJobPoller(logger *slog.Logger, fetcher ports.StatusFetcher, interval time.Duration) *JobPoller {
	if interval <= 0 {
		interval = ports.DefaultPollInterval
	}
	return &JobPoller{
		logger:   logger,
		fetcher:  fetcher,
		interval: interval,
	}
}

// Run polls id every interval until the job is terminal, a request fails,
// the sink asks to stop, or ctx is cancelled. Each request completes before
// the next tick is armed, so at most one request per job is in flight.
func (p *JobPoller) Run(ctx context.Context, id entities.JobID, sink PollSink) {
	p.logger.DebugContext(ctx, "Starting job poller", "job_id", id, "interval", p.interval.String())

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.DebugContext(ctx, "Job poller stopped", "job_id", id)
			return
		case <-timer.C:
		}

		status, err := p.fetcher.GetDetection(ctx, id)
		if ctx.Err() != nil {
			// Cancelled while the request was in flight; the owner has moved on.
			return
		}

		if err != nil {
			outcome := "error"
			if clients.IsNotFound(err) {
				outcome = "not_found"
			}
			metrics.Polls.WithLabelValues(outcome).Inc()

			p.logger.WarnContext(ctx, "Job poll failed", "job_id", id, "error", err)
			sink.PollFailed(ctx, id, err)
			return
		}

		metrics.Polls.WithLabelValues(string(status.Status)).Inc()

		if !sink.PollUpdated(ctx, id, status) {
			return
		}
		if status.Status.IsTerminal() {
			metrics.JobsFinished.WithLabelValues(string(status.Status)).Inc()
			p.logger.InfoContext(ctx, "Job finished", "job_id", id, "status", status.Status)
			return
		}

		timer.Reset(p.interval)
	}
}
