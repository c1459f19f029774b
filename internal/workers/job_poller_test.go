package workers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []entities.JobStatus
	err      error
	calls    int
}

func (f *scriptedFetcher) GetDetection(_ context.Context, _ entities.JobID) (*entities.DetectionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return &entities.DetectionStatus{Status: status}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	updates []entities.JobStatus
	failure error
	accept  bool
}

func (s *recordingSink) PollUpdated(_ context.Context, _ entities.JobID, status *entities.DetectionStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, status.Status)
	return s.accept
}

func (s *recordingSink) PollFailed(_ context.Context, _ entities.JobID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func runPoller(t *testing.T, fetcher *scriptedFetcher, sink *recordingSink) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	NewJobPoller(discardLogger(), fetcher, time.Millisecond).Run(ctx, "job-1", sink)
	require.NoError(t, ctx.Err(), "poller should return on its own")
}

func TestJobPollerStopsAtTerminalStatus(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []entities.JobStatus{
		entities.JobStatusQueued,
		entities.JobStatusRunning,
		entities.JobStatusFailed,
		entities.JobStatusRunning,
	}}
	sink := &recordingSink{accept: true}

	runPoller(t, fetcher, sink)

	require.Equal(t, []entities.JobStatus{
		entities.JobStatusQueued,
		entities.JobStatusRunning,
		entities.JobStatusFailed,
	}, sink.updates)
	require.Equal(t, 3, fetcher.calls)
	require.NoError(t, sink.failure)
}

func TestJobPollerStopsOnError(t *testing.T) {
	notFound := &clients.Error{Kind: clients.KindNotFound, StatusCode: 404}
	fetcher := &scriptedFetcher{err: notFound}
	sink := &recordingSink{accept: true}

	runPoller(t, fetcher, sink)

	require.Equal(t, 1, fetcher.calls)
	require.Empty(t, sink.updates)
	require.True(t, errors.Is(sink.failure, notFound))
}

func TestJobPollerStopsWhenSinkDeclines(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []entities.JobStatus{entities.JobStatusRunning}}
	sink := &recordingSink{accept: false}

	runPoller(t, fetcher, sink)

	require.Equal(t, 1, fetcher.calls)
}

func TestJobPollerStopsOnCancel(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []entities.JobStatus{entities.JobStatusRunning}}
	sink := &recordingSink{accept: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewJobPoller(discardLogger(), fetcher, time.Millisecond).Run(ctx, "job-1", sink)
	}()

	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls >= 2
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
	require.NoError(t, sink.failure)
}

func TestJobPollerWaitsBeforeFirstRequest(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []entities.JobStatus{entities.JobStatusDone}}
	sink := &recordingSink{accept: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewJobPoller(discardLogger(), fetcher, time.Hour).Run(ctx, "job-1", sink)
	require.Zero(t, fetcher.calls)
}
